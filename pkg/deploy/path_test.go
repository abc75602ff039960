// Copyright 2025 The Kube Resource Orchestrator Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetValueAtPathWalksNestedFields(t *testing.T) {
	obj := map[string]interface{}{
		"status": map[string]interface{}{
			"loadBalancer": map[string]interface{}{
				"ingress": []interface{}{
					map[string]interface{}{"ip": "10.0.0.1"},
				},
			},
		},
	}
	v, err := getValueAtPath(obj, "status.loadBalancer.ingress[0].ip")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", v)
}

func TestGetValueAtPathMissingFieldErrors(t *testing.T) {
	obj := map[string]interface{}{"status": map[string]interface{}{}}
	_, err := getValueAtPath(obj, "status.missing")
	require.Error(t, err)
}

func TestGetValueAtPathIndexOutOfRangeErrors(t *testing.T) {
	obj := map[string]interface{}{"items": []interface{}{"a"}}
	_, err := getValueAtPath(obj, "items[5]")
	require.Error(t, err)
}

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
	"fmt"

	"github.com/typekro/typekro-go/pkg/graph/fieldpath"
)

// getValueAtPath walks a dot/bracket field path over a live object's Object
// map, the read-side counterpart of pkg/runtime/resolver.Resolver's
// getValueFromPath, generalized to read from any observed map rather than a
// single fixed resource.
func getValueAtPath(obj map[string]interface{}, path string) (interface{}, error) {
	segments, err := fieldpath.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid field path %q: %w", path, err)
	}

	current := interface{}(obj)
	for _, segment := range segments {
		if segment.Index >= 0 {
			arr, ok := current.([]interface{})
			if !ok || segment.Index >= len(arr) {
				return nil, fmt.Errorf("index %d not present at %q", segment.Index, path)
			}
			current = arr[segment.Index]
			continue
		}
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q not present at %q", segment.Name, path)
		}
		value, ok := m[segment.Name]
		if !ok {
			return nil, fmt.Errorf("field %q not present at %q", segment.Name, path)
		}
		current = value
	}
	return current, nil
}

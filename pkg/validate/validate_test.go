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

package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/ref"
)

func TestValidateResourceIDAlreadyConforming(t *testing.T) {
	id, err := ValidateResourceID("webDeployment", ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, "webDeployment", id)
}

func TestValidateResourceIDStrictRejectsKebabCase(t *testing.T) {
	_, err := ValidateResourceID("web-deployment", ModeStrict)
	require.Error(t, err)
	var fp *errs.InvalidFieldPathError
	assert.ErrorAs(t, err, &fp)
}

func TestValidateResourceIDLenientRepairsKebabCase(t *testing.T) {
	id, err := ValidateResourceID("web-deployment", ModeLenient)
	require.NoError(t, err)
	assert.Equal(t, "webDeployment", id)
}

func TestValidateResourceIDRejectsReservedWord(t *testing.T) {
	_, err := ValidateResourceID("schema", ModeLenient)
	require.Error(t, err)
	var name *errs.InvalidCompositionNameError
	assert.ErrorAs(t, err, &name)
}

func TestValidateCompositionNameRejectsOverlong(t *testing.T) {
	long := ""
	for i := 0; i < 260; i++ {
		long += "a"
	}
	_, err := ValidateCompositionName(long)
	require.Error(t, err)
}

func TestResourcesRejectsDuplicateAfterRepair(t *testing.T) {
	inputs := []composition.ResourceInput{
		{ID: "web_app"},
		{ID: "web-app"},
	}
	_, err := Resources(inputs, ModeLenient)
	require.Error(t, err)
	var dup *errs.DuplicateResourceIDError
	assert.ErrorAs(t, err, &dup)
}

func TestResourcesRenamesEachID(t *testing.T) {
	inputs := []composition.ResourceInput{{ID: "web-app"}, {ID: "apiService"}}
	renamed, err := Resources(inputs, ModeLenient)
	require.NoError(t, err)
	assert.Equal(t, "webApp", renamed["web-app"])
	assert.Equal(t, "apiService", renamed["apiService"])
}

func TestRefsAcceptsSchemaAndExternal(t *testing.T) {
	refs := []ref.ResourceRef{
		{ResourceID: ref.SchemaResourceID, FieldPath: "spec.name"},
		{ResourceID: "externalDb", FieldPath: "status.host"},
	}
	known := map[string]struct{}{}
	external := map[string]struct{}{"externalDb": {}}
	require.NoError(t, Refs(refs, known, external))
}

func TestRefsRejectsUnknownResource(t *testing.T) {
	refs := []ref.ResourceRef{{ResourceID: "ghost", FieldPath: "status.ip"}}
	err := Refs(refs, map[string]struct{}{}, map[string]struct{}{})
	require.Error(t, err)
	var unk *errs.UnknownResourceError
	assert.ErrorAs(t, err, &unk)
}

func TestRefsRejectsMalformedFieldPath(t *testing.T) {
	refs := []ref.ResourceRef{{ResourceID: "web", FieldPath: "..bad"}}
	err := Refs(refs, map[string]struct{}{"web": {}}, map[string]struct{}{})
	require.Error(t, err)
	var fp *errs.InvalidFieldPathError
	assert.ErrorAs(t, err, &fp)
}

func TestStatusFieldRejectsDynamicMarkedStatic(t *testing.T) {
	err := StatusField("replicas", true, true)
	require.Error(t, err)
	var sp *errs.StatusPartitionError
	assert.ErrorAs(t, err, &sp)
}

func TestStatusFieldAllowsDynamicField(t *testing.T) {
	require.NoError(t, StatusField("replicas", true, false))
}

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

package composition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typekro/typekro-go/pkg/errs"
)

func deployment(id string, replicas int) ResourceInput {
	return ResourceInput{
		ID:         id,
		Namespaced: true,
		Manifest: map[string]any{
			"spec": map[string]any{"replicas": replicas},
		},
	}
}

func TestRegisterIdempotentOnEqualContent(t *testing.T) {
	ctx := New("app")
	require.NoError(t, ctx.Register(deployment("web", 3)))
	require.NoError(t, ctx.Register(deployment("web", 3)))
	assert.Len(t, ctx.Resources(), 1)
}

func TestRegisterRejectsDifferingContent(t *testing.T) {
	ctx := New("app")
	require.NoError(t, ctx.Register(deployment("web", 3)))
	err := ctx.Register(deployment("web", 5))
	require.Error(t, err)
	var dup *errs.DuplicateResourceIDError
	assert.ErrorAs(t, err, &dup)
}

func TestNestedFlattensAndDisambiguatesCollisions(t *testing.T) {
	ctx := New("app")
	require.NoError(t, ctx.Register(deployment("web", 3)))

	err := ctx.Nested("sidecar", func(c *Context) error {
		return c.Register(deployment("web", 1))
	})
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, r := range ctx.Resources() {
		ids[r.ID] = true
	}
	assert.True(t, ids["web"])
	assert.True(t, ids["web-sidecar"])
}

func TestRegisterClosure(t *testing.T) {
	ctx := New("app")
	called := false
	err := ctx.RegisterClosure("seed-data", func(dctx DeploymentContext) ([]AppliedResource, error) {
		called = true
		return nil, nil
	}, "web")
	require.NoError(t, err)

	closures := ctx.Closures()
	require.Len(t, closures, 1)
	assert.Equal(t, []string{"web"}, closures[0].DependsOn)
	_, err = closures[0].Func(DeploymentContext{})
	require.NoError(t, err)
	assert.True(t, called)
}

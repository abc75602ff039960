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

package serialize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/ref"
	"github.com/typekro/typekro-go/pkg/validate"
)

func testSchema() SchemaSpec {
	return SchemaSpec{
		Kind:       "WebApp",
		APIVersion: "v1alpha1",
		Group:      "example.com",
		Spec:       map[string]string{"name": "string | required=true"},
		Status: map[string]any{
			"url": ref.NewStandaloneCelExpression("service.status.clusterIP"),
		},
	}
}

func TestToResourceGraphDefinitionBasicShape(t *testing.T) {
	ctx := composition.New("webapp")
	require.NoError(t, ctx.Register(composition.ResourceInput{
		ID: "service",
		Manifest: map[string]any{
			"apiVersion": "v1",
			"kind":       "Service",
			"spec": map[string]any{
				"selector": map[string]any{"app": "web"},
			},
		},
	}))

	rgd, err := ToResourceGraphDefinition("WebApp", testSchema(), ctx, []string{"service"}, Options{Mode: validate.ModeLenient})
	require.NoError(t, err)

	assert.Equal(t, "web-app", rgd.Name)
	assert.Equal(t, "kro.run/v1alpha1", rgd.APIVersion)
	assert.Equal(t, "ResourceGraphDefinition", rgd.Kind)
	assert.Equal(t, "example.com", rgd.Spec.Schema.Group)
	require.Len(t, rgd.Spec.Resources, 1)
	assert.Equal(t, "service", rgd.Spec.Resources[0].ID)

	var statusFields map[string]any
	require.NoError(t, json.Unmarshal(rgd.Spec.Schema.Status.Raw, &statusFields))
	assert.Equal(t, "${service.status.clusterIP}", statusFields["url"])
}

func TestToResourceGraphDefinitionRendersRefInTemplate(t *testing.T) {
	ctx := composition.New("webapp")
	require.NoError(t, ctx.Register(composition.ResourceInput{
		ID: "deployment",
		Manifest: map[string]any{
			"apiVersion": "apps/v1",
			"kind":       "Deployment",
			"spec": map[string]any{
				"replicas": ref.ResourceRef{ResourceID: ref.SchemaResourceID, FieldPath: "spec.replicas"},
			},
		},
	}))

	rgd, err := ToResourceGraphDefinition("WebApp", testSchema(), ctx, []string{"deployment"}, Options{Mode: validate.ModeLenient})
	require.NoError(t, err)

	var template map[string]any
	require.NoError(t, json.Unmarshal(rgd.Spec.Resources[0].Template.Raw, &template))
	spec := template["spec"].(map[string]any)
	assert.Equal(t, "${schema.spec.replicas}", spec["replicas"])
}

func TestToResourceGraphDefinitionRejectsUnknownOrderID(t *testing.T) {
	ctx := composition.New("webapp")
	_, err := ToResourceGraphDefinition("WebApp", testSchema(), ctx, []string{"ghost"}, Options{Mode: validate.ModeLenient})
	require.Error(t, err)
}

func TestToYAMLRoundTrips(t *testing.T) {
	ctx := composition.New("webapp")
	require.NoError(t, ctx.Register(composition.ResourceInput{
		ID:       "service",
		Manifest: map[string]any{"apiVersion": "v1", "kind": "Service"},
	}))
	rgd, err := ToResourceGraphDefinition("WebApp", testSchema(), ctx, []string{"service"}, Options{Mode: validate.ModeLenient})
	require.NoError(t, err)

	out, err := ToYAML(rgd)
	require.NoError(t, err)
	assert.Contains(t, string(out), "kind: ResourceGraphDefinition")
}

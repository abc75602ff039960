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

// Package serialize implements the serializer (C6): it renders a composition
// into an api/v1alpha1.ResourceGraphDefinition value targeting kro.run/v1alpha1,
// the wire shape the teacher's CRD types already define. Refs and CEL
// expressions captured as live Go values during composition (pkg/expr,
// pkg/ref) are rendered to their "${...}" template strings here, the one
// point where the host-native model crosses over to kro's string-templated
// wire format.
package serialize

import (
	"encoding/json"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/yaml"

	"github.com/typekro/typekro-go/api/v1alpha1"
	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/ref"
	"github.com/typekro/typekro-go/pkg/validate"
)

// SchemaSpec describes the instance CRD's spec/status shape and identity, in
// the SimpleSchema string format the teacher's pkg/simpleschema parses.
type SchemaSpec struct {
	Kind       string
	APIVersion string
	Group      string
	// Spec maps each spec field name to its SimpleSchema type string, e.g.
	// "name: string | required=true".
	Spec map[string]string
	// Status maps each status field name to either a literal SimpleSchema
	// type string (for fields with no dynamic content) or a value containing
	// a *ref.CelExpression/ref.ResourceRef (rendered to "${...}" below).
	Status map[string]any
}

// Options controls id-naming strictness (§4.10).
type Options struct {
	Mode validate.Mode
}

// ToResourceGraphDefinition renders ctx's registered resources, in
// topological order, into a ResourceGraphDefinition. order must be a
// permutation of the ids ctx.Resources() returns (typically
// dag.TopologicalSort's output over the same ids).
func ToResourceGraphDefinition(name string, schemaSpec SchemaSpec, ctx *composition.Context, order []string, opts Options) (*v1alpha1.ResourceGraphDefinition, error) {
	rfc1123Name, err := validate.ValidateCompositionName(name)
	if err != nil {
		return nil, err
	}

	renamed, err := validate.Resources(ctx.Resources(), opts.Mode)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]composition.ResourceInput, len(ctx.Resources()))
	for _, in := range ctx.Resources() {
		byID[in.ID] = in
	}

	specRaw, err := simpleSchemaRaw(schemaSpec.Spec)
	if err != nil {
		return nil, fmt.Errorf("rendering schema.spec: %w", err)
	}
	statusRaw, err := renderStatus(schemaSpec.Status)
	if err != nil {
		return nil, fmt.Errorf("rendering schema.status: %w", err)
	}

	rgd := &v1alpha1.ResourceGraphDefinition{
		TypeMeta:   metav1.TypeMeta{APIVersion: "kro.run/v1alpha1", Kind: "ResourceGraphDefinition"},
		ObjectMeta: metav1.ObjectMeta{Name: rfc1123Name},
		Spec: v1alpha1.ResourceGraphDefinitionSpec{
			Schema: &v1alpha1.Schema{
				Kind:       schemaSpec.Kind,
				APIVersion: schemaSpec.APIVersion,
				Group:      nonEmpty(schemaSpec.Group, "kro.run"),
				Spec:       runtime.RawExtension{Raw: specRaw},
				Status:     runtime.RawExtension{Raw: statusRaw},
			},
		},
	}

	for _, originalID := range order {
		in, ok := byID[originalID]
		if !ok {
			return nil, fmt.Errorf("topological order references unregistered resource %q", originalID)
		}
		id := renamed[originalID]

		templateRaw, err := renderManifest(in.Manifest)
		if err != nil {
			return nil, fmt.Errorf("rendering resource %q: %w", id, err)
		}

		rgd.Spec.Resources = append(rgd.Spec.Resources, &v1alpha1.Resource{
			ID:          id,
			Template:    runtime.RawExtension{Raw: templateRaw},
			ReadyWhen:   in.ReadyWhen,
			IncludeWhen: in.IncludeWhen,
		})
	}

	return rgd, nil
}

// ToYAML renders rgd as the YAML document a user would `kubectl apply -f`,
// the format the CLI/library writes when targeting the Kro executor (§4.7).
func ToYAML(rgd *v1alpha1.ResourceGraphDefinition) ([]byte, error) {
	return yaml.Marshal(rgd)
}

func nonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// simpleSchemaRaw renders a field-name -> SimpleSchema-type-string map into
// the YAML-as-JSON RawExtension the instance CRD schema expects, matching
// the shape pkg/simpleschema parses.
func simpleSchemaRaw(fields map[string]string) ([]byte, error) {
	m := make(map[string]any, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	return yaml.YAMLToJSON(mustYAML(m))
}

// renderStatus renders the status field map, converting any *ref.CelExpression
// or ref.ResourceRef value to its "${...}" template string; every other
// value is assumed to already be a SimpleSchema type string.
func renderStatus(fields map[string]any) ([]byte, error) {
	rendered := make(map[string]any, len(fields))
	for k, v := range fields {
		rendered[k] = renderValue(v)
	}
	return yaml.YAMLToJSON(mustYAML(rendered))
}

// renderManifest walks a resource's template recursively, replacing any
// embedded ref.ResourceRef/*ref.CelExpression with its "${...}" string, and
// marshals the result to JSON for the RGD resource's Template field.
func renderManifest(manifest map[string]any) ([]byte, error) {
	return json.Marshal(renderValue(manifest))
}

func renderValue(v any) any {
	switch x := v.(type) {
	case ref.ResourceRef:
		return "${" + x.String() + "}"
	case *ref.ResourceRef:
		return "${" + x.String() + "}"
	case *ref.CelExpression:
		return x.Template()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = renderValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = renderValue(val)
		}
		return out
	default:
		return v
	}
}

func mustYAML(m map[string]any) []byte {
	b, err := yaml.Marshal(m)
	if err != nil {
		// m is always built from plain strings/maps above; Marshal on that
		// shape cannot fail.
		panic(err)
	}
	return b
}

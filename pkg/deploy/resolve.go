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
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/typekro/typekro-go/pkg/cel"
	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/expr"
	"github.com/typekro/typekro-go/pkg/ref"
)

// schemaVarName is the CEL identifier ref.ResourceRef.String renders the
// __schema__ sentinel id as (pkg/ref's doc comment on ResourceRef.String).
const schemaVarName = "schema"

// Resolver resolves refs and CelExpressions captured as live Go values
// during composition against the observed state of already-deployed
// siblings, the direct executor's counterpart to
// pkg/runtime/resolver.Resolver's string-templated resolution against a
// pre-supplied data map: here nothing is pre-supplied, values are read
// straight out of each sibling's live unstructured object as its task
// completes.
type Resolver struct {
	vars map[string]map[string]interface{}
	ids  []string
}

// NewResolver builds a Resolver that will accept observations for
// resourceIDs (and the schema, always implicitly available).
func NewResolver(resourceIDs []string) *Resolver {
	return &Resolver{
		vars: make(map[string]map[string]interface{}, len(resourceIDs)+1),
		ids:  resourceIDs,
	}
}

// SetObserved records obj's full Object map as the current state of
// resourceID, so subsequent ResolveRef/ResolveValue calls for refs pointing
// at resourceID succeed.
func (r *Resolver) SetObserved(resourceID string, obj *unstructured.Unstructured) {
	if obj == nil {
		return
	}
	r.vars[resourceID] = obj.Object
}

// SetSchema records the composition's own spec/status values, the data a
// `__schema__` ref resolves against.
func (r *Resolver) SetSchema(spec, status map[string]interface{}) {
	r.vars[ref.SchemaResourceID] = map[string]interface{}{"spec": spec, "status": status}
}

func varName(resourceID string) string {
	if resourceID == ref.SchemaResourceID {
		return schemaVarName
	}
	return resourceID
}

// ResolveRef resolves a single ref against observed siblings, returning
// *errs.ExpressionPendingError when the target resource has not been
// observed yet or the field path does not (yet) resolve to a value.
func (r *Resolver) ResolveRef(rr ref.ResourceRef) (interface{}, error) {
	obj, ok := r.vars[rr.ResourceID]
	if !ok {
		return nil, &errs.ExpressionPendingError{ResourceID: rr.ResourceID, FieldPath: rr.FieldPath}
	}
	if rr.FieldPath == "" {
		return obj, nil
	}
	value, err := getValueAtPath(obj, rr.FieldPath)
	if err != nil {
		return nil, &errs.ExpressionPendingError{ResourceID: rr.ResourceID, FieldPath: rr.FieldPath}
	}
	return value, nil
}

// ResolveValue walks a manifest-shaped value (the live-Go-value tree
// pkg/expr.Analyze classifies), replacing every ref.ResourceRef/
// *ref.CelExpression it finds with its resolved value. Maps and slices are
// copied rather than mutated in place, matching the functional style
// pkg/serialize.renderValue uses for the equivalent string-rendering walk.
func (r *Resolver) ResolveValue(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case ref.ResourceRef:
		return r.ResolveRef(x)
	case *ref.ResourceRef:
		if x == nil {
			return nil, nil
		}
		return r.ResolveRef(*x)
	case *ref.CelExpression:
		if x == nil {
			return nil, nil
		}
		return r.evaluateCel(x)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, child := range x {
			rv, err := r.ResolveValue(child)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, child := range x {
			rv, err := r.ResolveValue(child)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// evaluateCel compiles and evaluates every hole in the expression's template
// against the current observations, then renders the template: a standalone
// expression ("${foo}" with no surrounding literal) returns the hole's
// native Go value directly, otherwise every hole is stringified into the
// surrounding literal text.
func (r *Resolver) evaluateCel(expression *ref.CelExpression) (interface{}, error) {
	if expression.IsStandalone() {
		return r.evalHole(expression)
	}

	var b strings.Builder
	for _, p := range expression.Parts() {
		if !p.IsHole() {
			b.WriteString(p.Literal)
			continue
		}
		v, err := r.evalHole(ref.NewStandaloneCelExpression(p.Expr))
		if err != nil {
			return nil, err
		}
		b.WriteString(fmt.Sprintf("%v", v))
	}
	return b.String(), nil
}

// evalHole resolves the ids a single hole's CEL snippet references (via the
// same lexical scan pkg/expr uses to validate refs at composition time) and
// fails fast with ExpressionPending when one has not been observed yet,
// rather than letting CEL itself report a confusing "no such attribute"
// compile error.
func (r *Resolver) evalHole(standalone *ref.CelExpression) (interface{}, error) {
	expr := standalone.Parts()[0].Expr
	for _, id := range referencedResourceIDs(standalone) {
		if _, ok := r.vars[id]; !ok {
			return nil, &errs.ExpressionPendingError{ResourceID: id, FieldPath: expr}
		}
	}

	env, err := cel.DefaultEnvironment(cel.WithResourceIDs(r.knownVarNames()))
	if err != nil {
		return nil, fmt.Errorf("building CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling CEL expression %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building CEL program %q: %w", expr, err)
	}

	activation := make(map[string]interface{}, len(r.vars))
	for id, obj := range r.vars {
		activation[varName(id)] = obj
	}
	out, _, err := prg.Eval(activation)
	if err != nil {
		return nil, fmt.Errorf("evaluating CEL expression %q: %w", expr, err)
	}
	return cel.GoNativeType(out)
}

func (r *Resolver) knownVarNames() []string {
	names := make([]string, 0, len(r.ids)+1)
	names = append(names, schemaVarName)
	names = append(names, r.ids...)
	return names
}

// referencedResourceIDs reuses pkg/expr's dependency-extraction walk (the
// same one the dependency graph builds edges from) over a single hole, so
// "which ids does this snippet depend on" is answered identically whether
// the caller is building the graph or resolving a value at deploy time.
func referencedResourceIDs(standalone *ref.CelExpression) []string {
	return expr.CollectResourceIDs(standalone)
}

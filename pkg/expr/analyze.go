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

// Package expr implements the expression analyzer (C3): it classifies an
// arbitrary Go value produced by a composition callback as static, a single
// ref, an existing CelExpression, or a composite of the above, the same
// structural recognition pkg/graph/parser.ParseResource performs over a
// schema-declared manifest, but over host values instead of parsed YAML.
package expr

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/ref"
)

// Target names which executor a composition is being analyzed for; it
// changes how a Classification should be rendered (see §4.2 of the design).
type Target string

const (
	TargetDirect Target = "direct"
	TargetKro    Target = "kro"
)

// FactoryContext carries the information the analyzer needs to validate refs
// against: which ids are known, and which executor is being targeted.
type FactoryContext struct {
	Target             Target
	AvailableResources map[string]struct{}
	ExternalResources  map[string]struct{}
}

// NewFactoryContext builds a FactoryContext from a plain id list.
func NewFactoryContext(target Target, availableIDs []string) FactoryContext {
	available := make(map[string]struct{}, len(availableIDs))
	for _, id := range availableIDs {
		available[id] = struct{}{}
	}
	return FactoryContext{Target: target, AvailableResources: available}
}

func (f FactoryContext) knows(resourceID string) bool {
	if resourceID == ref.SchemaResourceID {
		return true
	}
	if _, ok := f.AvailableResources[resourceID]; ok {
		return true
	}
	_, ok := f.ExternalResources[resourceID]
	return ok
}

// Kind is the classification a value receives from Analyze.
type Kind string

const (
	KindStatic        Kind = "static"
	KindRef           Kind = "ref"
	KindCelExpression Kind = "celExpression"
	KindComposite     Kind = "composite"
)

// Classification is the result of analyzing one host value.
type Classification struct {
	Kind  Kind
	Value any
	Ref   *ref.ResourceRef
	Cel   *ref.CelExpression
}

// IsDynamic reports whether this classification carries any ref, directly or
// transitively — the structural rule §4.2 uses for field partitioning.
func (c Classification) IsDynamic() bool {
	return c.Kind != KindStatic
}

// Analyze classifies a single host value per the C3 conversion rules. It
// recurses into maps, slices, and structs to find and validate nested refs,
// but only ever returns one of the four top-level kinds for the root value.
func Analyze(x any, fctx FactoryContext) (Classification, error) {
	switch v := x.(type) {
	case nil:
		return Classification{Kind: KindStatic, Value: nil}, nil
	case ref.ResourceRef:
		if err := validateRef(v, fctx); err != nil {
			return Classification{}, err
		}
		r := v
		return Classification{Kind: KindRef, Ref: &r}, nil
	case *ref.ResourceRef:
		if v == nil {
			return Classification{Kind: KindStatic, Value: nil}, nil
		}
		return Analyze(*v, fctx)
	case *ref.CelExpression:
		if v == nil {
			return Classification{Kind: KindStatic, Value: nil}, nil
		}
		if err := validateTemplateRefs(v, fctx); err != nil {
			return Classification{}, err
		}
		return Classification{Kind: KindCelExpression, Cel: v}, nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Map:
		return analyzeComposite(x, fctx)
	case reflect.Slice, reflect.Array:
		return analyzeComposite(x, fctx)
	case reflect.Struct:
		return analyzeComposite(x, fctx)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return Classification{Kind: KindStatic, Value: nil}, nil
		}
		return Analyze(rv.Elem().Interface(), fctx)
	default:
		// Primitive: string, bool, number. Nothing dynamic can hide here
		// except through a previously-built CelExpression/ResourceRef, both
		// handled above.
		return Classification{Kind: KindStatic, Value: x}, nil
	}
}

// analyzeComposite walks a map/slice/struct, validating every ref and
// CelExpression beneath it. Any dynamic descendant makes the result
// KindComposite, whose Value is the container itself, unchanged: the
// dynamic children stay in place and no combined CelExpression is built.
//
// Object/array literals with no dynamic descendant are returned unchanged as
// static.
func analyzeComposite(x any, fctx FactoryContext) (Classification, error) {
	dynamic, err := hasDynamicDescendant(x, fctx)
	if err != nil {
		return Classification{}, err
	}
	if !dynamic {
		return Classification{Kind: KindStatic, Value: x}, nil
	}
	return Classification{Kind: KindComposite, Value: x}, nil
}

// hasDynamicDescendant recurses through a value, validating every ref it
// finds and reporting whether any was found.
func hasDynamicDescendant(x any, fctx FactoryContext) (bool, error) {
	switch v := x.(type) {
	case nil:
		return false, nil
	case ref.ResourceRef:
		return true, validateRef(v, fctx)
	case *ref.ResourceRef:
		if v == nil {
			return false, nil
		}
		return true, validateRef(*v, fctx)
	case *ref.CelExpression:
		if v == nil {
			return false, nil
		}
		return true, validateTemplateRefs(v, fctx)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Map:
		any := false
		for _, key := range rv.MapKeys() {
			child, err := hasDynamicDescendant(rv.MapIndex(key).Interface(), fctx)
			if err != nil {
				return false, err
			}
			any = any || child
		}
		return any, nil
	case reflect.Slice, reflect.Array:
		any := false
		for i := 0; i < rv.Len(); i++ {
			child, err := hasDynamicDescendant(rv.Index(i).Interface(), fctx)
			if err != nil {
				return false, err
			}
			any = any || child
		}
		return any, nil
	case reflect.Struct:
		any := false
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			child, err := hasDynamicDescendant(rv.Field(i).Interface(), fctx)
			if err != nil {
				return false, err
			}
			any = any || child
		}
		return any, nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return false, nil
		}
		return hasDynamicDescendant(rv.Elem().Interface(), fctx)
	default:
		return false, nil
	}
}

func validateRef(r ref.ResourceRef, fctx FactoryContext) error {
	if !ref.ValidFieldPath(r.FieldPath) {
		return &errs.InvalidFieldPathError{FieldPath: r.FieldPath, Reason: "does not match the field path grammar"}
	}
	if !fctx.knows(r.ResourceID) {
		return &errs.UnknownResourceError{ResourceID: r.ResourceID, FieldPath: r.FieldPath}
	}
	return nil
}

func validateTemplateRefs(c *ref.CelExpression, fctx FactoryContext) error {
	for _, p := range c.Parts() {
		if !p.IsHole() {
			continue
		}
		for _, id := range referencedIDs(p.Expr) {
			if !fctx.knows(id) {
				return &errs.UnknownResourceError{ResourceID: id, FieldPath: p.Expr}
			}
		}
	}
	return nil
}

// referencedIDs extracts the leading identifier of each dotted access found
// in a raw CEL snippet, a best-effort lexical scan (the snippet is not
// parsed with the full CEL grammar). The identifier "schema" is reported as
// ref.SchemaResourceID, the id ref.ResourceRef.String renders as "schema".
func referencedIDs(celSnippet string) []string {
	var ids []string
	seen := map[string]struct{}{}
	var cur strings.Builder
	var before rune // the character just ahead of the identifier in cur
	flush := func(next rune) {
		if cur.Len() == 0 {
			return
		}
		id := cur.String()
		cur.Reset()
		if before == '.' || (next != '.' && next != '[') || (id[0] >= '0' && id[0] <= '9') {
			return
		}
		if id == "schema" {
			id = ref.SchemaResourceID
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	var prev rune
	for _, r := range celSnippet {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || (r >= '0' && r <= '9'):
			if cur.Len() == 0 {
				before = prev
			}
			cur.WriteRune(r)
		default:
			flush(r)
		}
		prev = r
	}
	flush(0)
	return ids
}

// Sprintf is the host-native analogue of a template string: if every
// argument is static, the formatted string is returned as a plain static
// value; if any argument is a ref or CelExpression, the result is a new
// CelExpression whose template interleaves the literal segments of format
// with holes for each dynamic argument.
func Sprintf(format string, args ...any) (any, error) {
	parts, err := sprintfParts(format, args)
	if err != nil {
		return nil, err
	}
	anyDynamic := false
	for _, p := range parts {
		if p.IsHole() {
			anyDynamic = true
			break
		}
	}
	if !anyDynamic {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(p.Literal)
		}
		return b.String(), nil
	}
	return ref.NewCelExpression(parts...), nil
}

func sprintfParts(format string, args []any) ([]ref.Part, error) {
	segments := strings.Split(format, "%s")
	if len(segments) != len(args)+1 {
		return nil, fmt.Errorf("expr.Sprintf: format has %d verbs, got %d args", len(segments)-1, len(args))
	}
	var parts []ref.Part
	for i, seg := range segments {
		if seg != "" {
			parts = append(parts, ref.Part{Literal: seg})
		}
		if i == len(args) {
			continue
		}
		switch v := args[i].(type) {
		case ref.ResourceRef:
			parts = append(parts, ref.Part{Expr: v.String()})
		case *ref.CelExpression:
			if v.IsStandalone() {
				parts = append(parts, v.Parts()[0])
			} else {
				parts = append(parts, ref.Part{Expr: v.Template()})
			}
		default:
			parts = append(parts, ref.Part{Literal: fmt.Sprintf("%v", v)})
		}
	}
	return parts, nil
}

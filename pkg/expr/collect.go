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

package expr

import (
	"reflect"

	"github.com/typekro/typekro-go/pkg/ref"
)

// CollectResourceIDs walks x the same way hasDynamicDescendant does, but
// instead of a bool it returns the de-duplicated set of resource ids every
// ref/CelExpression hole beneath x points at, in first-seen order, excluding
// the `__schema__` root. This is how the dependency graph (pkg/graph)
// extracts edges from a composition's resources without re-walking the
// manifest a second time with a different traversal.
func CollectResourceIDs(x any) []string {
	var ids []string
	seen := map[string]struct{}{}
	add := func(id string) {
		if id == ref.SchemaResourceID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	collectResourceIDs(x, add)
	return ids
}

func collectResourceIDs(x any, add func(string)) {
	switch v := x.(type) {
	case nil:
		return
	case ref.ResourceRef:
		add(v.ResourceID)
		return
	case *ref.ResourceRef:
		if v == nil {
			return
		}
		add(v.ResourceID)
		return
	case *ref.CelExpression:
		if v == nil {
			return
		}
		for _, p := range v.Parts() {
			if !p.IsHole() {
				continue
			}
			for _, id := range referencedIDs(p.Expr) {
				add(id)
			}
		}
		return
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Map:
		for _, key := range rv.MapKeys() {
			collectResourceIDs(rv.MapIndex(key).Interface(), add)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			collectResourceIDs(rv.Index(i).Interface(), add)
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			collectResourceIDs(rv.Field(i).Interface(), add)
		}
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return
		}
		collectResourceIDs(rv.Elem().Interface(), add)
	}
}

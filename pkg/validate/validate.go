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

// Package validate implements the validator (C11): resource id naming,
// composition name projection, ref target and field path checks, and status
// partitioning. It does not compile or check CEL expressions. Id naming rules are grounded on
// pkg/graph/validation.go's camelCase/reserved-keyword checks, generalized
// with a lenient repair mode backed by gobuffalo/flect instead of kro's
// reject-only behavior.
package validate

import (
	"regexp"

	"github.com/gobuffalo/flect"

	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/ref"
)

// Mode selects how a naming violation is handled.
type Mode string

const (
	// ModeStrict rejects any id that does not already match the naming
	// regex.
	ModeStrict Mode = "strict"
	// ModeLenient repairs kebab/snake_case ids into camelCase instead of
	// rejecting them.
	ModeLenient Mode = "lenient"
)

var lowerCamelCase = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)

var reservedWords = map[string]struct{}{
	"apiVersion": {}, "context": {}, "dependency": {}, "dependencies": {},
	"externalRef": {}, "externalReference": {}, "externalRefs": {}, "externalReferences": {},
	"graph": {}, "instance": {}, "kind": {}, "metadata": {}, "namespace": {},
	"object": {}, "resource": {}, "resourcegraphdefinition": {}, "resources": {},
	"runtime": {}, "serviceAccountName": {}, "schema": {}, "spec": {}, "status": {},
	"kro": {}, "variables": {}, "vars": {}, "version": {},
}

// NormalizeID repairs a kebab-case/snake_case/PascalCase id into the
// lowerCamelCase form the naming regex requires.
func NormalizeID(id string) string {
	return flect.LowerCamelize(id)
}

// ValidateResourceID checks id against the naming regex and the reserved
// word list. In ModeLenient, a non-conforming id is repaired and returned
// alongside a nil error; in ModeStrict, it is rejected with a suggested
// replacement in the error.
func ValidateResourceID(id string, mode Mode) (string, error) {
	if _, reserved := reservedWords[id]; reserved {
		return "", &errs.InvalidCompositionNameError{Name: id, Reason: "id is a reserved word"}
	}
	if lowerCamelCase.MatchString(id) {
		return id, nil
	}
	repaired := NormalizeID(id)
	if mode == ModeLenient && lowerCamelCase.MatchString(repaired) {
		return repaired, nil
	}
	return "", &errs.InvalidFieldPathError{
		FieldPath: id,
		Reason:    "id is not lowerCamelCase; suggested: " + repaired,
	}
}

// ValidateCompositionName projects name to a dashed lower-case label
// (flect.Dasherize, so "WebApp" becomes "web-app") and checks that the
// projection is non-empty and does not exceed 253 characters (§4.5). No
// other RFC1123 rule is checked.
func ValidateCompositionName(name string) (string, error) {
	projected := flect.Dasherize(name)
	if len(projected) == 0 {
		return "", &errs.InvalidCompositionNameError{Name: name, Reason: "name projects to an empty RFC1123 label"}
	}
	if len(projected) > 253 {
		return "", &errs.InvalidCompositionNameError{Name: name, Reason: "RFC1123 projection exceeds 253 characters"}
	}
	return projected, nil
}

// Resources validates every resource id in inputs, returning the possibly
// repaired ids keyed by original id. It fails on the first strict-mode
// violation, duplicate-after-repair collision, or reserved-word id.
func Resources(inputs []composition.ResourceInput, mode Mode) (map[string]string, error) {
	renamed := make(map[string]string, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		id, err := ValidateResourceID(in.ID, mode)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			return nil, &errs.DuplicateResourceIDError{ResourceID: id}
		}
		seen[id] = struct{}{}
		renamed[in.ID] = id
	}
	return renamed, nil
}

// Refs validates that every ref points at a known id, `__schema__`, or a
// declared external id, and that its field path matches the §3 grammar.
func Refs(refs []ref.ResourceRef, knownIDs map[string]struct{}, externalIDs map[string]struct{}) error {
	for _, r := range refs {
		if !ref.ValidFieldPath(r.FieldPath) {
			return &errs.InvalidFieldPathError{FieldPath: r.FieldPath, Reason: "malformed field path"}
		}
		if r.IsSchemaRef() {
			continue
		}
		if _, ok := knownIDs[r.ResourceID]; ok {
			continue
		}
		if _, ok := externalIDs[r.ResourceID]; ok {
			continue
		}
		return &errs.UnknownResourceError{ResourceID: r.ResourceID, FieldPath: r.FieldPath}
	}
	return nil
}

// StatusField partitions a status map's top-level fields into static and
// dynamic per §3's invariant, failing if a field tagged static is found to
// transitively contain a ref (isDynamic reports that for a given value).
func StatusField(fieldName string, isDynamic bool, declaredStatic bool) error {
	if declaredStatic && isDynamic {
		return &errs.StatusPartitionError{
			FieldPath: fieldName,
			Reason:    "static status field transitively contains a ref",
		}
	}
	return nil
}

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

// Package ref implements the reference model (C1) and the host-native
// capture mechanism (C2) that a host language without a dynamic member-access
// proxy uses in place of one, per the design notes: a builder returned from a
// root constructor (Resource/Schema) that accumulates a field path one
// segment at a time.
package ref

import (
	"fmt"
	"regexp"
)

// SchemaResourceID is the reserved resource id denoting the composition's
// own spec/status, analogous to `__schema__` in the spec.
const SchemaResourceID = "__schema__"

// fieldPathSegment matches a single path segment: a dotted member name or a
// bracketed non-negative integer index.
var fieldPathSegment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$|^\[[0-9]+\]$`)

// fieldPathRegex is the full-path validator from §3 of the spec.
var fieldPathRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*|\[[0-9]+\])*$`)

// ResourceRef is a symbolic pointer to a field on a resource or on the
// composition's own schema. It is immutable and directly `==`-comparable,
// since all of its fields are plain strings; `==` compares TypeHint too.
type ResourceRef struct {
	// ResourceID is the id of the referenced resource, or SchemaResourceID.
	ResourceID string
	// FieldPath is the dot/bracket path into that resource's manifest.
	FieldPath string
	// TypeHint optionally names the host type the caller expects back; it is
	// advisory only. Refs with equal ResourceID and FieldPath but different
	// TypeHint are not `==`.
	TypeHint string
}

// IsSchemaRef reports whether the ref points into the composition's own
// schema rather than a sibling resource.
func (r ResourceRef) IsSchemaRef() bool {
	return r.ResourceID == SchemaResourceID
}

// String renders the ref as a raw "resourceId.fieldPath" CEL snippet, the
// form used inside a `${...}` hole. SchemaResourceID renders as "schema",
// the identifier bound in the CEL evaluation environment
// (pkg/cel.DefaultEnvironment), not the internal sentinel id.
func (r ResourceRef) String() string {
	id := r.ResourceID
	if id == SchemaResourceID {
		id = "schema"
	}
	if r.FieldPath == "" {
		return id
	}
	return id + "." + r.FieldPath
}

// Builder accumulates a field path one segment at a time and finally
// materializes it into a ResourceRef. It is the host-native analogue of the
// dynamic proxy from §4.1: reading proxy.a.b[0].c corresponds to
// Resource("id").Field("a").Field("b").Index(0).Field("c").
type Builder struct {
	resourceID string
	segments   []string
	err        error
}

// Resource starts a new builder rooted at a sibling resource's id. An empty
// id is rejected lazily: Ref() will return the zero ResourceRef and Err()
// the InvalidFieldPath-shaped error.
func Resource(id string) *Builder {
	b := &Builder{resourceID: id}
	if id == "" {
		b.err = fmt.Errorf("resource id must not be empty")
	}
	return b
}

// Schema starts a new builder rooted at the composition's own schema
// (spec/status), the equivalent of the `__schema__` root.
func Schema() *Builder {
	return &Builder{resourceID: SchemaResourceID}
}

// Field appends a dotted member access.
func (b *Builder) Field(name string) *Builder {
	if b.err != nil {
		return b
	}
	if !fieldPathSegment.MatchString(name) {
		b.err = fmt.Errorf("invalid field segment %q", name)
		return b
	}
	b.segments = append(b.segments, name)
	return b
}

// Index appends a bracketed array index access.
func (b *Builder) Index(i int) *Builder {
	if b.err != nil {
		return b
	}
	if i < 0 {
		b.err = fmt.Errorf("invalid index %d: must be non-negative", i)
		return b
	}
	b.segments = append(b.segments, fmt.Sprintf("[%d]", i))
	return b
}

// Err returns any error accumulated while building the path.
func (b *Builder) Err() error {
	return b.err
}

// Ref materializes the accumulated path into an immutable ResourceRef. It
// panics if the builder accumulated an error; callers that need the error
// without panicking should check Err() first, or use TryRef.
func (b *Builder) Ref() ResourceRef {
	r, err := b.TryRef()
	if err != nil {
		panic(err)
	}
	return r
}

// TryRef materializes the accumulated path, returning an error instead of
// panicking. Ref(Ref(x)) == Ref(x): calling TryRef twice on the same builder
// yields equal ResourceRef values, satisfying the analyzer's idempotence
// property.
func (b *Builder) TryRef() (ResourceRef, error) {
	if b.err != nil {
		return ResourceRef{}, b.err
	}
	path := joinPath(b.segments)
	if path != "" && !fieldPathRegex.MatchString(path) {
		return ResourceRef{}, fmt.Errorf("invalid field path %q", path)
	}
	return ResourceRef{ResourceID: b.resourceID, FieldPath: path}, nil
}

func joinPath(segments []string) string {
	var out string
	for _, s := range segments {
		if s == "" {
			continue
		}
		if s[0] == '[' {
			out += s
			continue
		}
		if out == "" {
			out = s
		} else {
			out += "." + s
		}
	}
	return out
}

// ValidFieldPath reports whether path matches the §3 grammar. It is exposed
// so validators (C11) and the analyzer (C3) can reuse the exact same rule
// the builder enforces.
func ValidFieldPath(path string) bool {
	return path == "" || fieldPathRegex.MatchString(path)
}

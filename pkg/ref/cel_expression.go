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

package ref

import "strings"

// Part is one segment of a CelExpression's template: either a literal string
// chunk or a hole enclosing a sub-expression (a raw CEL snippet, built from
// refs and operators by the analyzer).
type Part struct {
	// Literal holds the text when this part is a literal segment.
	Literal string
	// Expr holds the raw CEL snippet when this part is a hole. Exactly one
	// of Literal/Expr is non-empty (a part is never both).
	Expr string
}

// IsHole reports whether this part is a `${...}` hole rather than a literal
// chunk.
func (p Part) IsHole() bool {
	return p.Expr != ""
}

// CelExpression is a string template with `${...}` holes, each enclosing a
// CEL snippet over refs and literals. It is immutable once constructed via
// NewCelExpression, which normalizes adjacent literal parts by collapsing
// them into one.
type CelExpression struct {
	template string
	parts    []Part
}

// NewCelExpression builds a normalized CelExpression from parts, collapsing
// any adjacent literal parts into a single literal and recomputing the
// template string from the normalized parts.
func NewCelExpression(parts ...Part) *CelExpression {
	normalized := normalizeParts(parts)
	return &CelExpression{
		template: renderTemplate(normalized),
		parts:    normalized,
	}
}

// NewStandaloneCelExpression builds a CelExpression consisting of exactly
// one hole, e.g. for a field whose entire value is "${deployment.status.readyReplicas}".
func NewStandaloneCelExpression(expr string) *CelExpression {
	return &CelExpression{
		template: "${" + expr + "}",
		parts:    []Part{{Expr: expr}},
	}
}

// Template returns the normalized "literal${expr}literal..." string.
func (c *CelExpression) Template() string {
	return c.template
}

// Parts returns the normalized parts making up the template.
func (c *CelExpression) Parts() []Part {
	return c.parts
}

// IsStandalone reports whether the expression is a single hole with no
// surrounding literal text (e.g. "${foo}" rather than "hello-${foo}").
func (c *CelExpression) IsStandalone() bool {
	return len(c.parts) == 1 && c.parts[0].IsHole()
}

func normalizeParts(parts []Part) []Part {
	var out []Part
	var pendingLiteral strings.Builder
	flush := func() {
		if pendingLiteral.Len() > 0 {
			out = append(out, Part{Literal: pendingLiteral.String()})
			pendingLiteral.Reset()
		}
	}
	for _, p := range parts {
		if p.IsHole() {
			flush()
			out = append(out, p)
			continue
		}
		if p.Literal != "" {
			pendingLiteral.WriteString(p.Literal)
		}
	}
	flush()
	return out
}

func renderTemplate(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p.IsHole() {
			b.WriteString("${")
			b.WriteString(p.Expr)
			b.WriteString("}")
			continue
		}
		b.WriteString(p.Literal)
	}
	return b.String()
}

// Copyright 2025 The Kube Resource Orchestrator Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

package graph

import (
	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/expr"
	"github.com/typekro/typekro-go/pkg/graph/dag"
)

// Plan is the processed dependency graph (C4) of a single composition
// evaluation: every first-class resource and every registered closure is a
// vertex, edges run from a user of a ref to the resource the ref targets,
// the same extraction rule `buildDependencyGraph` applies to CRD-parsed
// expressions in `builder.go`, here applied directly to the live
// `ref.ResourceRef`/`*ref.CelExpression` values a composition captures.
type Plan struct {
	DAG              *dag.DirectedAcyclicGraph[string]
	TopologicalOrder []string
	Levels           [][]string
	RollbackOrder    []string
}

// BuildFromComposition walks every registered resource and closure in ctx,
// extracts the resource ids its manifest (or, for a closure, its declared
// DependsOn list) refers to via pkg/expr.CollectResourceIDs, and builds the
// dependency graph (§4.3). Schema refs never produce an edge; external refs
// are permitted but likewise produce no edge, matching §3's ownership rule.
//
// A cycle is reported as *errs.CircularDependencyError, never a bare DAG
// error, so callers never need to unwrap `dag.CycleError` themselves.
func BuildFromComposition(ctx *composition.Context) (*Plan, error) {
	inputs := ctx.Resources()
	closures := ctx.Closures()
	external := ctx.ExternalIDs()

	vertices := make(map[string]struct{}, len(inputs)+len(closures))
	for _, in := range inputs {
		vertices[in.ID] = struct{}{}
	}
	for _, c := range closures {
		vertices[c.Name] = struct{}{}
	}

	g := dag.NewDirectedAcyclicGraph[string]()
	order := 0
	for _, in := range inputs {
		if err := g.AddVertex(in.ID, order); err != nil {
			return nil, err
		}
		order++
	}
	for _, c := range closures {
		if err := g.AddVertex(c.Name, order); err != nil {
			return nil, err
		}
		order++
	}

	addEdges := func(from string, candidateIDs []string) error {
		deps := make([]string, 0, len(candidateIDs))
		for _, id := range candidateIDs {
			if id == from {
				// Self-references are never real ordering constraints; a
				// resource may legitimately read back a field it also sets.
				continue
			}
			if _, isVertex := vertices[id]; !isVertex {
				// Not a declared resource/closure id: either it is marked
				// external (no edge, allowed to resolve at deploy time per
				// §3), or it is a CEL builtin/operator token our lexical
				// scanner over-collected (pkg/expr.referencedIDs is
				// best-effort; real validation already ran in pkg/expr.Analyze
				// before a resource reaches the graph builder).
				continue
			}
			deps = append(deps, id)
		}
		if len(deps) == 0 {
			return nil
		}
		if err := g.AddDependencies(from, deps); err != nil {
			if cycle := dag.AsCycleError[string](err); cycle != nil {
				return &errs.CircularDependencyError{Cycle: cycle.Cycle}
			}
			return err
		}
		return nil
	}

	for _, in := range inputs {
		if err := addEdges(in.ID, expr.CollectResourceIDs(in.Manifest)); err != nil {
			return nil, err
		}
	}
	for _, c := range closures {
		if err := addEdges(c.Name, c.DependsOn); err != nil {
			return nil, err
		}
	}
	_ = external // external ids never become vertices; documented above

	topo, err := g.TopologicalSort()
	if err != nil {
		if cycle := dag.AsCycleError[string](err); cycle != nil {
			return nil, &errs.CircularDependencyError{Cycle: cycle.Cycle}
		}
		return nil, err
	}
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	rollback, err := g.RollbackOrder()
	if err != nil {
		return nil, err
	}

	return &Plan{
		DAG:              g,
		TopologicalOrder: topo,
		Levels:           levels,
		RollbackOrder:    rollback,
	}, nil
}

// MaxParallelism returns the size of the widest level in the plan, the
// deploy algorithm's upper bound on concurrent per-level tasks (§3).
func (p *Plan) MaxParallelism() int {
	max := 0
	for _, level := range p.Levels {
		if len(level) > max {
			max = len(level)
		}
	}
	return max
}

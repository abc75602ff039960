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

// Package composition implements the composition context (C5): a callback
// runs with an explicit *Context through which every resource and closure it
// produces is registered. Go has no ambient thread-local state to hang an
// implicit "current context" off safely across goroutines, so unlike a
// dynamic-language port, the context here is an explicit function argument —
// the same choice the reference model (pkg/ref) makes over a hidden proxy.
// This keeps nested and concurrent compositions naturally isolated: each
// Context is its own value, never shared global state.
package composition

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/readiness"
)

// ResourceInput is the raw material a Context collects for one registered
// resource before the graph builder (pkg/graph) promotes it into a
// graph.Resource. It carries the manifest as analyzed by pkg/expr: refs and
// CelExpressions embedded in Manifest are still live Go values, not yet
// rendered to `${...}` strings — that happens in the serializer/executor
// depending on target.
type ResourceInput struct {
	ID          string
	GVR         schema.GroupVersionResource
	Namespaced  bool
	Manifest    map[string]any
	ReadyWhen   []string
	IncludeWhen []string
	// Evaluator overrides the readiness registry's default for this
	// resource's GVK, the host-native equivalent of §4.8's per-resource
	// readinessEvaluator attribute. Nil means: use the registry default, or
	// ready-on-existence if none is registered.
	Evaluator readiness.Evaluator
	// External marks a resource as living outside this composition (§3):
	// allowed to be referenced, but the composition never applies or rolls
	// it back.
	External bool
}

// ClosureFunc is a deployment-time side effect registered alongside
// first-class resources: it produces no manifest of its own, but may capture
// refs that make it participate in the dependency graph.
type ClosureFunc func(dctx DeploymentContext) ([]AppliedResource, error)

// DeploymentContext is handed to a closure when its turn in the level-order
// execution arrives.
type DeploymentContext struct {
	Ctx              context.Context
	ResolveReference func(resourceID, fieldPath string) (any, error)
	KubernetesAPI    any // concrete type is k8s.Interface; kept as any to avoid a pkg/k8s <-> pkg/composition import cycle risk as both evolve
	Namespace        string
	AlchemyScope     string
}

// AppliedResource is a record of one thing a closure (or the executor)
// created in the cluster, used for rollback (C10) exactly like a first-class
// resource's applied record.
type AppliedResource struct {
	GVK       schema.GroupVersionKind
	Namespace string
	Name      string
	Observed  *unstructured.Unstructured
}

type registeredClosure struct {
	name    string
	closure ClosureFunc
	refs    []string
}

// Context accumulates the resources and closures a single composition
// evaluation produces. It is not safe for concurrent registration from
// multiple goroutines — composition callbacks run single-threaded
// cooperatively per §5.
type Context struct {
	name      string
	resources map[string]ResourceInput
	order     []string
	closures  []registeredClosure
	external  map[string]struct{}
}

// New creates a root composition context named name (used to disambiguate
// ids on nested-composition collisions).
func New(name string) *Context {
	return &Context{
		name:      name,
		resources: make(map[string]ResourceInput),
		external:  make(map[string]struct{}),
	}
}

// MarkExternal declares a resource id as existing outside this composition
// (e.g. referenced but not managed here), so C3/C11 do not reject refs to it
// as unknown.
func (c *Context) MarkExternal(resourceID string) {
	c.external[resourceID] = struct{}{}
}

// ExternalIDs returns the ids marked external.
func (c *Context) ExternalIDs() map[string]struct{} {
	return c.external
}

// Register adds a resource to the context. A second registration under the
// same id with byte-identical manifest content is a no-op (idempotent by
// id); with differing content it fails with DuplicateResourceId.
func (c *Context) Register(input ResourceInput) error {
	if existing, ok := c.resources[input.ID]; ok {
		if manifestsEqual(existing.Manifest, input.Manifest) {
			return nil
		}
		return &errs.DuplicateResourceIDError{ResourceID: input.ID}
	}
	c.resources[input.ID] = input
	c.order = append(c.order, input.ID)
	return nil
}

// RegisterClosure records a deployment-time side effect. refs lists any
// resource ids the closure body is known to depend on (the caller supplies
// these because the closure body runs later, outside the analyzer's view).
func (c *Context) RegisterClosure(name string, closure ClosureFunc, refs ...string) error {
	for _, existing := range c.closures {
		if existing.name == name {
			return &errs.DuplicateResourceIDError{ResourceID: name}
		}
	}
	c.closures = append(c.closures, registeredClosure{name: name, closure: closure, refs: refs})
	return nil
}

// Resources returns the registered resources in registration order.
func (c *Context) Resources() []ResourceInput {
	out := make([]ResourceInput, len(c.order))
	for i, id := range c.order {
		out[i] = c.resources[id]
	}
	return out
}

// Closures returns the registered closures in registration order, paired
// with the resource ids they declared as dependencies.
func (c *Context) Closures() []ClosureEntry {
	out := make([]ClosureEntry, len(c.closures))
	for i, rc := range c.closures {
		out[i] = ClosureEntry{Name: rc.name, Func: rc.closure, DependsOn: rc.refs}
	}
	return out
}

// ClosureEntry is the public view of a registered closure.
type ClosureEntry struct {
	Name      string
	Func      ClosureFunc
	DependsOn []string
}

// Nested evaluates build inside a fresh child Context, then flattens its
// resources and closures into c. Ids colliding with an already-registered id
// in c are disambiguated by suffixing the child composition's own name; ids
// still colliding after that get a short uuid suffix as a last resort.
func (c *Context) Nested(childName string, build func(*Context) error) error {
	child := New(childName)
	if err := build(child); err != nil {
		return fmt.Errorf("nested composition %q: %w", childName, err)
	}

	rename := make(map[string]string, len(child.order))
	for _, id := range child.order {
		newID := id
		if _, collides := c.resources[newID]; collides {
			newID = id + "-" + sanitize(childName)
			if _, stillCollides := c.resources[newID]; stillCollides {
				newID = id + "-" + uuid.NewString()[:8]
			}
		}
		rename[id] = newID
	}

	for _, id := range child.order {
		input := child.resources[id]
		input.ID = rename[id]
		if err := c.Register(input); err != nil {
			return err
		}
	}
	for _, rc := range child.closures {
		deps := make([]string, len(rc.refs))
		for i, d := range rc.refs {
			if renamed, ok := rename[d]; ok {
				deps[i] = renamed
			} else {
				deps[i] = d
			}
		}
		if err := c.RegisterClosure(rc.name, rc.closure, deps...); err != nil {
			return err
		}
	}
	for id := range child.external {
		c.MarkExternal(id)
	}
	return nil
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}

func manifestsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok && bok {
		return manifestsEqual(am, bm)
	}
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !valuesEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}

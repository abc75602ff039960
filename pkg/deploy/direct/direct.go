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

// Package direct implements the Direct Executor (C7): it deploys a
// composition straight against a live cluster, level by level, without ever
// going through a Kro ResourceGraphDefinition. Grounded on the instance
// controller's reconcileInstance/reconcileResource pair
// (pkg/controller/instance/controller_reconcile.go) — get-then-create-or-patch,
// readiness gating, reverse-order teardown on failure — generalized from a
// single-threaded topological walk over a controller's persistent state to a
// level-parallel one-shot deploy with no persisted state of its own.
package direct

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gobuffalo/flect"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/typekro/typekro-go/pkg/closures"
	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/deploy"
	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/graph"
	"github.com/typekro/typekro-go/pkg/k8s"
	"github.com/typekro/typekro-go/pkg/readiness"
	"github.com/typekro/typekro-go/pkg/ref"
	"github.com/typekro/typekro-go/pkg/rollback"
)

// Executor deploys a composition directly, holding no state across Deploy
// calls — every dependency it needs (client, registry) arrives through
// deploy.Options, matching the teacher's reconciler which is likewise
// stateless across reconcile invocations (all state lives in the cluster).
type Executor struct{}

// NewExecutor returns a ready-to-use Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

type taskResult struct {
	id       string
	applied  []composition.AppliedResource
	observed *unstructured.Unstructured
	err      error
}

// Deploy runs the full §4.6 algorithm: build the dependency graph, walk it
// level by level applying resources and closures with bounded parallelism,
// wait for readiness when requested, and roll back everything successfully
// applied if any resource in a level fails terminally. statusSpec carries
// the composition's declared status shape (static literals alongside
// ref/CelExpression placeholders for dynamic fields), hydrated into the
// returned Result once every level has completed.
func (e *Executor) Deploy(ctx context.Context, compCtx *composition.Context, statusSpec map[string]interface{}, opts deploy.Options) (*deploy.Result, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("direct: deploy.Options.Client must not be nil")
	}
	if cb := opts.ProgressCallback; cb != nil {
		// Level tasks run concurrently; serialize their events.
		var mu sync.Mutex
		opts.ProgressCallback = func(ev deploy.Event) {
			mu.Lock()
			defer mu.Unlock()
			cb(ev)
		}
	}

	plan, err := graph.BuildFromComposition(compCtx)
	if err != nil {
		return nil, err
	}

	inputsByID := make(map[string]composition.ResourceInput, len(compCtx.Resources()))
	for _, in := range compCtx.Resources() {
		inputsByID[in.ID] = in
	}
	closuresByID := make(map[string]composition.ClosureEntry, len(compCtx.Closures()))
	for _, c := range compCtx.Closures() {
		closuresByID[c.Name] = c
	}

	resolver := deploy.NewResolver(plan.TopologicalOrder)
	resolver.SetSchema(nil, nil)

	registry := opts.Registry
	if registry == nil {
		registry = readiness.NewRegistry()
	}
	engine := readiness.NewEngine(opts.Client, registry)

	result := &deploy.Result{
		Observed: make(map[string]*unstructured.Unstructured, len(inputsByID)),
		Pending:  make(map[string]error),
	}

	var deployErr error
levels:
	for _, level := range plan.Levels {
		results := e.runLevel(ctx, level, inputsByID, closuresByID, resolver, engine, opts)
		for _, r := range results {
			if r.err != nil {
				if deployErr == nil {
					deployErr = fmt.Errorf("resource %q: %w", r.id, r.err)
				}
				opts.Progress(r.id, deploy.StateFailed, "", r.err)
				continue
			}
			result.Applied = append(result.Applied, r.applied...)
			if r.observed != nil {
				result.Observed[r.id] = r.observed
				resolver.SetObserved(r.id, r.observed)
			}
		}
		if deployErr != nil {
			break levels
		}
	}

	if deployErr != nil {
		e.rollback(ctx, result.Applied, opts)
		opts.Failed(deployErr)
		return result, deployErr
	}

	result.Status = hydrateStatus(resolver, statusSpec, result.Pending)
	opts.Completed(fmt.Sprintf("deployed %d resource(s)", len(result.Applied)))
	return result, nil
}

// runLevel executes every resource/closure in level concurrently, bounded by
// opts.MaxParallelism, and waits for all of them to reach a terminal state
// before returning — the §5 happens-before barrier between levels.
func (e *Executor) runLevel(
	ctx context.Context,
	level []string,
	inputsByID map[string]composition.ResourceInput,
	closuresByID map[string]composition.ClosureEntry,
	resolver *deploy.Resolver,
	engine *readiness.Engine,
	opts deploy.Options,
) []taskResult {
	ids := append([]string(nil), level...)
	sort.Strings(ids)

	limit := opts.MaxParallelism
	if limit <= 0 {
		limit = len(ids)
	}
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	out := make([]taskResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()

			if input, ok := inputsByID[id]; ok {
				applied, observed, err := e.deployResource(ctx, input, resolver, engine, opts)
				out[i] = taskResult{id: id, applied: applied, observed: observed, err: err}
				return
			}
			if c, ok := closuresByID[id]; ok {
				applied, err := e.runClosure(ctx, c, resolver, opts)
				out[i] = taskResult{id: id, applied: applied, err: err}
				return
			}
			out[i] = taskResult{id: id, err: fmt.Errorf("unknown graph vertex %q", id)}
		}(i, id)
	}
	wg.Wait()
	return out
}

// deployResource runs one resource through Pending -> Resolving -> Applying
// -> Created -> [WaitingReady] -> Ready, returning its applied record and
// observed object, or the error that drove it to Failed.
func (e *Executor) deployResource(
	ctx context.Context,
	input composition.ResourceInput,
	resolver *deploy.Resolver,
	engine *readiness.Engine,
	opts deploy.Options,
) ([]composition.AppliedResource, *unstructured.Unstructured, error) {
	opts.Progress(input.ID, deploy.StateResolving, "", nil)
	resolved, err := resolver.ResolveValue(input.Manifest)
	if err != nil {
		return nil, nil, err
	}
	manifest, ok := resolved.(map[string]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("resolved manifest is not an object (got %T)", resolved)
	}
	obj := &unstructured.Unstructured{Object: manifest}
	if obj.GetNamespace() == "" && input.Namespaced && opts.Namespace != "" {
		obj.SetNamespace(opts.Namespace)
	}

	opts.Progress(input.ID, deploy.StateApplying, "", nil)
	live, err := applyResource(ctx, opts.Client, input.GVR, obj, opts.DeploymentStrategy)
	if err != nil {
		return nil, nil, err
	}
	opts.Progress(input.ID, deploy.StateCreated, "", nil)

	if opts.WaitForReady {
		opts.Progress(input.ID, deploy.StateWaitingReady, "", nil)
		waitOpts := readiness.Options{
			PollInterval: opts.PollInterval,
			Timeout:      opts.Timeout,
			DebugLogging: opts.DebugLogging,
			OnDebug:      func(ev readiness.DebugEvent) { opts.Debug(input.ID, ev) },
		}
		eval := engine.EvaluatorFor(live.GroupVersionKind(), input.Evaluator)
		live, err = engine.Wait(ctx, input.GVR, live.GetNamespace(), live.GetName(), input.ID, eval, waitOpts)
		if err != nil {
			return []composition.AppliedResource{recordFor(input.ID, live)}, live, err
		}
	}

	opts.Progress(input.ID, deploy.StateReady, "", nil)
	return []composition.AppliedResource{recordFor(input.ID, live)}, live, nil
}

func recordFor(resourceID string, obj *unstructured.Unstructured) composition.AppliedResource {
	if obj == nil {
		return composition.AppliedResource{}
	}
	return composition.AppliedResource{
		GVK:       obj.GroupVersionKind(),
		Namespace: obj.GetNamespace(),
		Name:      obj.GetName(),
		Observed:  obj,
	}
}

// applyResource implements §4.6 step 3c: get, then create on absence, patch
// on presence, honoring the conflict strategy on a create-time 409.
func applyResource(ctx context.Context, client k8s.Interface, gvr schema.GroupVersionResource, obj *unstructured.Unstructured, strategy closures.Strategy) (*unstructured.Unstructured, error) {
	existing, err := client.Read(ctx, gvr, obj.GetNamespace(), obj.GetName())
	if err == nil {
		obj.SetResourceVersion(existing.GetResourceVersion())
		return client.Patch(ctx, gvr, obj)
	}
	var notFound *errs.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	created, err := client.Create(ctx, gvr, obj)
	if err == nil {
		return created, nil
	}
	var conflict *errs.ConflictError
	if !errors.As(err, &conflict) {
		return nil, err
	}
	switch strategy {
	case closures.StrategySkipIfExists:
		return client.Read(ctx, gvr, obj.GetNamespace(), obj.GetName())
	case closures.StrategyFail:
		return nil, err
	default: // StrategyReplace, "": retry as a patch.
		return client.Patch(ctx, gvr, obj)
	}
}

// runClosure hands a closure its turn, resolving any ref its DependsOn list
// names through the same Resolver the first-class resources use, so a
// closure's values can read a sibling's observed status exactly like a
// resource manifest field can.
func (e *Executor) runClosure(ctx context.Context, c composition.ClosureEntry, resolver *deploy.Resolver, opts deploy.Options) ([]composition.AppliedResource, error) {
	opts.Progress(c.Name, deploy.StateApplying, "", nil)
	dctx := composition.DeploymentContext{
		Ctx: ctx,
		ResolveReference: func(resourceID, fieldPath string) (any, error) {
			return resolver.ResolveRef(ref.ResourceRef{ResourceID: resourceID, FieldPath: fieldPath})
		},
		KubernetesAPI: opts.Client,
		Namespace:     opts.Namespace,
		AlchemyScope:  opts.AlchemyScope,
	}
	applied, err := c.Func(dctx)
	if err != nil {
		return applied, err
	}
	opts.Progress(c.Name, deploy.StateReady, "", nil)
	return applied, nil
}

// rollback tears down everything successfully applied, in the exact reverse
// of application order captured at runtime (§5), emitting an EventRollback
// per record through opts.ProgressCallback.
func (e *Executor) rollback(ctx context.Context, applied []composition.AppliedResource, opts deploy.Options) {
	if len(applied) == 0 {
		return
	}
	manager := rollback.NewManager(opts.Client)
	records := make([]rollback.Record, len(applied))
	for i, a := range applied {
		records[i] = rollback.RecordFromApplied(a.GVK.Kind, a, gvrForKind(a.GVK))
	}
	_ = manager.Rollback(ctx, records, rollback.Options{
		Timeout: opts.Timeout,
		OnProgress: func(ev rollback.ProgressEvent) {
			opts.Rollback(ev.ResourceID, string(ev.Status), ev.Err)
		},
	})
}

// gvrForKind derives a GroupVersionResource from a GVK using the same
// plural-lowercase convention pkg/closures falls back to when no discovery
// client is available; rollback records only need a best-effort GVR since
// the apply-time GVR (the authoritative one) is not carried on
// AppliedResource.
func gvrForKind(gvk schema.GroupVersionKind) schema.GroupVersionResource {
	resource := strings.ToLower(flect.Pluralize(gvk.Kind))
	return schema.GroupVersionResource{Group: gvk.Group, Version: gvk.Version, Resource: resource}
}

// hydrateStatus resolves every value in statusSpec against resolver,
// recording a field as pending rather than failing the whole deploy when its
// value is not yet observable (§4.6 step 4).
func hydrateStatus(resolver *deploy.Resolver, statusSpec map[string]interface{}, pending map[string]error) map[string]interface{} {
	out := make(map[string]interface{}, len(statusSpec))
	for field, v := range statusSpec {
		resolved, err := resolver.ResolveValue(v)
		if err != nil {
			pending[field] = err
			continue
		}
		out[field] = resolved
	}
	return out
}

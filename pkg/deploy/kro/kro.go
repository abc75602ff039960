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

// Package kro implements the Kro Executor (C8): it never talks to
// first-class resources directly. Instead it serializes the composition to a
// ResourceGraphDefinition (C6), applies that RGD, then creates an instance of
// the composition's own CRD and watches `status.state`/`status.conditions`
// the Kro controller itself (the teacher, `kro-run/kro`) maintains — the
// library never re-derives readiness or re-evaluates CEL once Kro owns the
// object, matching §4.7's "Kro owns that" boundary.
package kro

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gobuffalo/flect"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/yaml"

	"github.com/typekro/typekro-go/api/v1alpha1"
	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/deploy"
	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/graph"
	"github.com/typekro/typekro-go/pkg/k8s"
	"github.com/typekro/typekro-go/pkg/readiness"
	"github.com/typekro/typekro-go/pkg/ref"
	"github.com/typekro/typekro-go/pkg/serialize"
)

// rgdGVR is the fixed, cluster-scoped GVR the teacher's own CRD manifests
// register the ResourceGraphDefinition type under.
var rgdGVR = schema.GroupVersionResource{Group: "kro.run", Version: "v1alpha1", Resource: "resourcegraphdefinitions"}

// Executor deploys a composition by delegating resource orchestration to a
// running Kro controller, holding no state of its own across Deploy calls.
type Executor struct{}

// NewExecutor returns a ready-to-use Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// InstanceRequest names the instance this Deploy call creates/updates: the
// schema the RGD is serialized with, and the desired spec values a user
// supplies for that schema (the equivalent of `kubectl apply -f instance.yaml`
// against the CRD the RGD generates).
type InstanceRequest struct {
	Name   string
	Spec   map[string]interface{}
	Schema serialize.SchemaSpec
}

// Deploy serializes compCtx into a ResourceGraphDefinition, applies it,
// creates/updates the instance CR, and (if WaitForReady) polls
// `status.state` until ACTIVE, a terminal FAILED/TERMINATING state, or
// timeout. Static status fields absent from the RGD schema (§4.5 keeps them
// out of the wire document) are hydrated locally from req.Schema.Status;
// dynamic fields are read back from the instance's own observed status,
// never recomputed.
func (e *Executor) Deploy(ctx context.Context, compCtx *composition.Context, req InstanceRequest, opts deploy.Options) (*deploy.Result, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("kro: deploy.Options.Client must not be nil")
	}

	plan, err := graph.BuildFromComposition(compCtx)
	if err != nil {
		return nil, err
	}

	rgd, err := serialize.ToResourceGraphDefinition(req.Name, req.Schema, compCtx, plan.TopologicalOrder, serialize.Options{})
	if err != nil {
		return nil, err
	}

	rgdObj, err := toUnstructured(rgd)
	if err != nil {
		return nil, fmt.Errorf("kro: converting RGD to unstructured: %w", err)
	}

	opts.Progress(rgd.Name, deploy.StateApplying, "applying ResourceGraphDefinition", nil)
	appliedRGD, err := applyClusterScoped(ctx, opts.Client, rgdGVR, rgdObj)
	if err != nil {
		opts.Failed(err)
		return nil, fmt.Errorf("kro: applying ResourceGraphDefinition %q: %w", rgd.Name, err)
	}
	opts.Progress(rgd.Name, deploy.StateCreated, "", nil)

	instanceGVR := instanceGVRFor(req.Schema)
	instanceObj := buildInstance(req, instanceGVR, opts.Namespace)

	opts.Progress(req.Name, deploy.StateApplying, "applying instance", nil)
	instance, err := applyNamespaced(ctx, opts.Client, instanceGVR, instanceObj)
	if err != nil {
		opts.Failed(err)
		return nil, fmt.Errorf("kro: applying instance %q: %w", req.Name, err)
	}
	opts.Progress(req.Name, deploy.StateCreated, "", nil)

	if opts.WaitForReady {
		opts.Progress(req.Name, deploy.StateWaitingReady, "", nil)
		engine := readiness.NewEngine(opts.Client, opts.Registry)
		waitOpts := readiness.Options{
			PollInterval: opts.PollInterval,
			Timeout:      opts.Timeout,
			DebugLogging: opts.DebugLogging,
			OnDebug:      func(ev readiness.DebugEvent) { opts.Debug(req.Name, ev) },
		}
		instance, err = engine.Wait(ctx, instanceGVR, instance.GetNamespace(), instance.GetName(), req.Name, evaluateInstanceState, waitOpts)
		if err != nil {
			opts.Failed(err)
			return nil, err
		}
	}
	opts.Progress(req.Name, deploy.StateReady, "", nil)

	pending := make(map[string]error)
	status := hydrateStaticStatus(req.Schema.Status, instance, pending)

	opts.Completed(fmt.Sprintf("instance %q active", req.Name))
	return &deploy.Result{
		Applied: []composition.AppliedResource{
			{GVK: appliedRGD.GroupVersionKind(), Name: appliedRGD.GetName(), Observed: appliedRGD},
			{GVK: instance.GroupVersionKind(), Namespace: instance.GetNamespace(), Name: instance.GetName(), Observed: instance},
		},
		Observed: map[string]*unstructured.Unstructured{req.Name: instance},
		Status:   status,
		Pending:  pending,
	}, nil
}

// evaluateInstanceState reads `status.state`/`status.conditions` the Kro
// controller itself writes (§4.7): ACTIVE is ready; FAILED and TERMINATING
// are terminal failures from this executor's point of view (a terminating
// instance is never what a Deploy call is waiting for); anything else
// (PROGRESSING, or absent) is not yet ready.
func evaluateInstanceState(live *unstructured.Unstructured) readiness.Result {
	state, _, _ := unstructured.NestedString(live.Object, "status", "state")
	switch state {
	case "ACTIVE":
		return readiness.Result{Ready: true, Reason: state}
	case "FAILED":
		return readiness.Result{Ready: false, Terminal: true, Reason: state, Message: "instance reconciliation failed"}
	case "TERMINATING":
		return readiness.Result{Ready: false, Terminal: true, Reason: state, Message: "instance is terminating"}
	default:
		return readiness.Result{Ready: false, Reason: state}
	}
}

func instanceGVRFor(s serialize.SchemaSpec) schema.GroupVersionResource {
	group := s.Group
	if group == "" {
		group = "kro.run"
	}
	resource := strings.ToLower(flect.Pluralize(s.Kind))
	return schema.GroupVersionResource{Group: group, Version: s.APIVersion, Resource: resource}
}

func buildInstance(req InstanceRequest, gvr schema.GroupVersionResource, namespace string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": gvr.GroupVersion().String(),
		"kind":       req.Schema.Kind,
		"metadata": map[string]interface{}{
			"name": req.Name,
		},
		"spec": req.Spec,
	}}
	if namespace != "" {
		obj.SetNamespace(namespace)
	}
	return obj
}

// applyClusterScoped and applyNamespaced implement the same
// get-then-create-or-patch algorithm §4.6 names for first-class resources,
// applied here to the RGD and instance objects the Kro executor itself
// owns; neither carries a conflict strategy since neither is a closure.
func applyClusterScoped(ctx context.Context, client k8s.Interface, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	return applyOne(ctx, client, gvr, obj)
}

func applyNamespaced(ctx context.Context, client k8s.Interface, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	return applyOne(ctx, client, gvr, obj)
}

func applyOne(ctx context.Context, client k8s.Interface, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	existing, err := client.Read(ctx, gvr, obj.GetNamespace(), obj.GetName())
	if err == nil {
		obj.SetResourceVersion(existing.GetResourceVersion())
		return client.Patch(ctx, gvr, obj)
	}
	var notFound *errs.NotFoundError
	if errors.As(err, &notFound) {
		return client.Create(ctx, gvr, obj)
	}
	return nil, err
}

// hydrateStaticStatus copies every non-ref/non-CEL field of schemaStatus
// verbatim (the RGD wire format never carries them — §4.5 keeps static
// status outside the schema block) and, for every dynamic field, reads back
// whatever Kro itself wrote to the instance's observed status, recording the
// field as pending when Kro has not populated it yet.
func hydrateStaticStatus(schemaStatus map[string]interface{}, instance *unstructured.Unstructured, pending map[string]error) map[string]interface{} {
	out := make(map[string]interface{}, len(schemaStatus))
	observedStatus, _, _ := unstructured.NestedMap(instance.Object, "status")

	for field, v := range schemaStatus {
		if isDynamic(v) {
			if observedStatus != nil {
				if value, ok := observedStatus[field]; ok {
					out[field] = value
					continue
				}
			}
			pending[field] = &errs.ExpressionPendingError{ResourceID: "__schema__", FieldPath: field}
			continue
		}
		out[field] = v
	}
	return out
}

func isDynamic(v interface{}) bool {
	switch v.(type) {
	case ref.ResourceRef, *ref.ResourceRef, *ref.CelExpression:
		return true
	default:
		return false
	}
}

// toUnstructured round-trips rgd through the same sigs.k8s.io/yaml encoding
// pkg/serialize already uses for ToYAML, rather than a second converter
// dependency: json tags on api/v1alpha1.ResourceGraphDefinition give an
// unstructured.Unstructured with the same field casing client-go expects.
func toUnstructured(rgd *v1alpha1.ResourceGraphDefinition) (*unstructured.Unstructured, error) {
	raw, err := serialize.ToYAML(rgd)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding RGD yaml: %w", err)
	}
	return &unstructured.Unstructured{Object: m}, nil
}

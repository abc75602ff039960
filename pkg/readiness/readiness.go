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

// Package readiness implements the readiness engine (C9): pluggable
// per-resource evaluators plus a polling loop with fixed-base backoff,
// timeout and debug eventing. The default registry reproduces the bit-exact
// behaviors kro's own instance controller waits on for the handful of
// well-known Kubernetes and Flux/cert-manager kinds it ships support for.
package readiness

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Result is what an Evaluator reports for one observation of a live object.
type Result struct {
	Ready    bool
	Terminal bool // true when Ready=false can never become true (e.g. Failed phase)
	Reason   string
	Message  string
	Details  map[string]interface{}
}

// Evaluator inspects a live object and reports whether it is ready. The
// default registry selects one by (apiVersion, kind); a resource may also
// carry a user-supplied Evaluator overriding the default.
type Evaluator func(live *unstructured.Unstructured) Result

// Registry maps a GroupVersionKind to its default Evaluator.
type Registry struct {
	evaluators map[schema.GroupVersionKind]Evaluator
}

// NewRegistry builds the default registry (§4.8): Deployment, Service, Job,
// DaemonSet, ReplicationController, the Flux HelmRepository/HelmRelease/
// Kustomization kinds, and the cert-manager Certificate/ClusterIssuer/
// Challenge kinds.
func NewRegistry() *Registry {
	r := &Registry{evaluators: make(map[schema.GroupVersionKind]Evaluator)}
	r.Register(schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}, EvaluateDeployment)
	r.Register(schema.GroupVersionKind{Group: "", Version: "v1", Kind: "Service"}, EvaluateService)
	r.Register(schema.GroupVersionKind{Group: "batch", Version: "v1", Kind: "Job"}, EvaluateJob)
	r.Register(schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "DaemonSet"}, EvaluateDaemonSet)
	r.Register(schema.GroupVersionKind{Group: "", Version: "v1", Kind: "ReplicationController"}, EvaluateReplicationController)
	for _, v := range []string{"v1beta2", "v2", "v2beta1", "v2beta2"} {
		r.Register(schema.GroupVersionKind{Group: "source.toolkit.fluxcd.io", Version: v, Kind: "HelmRepository"}, EvaluateFluxReady)
		r.Register(schema.GroupVersionKind{Group: "helm.toolkit.fluxcd.io", Version: v, Kind: "HelmRelease"}, EvaluateFluxHelmRelease)
	}
	for _, v := range []string{"v1", "v1beta2", "v1beta1"} {
		r.Register(schema.GroupVersionKind{Group: "kustomize.toolkit.fluxcd.io", Version: v, Kind: "Kustomization"}, EvaluateFluxKustomization)
	}
	r.Register(schema.GroupVersionKind{Group: "cert-manager.io", Version: "v1", Kind: "Certificate"}, EvaluateFluxReady)
	r.Register(schema.GroupVersionKind{Group: "cert-manager.io", Version: "v1", Kind: "ClusterIssuer"}, EvaluateFluxReady)
	r.Register(schema.GroupVersionKind{Group: "cert-manager.io", Version: "v1", Kind: "Challenge"}, EvaluateCertManagerChallenge)
	return r
}

// Register adds or overrides the evaluator for gvk.
func (r *Registry) Register(gvk schema.GroupVersionKind, eval Evaluator) {
	r.evaluators[gvk] = eval
}

// Lookup returns the evaluator registered for gvk, or nil (meaning: consider
// the object ready on existence) when none is registered.
func (r *Registry) Lookup(gvk schema.GroupVersionKind) Evaluator {
	return r.evaluators[gvk]
}

func conditionStatus(live *unstructured.Unstructured, condType string) (string, bool) {
	conditions, found, err := unstructured.NestedSlice(live.Object, "status", "conditions")
	if err != nil || !found {
		return "", false
	}
	for _, c := range conditions {
		m, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		t, _, _ := unstructured.NestedString(m, "type")
		if t != condType {
			continue
		}
		status, _, _ := unstructured.NestedString(m, "status")
		return status, true
	}
	return "", false
}

func conditionReasonMessage(live *unstructured.Unstructured, condType string) (reason, message string) {
	conditions, found, err := unstructured.NestedSlice(live.Object, "status", "conditions")
	if err != nil || !found {
		return "", ""
	}
	for _, c := range conditions {
		m, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		t, _, _ := unstructured.NestedString(m, "type")
		if t != condType {
			continue
		}
		reason, _, _ = unstructured.NestedString(m, "reason")
		message, _, _ = unstructured.NestedString(m, "message")
		return reason, message
	}
	return "", ""
}

func notReady(reason, message string) Result {
	return Result{Ready: false, Reason: reason, Message: message}
}

func ready(message string) Result {
	return Result{Ready: true, Message: message}
}

func terminal(reason, message string) Result {
	return Result{Ready: false, Terminal: true, Reason: reason, Message: message}
}

func gvkString(gvk schema.GroupVersionKind) string {
	return fmt.Sprintf("%s/%s, Kind=%s", gvk.Group, gvk.Version, gvk.Kind)
}

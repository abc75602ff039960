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

package readiness

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// EvaluateDeployment reproduces kro's Deployment readiness check:
// status.readyReplicas == spec.replicas, and an Available=True condition.
func EvaluateDeployment(live *unstructured.Unstructured) Result {
	specReplicas, found, _ := unstructured.NestedInt64(live.Object, "spec", "replicas")
	if !found {
		specReplicas = 1
	}
	readyReplicas, _, _ := unstructured.NestedInt64(live.Object, "status", "readyReplicas")
	if readyReplicas != specReplicas {
		return notReady("ReplicasNotReady", fmt.Sprintf("%d/%d replicas ready", readyReplicas, specReplicas))
	}
	status, found := conditionStatus(live, "Available")
	if !found || status != "True" {
		return notReady("NotAvailable", "Available condition is not True")
	}
	return ready(fmt.Sprintf("%d/%d replicas ready", readyReplicas, specReplicas))
}

// EvaluateService reproduces the per-type Service readiness rules: ClusterIP
// is ready on existence, LoadBalancer waits for an ingress endpoint,
// ExternalName waits for spec.externalName.
func EvaluateService(live *unstructured.Unstructured) Result {
	svcType, _, _ := unstructured.NestedString(live.Object, "spec", "type")
	switch svcType {
	case "", "ClusterIP":
		return ready("ClusterIP service exists")
	case "ExternalName":
		name, found, _ := unstructured.NestedString(live.Object, "spec", "externalName")
		if !found || name == "" {
			return notReady("NoExternalName", "spec.externalName is not set")
		}
		return ready(fmt.Sprintf("ExternalName service resolves to %s", name))
	case "LoadBalancer":
		ingress, found, _ := unstructured.NestedSlice(live.Object, "status", "loadBalancer", "ingress")
		if !found || len(ingress) == 0 {
			return notReady("LoadBalancerPending", "status.loadBalancer.ingress is empty")
		}
		first, ok := ingress[0].(map[string]interface{})
		if !ok {
			return notReady("LoadBalancerPending", "status.loadBalancer.ingress[0] is malformed")
		}
		if ip, found, _ := unstructured.NestedString(first, "ip"); found && ip != "" {
			return ready(fmt.Sprintf("LoadBalancer service has external endpoint: %s", ip))
		}
		if hostname, found, _ := unstructured.NestedString(first, "hostname"); found && hostname != "" {
			return ready(fmt.Sprintf("LoadBalancer service has external endpoint: %s", hostname))
		}
		return notReady("LoadBalancerPending", "status.loadBalancer.ingress[0] has neither ip nor hostname")
	default:
		return ready(fmt.Sprintf("%s service exists", svcType))
	}
}

// EvaluateJob reports ready once status.succeeded >= 1, terminal on a
// JobFailed condition.
func EvaluateJob(live *unstructured.Unstructured) Result {
	if status, found := conditionStatus(live, "Failed"); found && status == "True" {
		reason, message := conditionReasonMessage(live, "Failed")
		return terminal(reason, message)
	}
	succeeded, _, _ := unstructured.NestedInt64(live.Object, "status", "succeeded")
	if succeeded >= 1 {
		return ready(fmt.Sprintf("job completed (%d succeeded)", succeeded))
	}
	return notReady("JobRunning", "job has not completed yet")
}

// EvaluateDaemonSet requires numberReady >= desiredNumberScheduled and both
// strictly positive; a desired count of 0 is never ready (nothing scheduled
// yet, or the node selector matches nothing, both indistinguishable here).
func EvaluateDaemonSet(live *unstructured.Unstructured) Result {
	desired, _, _ := unstructured.NestedInt64(live.Object, "status", "desiredNumberScheduled")
	numberReady, _, _ := unstructured.NestedInt64(live.Object, "status", "numberReady")
	if desired == 0 {
		return notReady("NoNodesScheduled", "desiredNumberScheduled is 0")
	}
	if numberReady >= desired {
		return ready(fmt.Sprintf("%d/%d daemon pods ready", numberReady, desired))
	}
	return notReady("DaemonSetNotReady", fmt.Sprintf("%d/%d daemon pods ready", numberReady, desired))
}

// EvaluateReplicationController requires replicas == readyReplicas ==
// availableReplicas, all strictly positive.
func EvaluateReplicationController(live *unstructured.Unstructured) Result {
	replicas, _, _ := unstructured.NestedInt64(live.Object, "status", "replicas")
	readyReplicas, _, _ := unstructured.NestedInt64(live.Object, "status", "readyReplicas")
	availableReplicas, _, _ := unstructured.NestedInt64(live.Object, "status", "availableReplicas")
	if replicas > 0 && replicas == readyReplicas && readyReplicas == availableReplicas {
		return ready(fmt.Sprintf("%d replicas ready and available", replicas))
	}
	return notReady("ReplicasNotReady", fmt.Sprintf("replicas=%d ready=%d available=%d", replicas, readyReplicas, availableReplicas))
}

// EvaluateFluxReady is the generic Flux/cert-manager `Ready=True` condition
// check, with an exemption for HelmRepository OCI sources: those never carry
// conditions the same way, so they're considered functional once
// metadata.generation is set.
func EvaluateFluxReady(live *unstructured.Unstructured) Result {
	if live.GetKind() == "HelmRepository" {
		if repoType, _, _ := unstructured.NestedString(live.Object, "spec", "type"); repoType == "oci" {
			if gen := live.GetGeneration(); gen > 0 {
				return ready("oci HelmRepository has no status conditions; generation observed")
			}
			return notReady("NotObserved", "metadata.generation is not yet set")
		}
	}
	status, found := conditionStatus(live, "Ready")
	if found && status == "True" {
		return ready("Ready condition is True")
	}
	reason, message := conditionReasonMessage(live, "Ready")
	if reason == "" {
		reason = "NotReady"
	}
	return notReady(reason, message)
}

// EvaluateFluxHelmRelease accepts either the Ready=True or Released=True
// condition shape (the source has both v2beta "Ready" semantics and v2
// "Released" semantics across API versions); Installing/Upgrading phases are
// not-ready, Failed is terminal.
func EvaluateFluxHelmRelease(live *unstructured.Unstructured) Result {
	phase, _, _ := unstructured.NestedString(live.Object, "status", "phase")
	switch phase {
	case "Failed":
		return terminal("Failed", "helm release reconciliation failed")
	case "Installing", "Upgrading":
		return notReady(phase, fmt.Sprintf("helm release is %s", phase))
	}
	if status, found := conditionStatus(live, "Ready"); found && status == "True" {
		return ready("Ready condition is True")
	}
	if status, found := conditionStatus(live, "Released"); found && status == "True" {
		return ready("Released condition is True")
	}
	reason, message := conditionReasonMessage(live, "Ready")
	if reason == "" {
		reason = "NotReady"
	}
	return notReady(reason, message)
}

// EvaluateFluxKustomization requires Ready=True and, when the Healthy
// condition is present at all, Healthy=True too; an empty inventory is never
// ready even if Ready=True was observed stale.
func EvaluateFluxKustomization(live *unstructured.Unstructured) Result {
	entries, found, _ := unstructured.NestedSlice(live.Object, "status", "inventory", "entries")
	if !found || len(entries) == 0 {
		return notReady("EmptyInventory", "status.inventory.entries is empty")
	}
	status, found := conditionStatus(live, "Ready")
	if !found || status != "True" {
		reason, message := conditionReasonMessage(live, "Ready")
		if reason == "" {
			reason = "NotReady"
		}
		return notReady(reason, message)
	}
	if healthyStatus, healthyFound := conditionStatus(live, "Healthy"); healthyFound && healthyStatus != "True" {
		reason, message := conditionReasonMessage(live, "Healthy")
		return notReady(reason, message)
	}
	return ready("Ready (and Healthy, if reported) condition is True")
}

// EvaluateCertManagerChallenge follows the Challenge state machine directly:
// state=valid is ready, processing=true is a normal in-progress wait, and
// state=invalid is terminal.
func EvaluateCertManagerChallenge(live *unstructured.Unstructured) Result {
	state, _, _ := unstructured.NestedString(live.Object, "status", "state")
	switch state {
	case "valid":
		return ready("challenge state is valid")
	case "invalid":
		reason, _, _ := unstructured.NestedString(live.Object, "status", "reason")
		return terminal("Invalid", reason)
	}
	if processing, _, _ := unstructured.NestedBool(live.Object, "status", "processing"); processing {
		return notReady("Processing", "challenge is still processing")
	}
	return notReady(state, "challenge has not reached a terminal state")
}

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

// Package closures implements the closure-resources the design notes call
// out as a first-class node kind: deployment-time side effects (applying a
// YAML file, a YAML directory, or a rendered Helm chart) that produce no
// manifest of their own but return composition.AppliedResource records for
// rollback, exactly like a first-class resource's applied record. Grounded
// on hupe1980-chart2kro's chart loading/rendering pipeline
// (internal/helm/loader, internal/helm/renderer) for the Helm path, and on
// the instance controller's create-or-update/404-as-success handling
// (pkg/controller/instance/controller_reconcile.go) for the apply mechanics
// both paths share.
package closures

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gobuffalo/flect"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/k8s"
)

// Strategy is the conflict resolution policy named in §6's
// FactoryOptions.deploymentStrategy. Closures read it from their own
// options (YAMLFileOptions/HelmReleaseOptions); the Direct executor also
// applies deploy.Options.DeploymentStrategy to create-time conflicts of
// first-class resources.
type Strategy string

const (
	// StrategyReplace retries a create-conflict as a patch.
	StrategyReplace Strategy = "replace"
	// StrategySkipIfExists logs and continues past an already-existing
	// object instead of patching it.
	StrategySkipIfExists Strategy = "skipIfExists"
	// StrategyFail propagates any conflict as a hard error.
	StrategyFail Strategy = "fail"
)

// clientFrom recovers the concrete k8s.Interface composition.DeploymentContext
// carries as an `any`, the same narrow-interface boundary pkg/composition's
// doc comment explains (a direct import would risk a composition<->k8s cycle
// as both packages evolve).
func clientFrom(dctx composition.DeploymentContext) (k8s.Interface, error) {
	client, ok := dctx.KubernetesAPI.(k8s.Interface)
	if !ok {
		return nil, fmt.Errorf("closures: DeploymentContext.KubernetesAPI does not implement k8s.Interface (got %T)", dctx.KubernetesAPI)
	}
	return client, nil
}

// guessGVR derives a GroupVersionResource from a manifest's apiVersion/kind
// using a plural-lowercase convention, the same fallback a RESTMapper-less
// YAML applier uses when no discovery client is wired in. Closures that need
// an irregular plural should pre-register their CRD's exact resource name;
// this covers the common case every built-in Kubernetes and Flux/cert-manager
// kind the readiness registry already knows about satisfies.
func guessGVR(obj *unstructured.Unstructured) schema.GroupVersionResource {
	gvk := obj.GroupVersionKind()
	resource := strings.ToLower(flect.Pluralize(gvk.Kind))
	return schema.GroupVersionResource{Group: gvk.Group, Version: gvk.Version, Resource: resource}
}

// applyOne creates obj, or patches/skips/fails on conflict per strategy, and
// returns the AppliedResource record rollback needs.
func applyOne(ctx context.Context, client k8s.Interface, obj *unstructured.Unstructured, namespace string, strategy Strategy) (composition.AppliedResource, error) {
	if obj.GetNamespace() == "" && namespace != "" {
		obj.SetNamespace(namespace)
	}
	gvr := guessGVR(obj)

	created, err := client.Create(ctx, gvr, obj)
	if err == nil {
		return recordOf(created), nil
	}
	if !isConflict(err) {
		return composition.AppliedResource{}, err
	}

	switch strategy {
	case StrategySkipIfExists:
		existing, getErr := client.Read(ctx, gvr, obj.GetNamespace(), obj.GetName())
		if getErr != nil {
			return composition.AppliedResource{}, getErr
		}
		return recordOf(existing), nil
	case StrategyFail:
		return composition.AppliedResource{}, err
	case StrategyReplace, "":
		patched, patchErr := client.Patch(ctx, gvr, obj)
		if patchErr != nil {
			return composition.AppliedResource{}, patchErr
		}
		return recordOf(patched), nil
	default:
		return composition.AppliedResource{}, fmt.Errorf("closures: unknown deployment strategy %q", strategy)
	}
}

func recordOf(obj *unstructured.Unstructured) composition.AppliedResource {
	return composition.AppliedResource{
		GVK:       obj.GroupVersionKind(),
		Namespace: obj.GetNamespace(),
		Name:      obj.GetName(),
		Observed:  obj,
	}
}

func isConflict(err error) bool {
	var conflict *errs.ConflictError
	return errors.As(err, &conflict)
}

// ctxOrBackground falls back to context.Background when a DeploymentContext
// was built without one (e.g. by a hand-written test), so closures never
// nil-pointer on the context argument to a client call.
func ctxOrBackground(dctx composition.DeploymentContext) context.Context {
	if dctx.Ctx != nil {
		return dctx.Ctx
	}
	return context.Background()
}

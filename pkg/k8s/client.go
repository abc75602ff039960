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

// Package k8s implements the narrow Kubernetes client interface (§6) the
// executors deploy against, backed by k8s.io/client-go's dynamic client, the
// same client pkg/client.Set and the instance controller's resource client
// use to Get/Create/Update/Delete unstructured objects.
package k8s

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"

	"github.com/typekro/typekro-go/pkg/errs"
)

// Interface is the abstract Kubernetes client contract: any implementation
// satisfying it can drive the direct executor.
type Interface interface {
	Create(ctx context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error)
	Read(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (*unstructured.Unstructured, error)
	Patch(ctx context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error)
	Replace(ctx context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, gracePeriodSeconds *int64) error
	List(ctx context.Context, gvr schema.GroupVersionResource, namespace string, labelSelector string) ([]unstructured.Unstructured, error)
}

// DynamicClient implements Interface over client-go's dynamic.Interface.
type DynamicClient struct {
	dyn dynamic.Interface
}

var _ Interface = (*DynamicClient)(nil)

// NewDynamicClient wraps an existing dynamic.Interface.
func NewDynamicClient(dyn dynamic.Interface) *DynamicClient {
	return &DynamicClient{dyn: dyn}
}

func (c *DynamicClient) resourceFor(gvr schema.GroupVersionResource, namespace string) dynamic.ResourceInterface {
	if namespace == "" {
		return c.dyn.Resource(gvr)
	}
	return c.dyn.Resource(gvr).Namespace(namespace)
}

// Create applies obj as a fresh object, translating API errors into the §6/§7
// error taxonomy (ApiError/Forbidden/Conflict) so callers never have to
// unwrap apierrors themselves.
func (c *DynamicClient) Create(ctx context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	created, err := c.resourceFor(gvr, obj.GetNamespace()).Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		return nil, translateError(obj.GetName(), err)
	}
	return created, nil
}

// Read fetches the live object, returning a *errs.NotFoundError when absent.
func (c *DynamicClient) Read(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (*unstructured.Unstructured, error) {
	obj, err := c.resourceFor(gvr, namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, &errs.NotFoundError{ResourceID: name}
		}
		return nil, translateError(name, err)
	}
	return obj, nil
}

// Patch applies obj as a JSON merge patch against the existing object.
func (c *DynamicClient) Patch(ctx context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	data, err := obj.MarshalJSON()
	if err != nil {
		return nil, &errs.SerializationError{ResourceID: obj.GetName(), Err: err}
	}
	patched, err := c.resourceFor(gvr, obj.GetNamespace()).Patch(
		ctx, obj.GetName(), types.MergePatchType, data, metav1.PatchOptions{FieldManager: "typekro"},
	)
	if err != nil {
		return nil, translateError(obj.GetName(), err)
	}
	return patched, nil
}

// Replace performs a full update. The "replace" conflict strategy does not
// call it; that strategy retries a conflicting create with Patch.
func (c *DynamicClient) Replace(ctx context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	updated, err := c.resourceFor(gvr, obj.GetNamespace()).Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		return nil, translateError(obj.GetName(), err)
	}
	return updated, nil
}

// Delete removes the object; a 404 is treated as success per §4.9.
func (c *DynamicClient) Delete(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, gracePeriodSeconds *int64) error {
	opts := metav1.DeleteOptions{}
	if gracePeriodSeconds != nil {
		opts.GracePeriodSeconds = gracePeriodSeconds
	}
	err := c.resourceFor(gvr, namespace).Delete(ctx, name, opts)
	if err != nil && !apierrors.IsNotFound(err) {
		return translateError(name, err)
	}
	return nil
}

// List returns every object matching labelSelector (empty selector lists
// all).
func (c *DynamicClient) List(ctx context.Context, gvr schema.GroupVersionResource, namespace string, labelSelector string) ([]unstructured.Unstructured, error) {
	list, err := c.resourceFor(gvr, namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, translateError("", err)
	}
	return list.Items, nil
}

func translateError(resourceID string, err error) error {
	switch {
	case apierrors.IsForbidden(err) || apierrors.IsUnauthorized(err):
		return &errs.ForbiddenError{ResourceID: resourceID, Err: err}
	case apierrors.IsConflict(err) || apierrors.IsAlreadyExists(err):
		return &errs.ConflictError{ResourceID: resourceID}
	case apierrors.IsNotFound(err):
		return &errs.NotFoundError{ResourceID: resourceID}
	default:
		code := 500
		if status, ok := err.(apierrors.APIStatus); ok {
			code = int(status.Status().Code)
		}
		return &errs.APIError{Code: code, Err: fmt.Errorf("resource %q: %w", resourceID, err)}
	}
}

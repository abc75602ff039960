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

package kro

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/deploy"
	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/ref"
	"github.com/typekro/typekro-go/pkg/serialize"
)

// memClient is the kro-package analogue of direct's memClient, additionally
// able to advance an instance's status.state across successive Read calls so
// tests can exercise the Wait loop without a real Kro controller.
type memClient struct {
	mu        sync.Mutex
	objects   map[string]*unstructured.Unstructured
	instance  string
	instanceGVR schema.GroupVersionResource
	readCount int
	states    []string
}

func newMemClient() *memClient {
	return &memClient{objects: make(map[string]*unstructured.Unstructured)}
}

func memKey(gvr schema.GroupVersionResource, namespace, name string) string {
	return fmt.Sprintf("%s/%s/%s", gvr.Resource, namespace, name)
}

func (c *memClient) Create(_ context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := memKey(gvr, obj.GetNamespace(), obj.GetName())
	if _, exists := c.objects[key]; exists {
		return nil, &errs.ConflictError{ResourceID: obj.GetName()}
	}
	copyObj := obj.DeepCopy()
	copyObj.SetResourceVersion("1")
	c.objects[key] = copyObj
	return copyObj.DeepCopy(), nil
}

func (c *memClient) Read(_ context.Context, gvr schema.GroupVersionResource, namespace, name string) (*unstructured.Unstructured, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := memKey(gvr, namespace, name)
	obj, ok := c.objects[key]
	if !ok {
		return nil, &errs.NotFoundError{ResourceID: name}
	}
	if gvr == c.instanceGVR && name == c.instance && len(c.states) > 0 {
		idx := c.readCount
		if idx >= len(c.states) {
			idx = len(c.states) - 1
		}
		c.readCount++
		out := obj.DeepCopy()
		_ = unstructured.SetNestedField(out.Object, c.states[idx], "status", "state")
		c.objects[key] = out
		return out.DeepCopy(), nil
	}
	return obj.DeepCopy(), nil
}

func (c *memClient) Patch(_ context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := memKey(gvr, obj.GetNamespace(), obj.GetName())
	copyObj := obj.DeepCopy()
	copyObj.SetResourceVersion("2")
	c.objects[key] = copyObj
	return copyObj.DeepCopy(), nil
}

func (c *memClient) Replace(ctx context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	return c.Patch(ctx, gvr, obj)
}

func (c *memClient) Delete(_ context.Context, gvr schema.GroupVersionResource, namespace, name string, _ *int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := memKey(gvr, namespace, name)
	if _, ok := c.objects[key]; !ok {
		return &errs.NotFoundError{ResourceID: name}
	}
	delete(c.objects, key)
	return nil
}

func (c *memClient) List(context.Context, schema.GroupVersionResource, string, string) ([]unstructured.Unstructured, error) {
	panic("not used")
}

func simpleSchema() serialize.SchemaSpec {
	return serialize.SchemaSpec{
		Kind:       "WebApp",
		APIVersion: "v1alpha1",
		Group:      "kro.run",
		Spec:       map[string]string{"name": "string"},
		Status: map[string]any{
			"url":        ref.NewStandaloneCelExpression("deployment.status.url"),
			"apiVersion": "v1alpha1",
		},
	}
}

func TestDeployAppliesRGDAndInstanceWithoutWait(t *testing.T) {
	compCtx := composition.New("root")
	req := InstanceRequest{Name: "my-app", Spec: map[string]interface{}{"name": "demo"}, Schema: simpleSchema()}

	client := newMemClient()
	exec := NewExecutor()
	result, err := exec.Deploy(context.Background(), compCtx, req, deploy.Options{Client: client, Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, result.Applied, 2)

	_, err = client.Read(context.Background(), rgdGVR, "", "my-app")
	require.NoError(t, err)

	instanceGVR := instanceGVRFor(req.Schema)
	_, err = client.Read(context.Background(), instanceGVR, "default", "my-app")
	require.NoError(t, err)
}

func TestDeployWaitsForInstanceActiveState(t *testing.T) {
	compCtx := composition.New("root")
	req := InstanceRequest{Name: "my-app", Spec: map[string]interface{}{"name": "demo"}, Schema: simpleSchema()}

	client := newMemClient()
	client.instance = "my-app"
	client.instanceGVR = instanceGVRFor(req.Schema)
	client.states = []string{"PROGRESSING", "ACTIVE"}

	exec := NewExecutor()
	result, err := exec.Deploy(context.Background(), compCtx, req, deploy.Options{
		Client:       client,
		Namespace:    "default",
		WaitForReady: true,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)
	state, _, _ := unstructured.NestedString(result.Observed["my-app"].Object, "status", "state")
	assert.Equal(t, "ACTIVE", state)
}

func TestDeployFailsOnTerminalFailedState(t *testing.T) {
	compCtx := composition.New("root")
	req := InstanceRequest{Name: "my-app", Spec: map[string]interface{}{"name": "demo"}, Schema: simpleSchema()}

	client := newMemClient()
	client.instance = "my-app"
	client.instanceGVR = instanceGVRFor(req.Schema)
	client.states = []string{"FAILED"}

	exec := NewExecutor()
	_, err := exec.Deploy(context.Background(), compCtx, req, deploy.Options{
		Client:       client,
		Namespace:    "default",
		WaitForReady: true,
		PollInterval: time.Millisecond,
	})
	require.Error(t, err)
	var readinessErr *errs.ReadinessFailedError
	require.ErrorAs(t, err, &readinessErr)
}

func TestHydrateStaticStatusCopiesStaticAndReadsDynamicBack(t *testing.T) {
	instance := &unstructured.Unstructured{Object: map[string]interface{}{}}
	_ = unstructured.SetNestedField(instance.Object, "https://demo.example.com", "status", "url")

	pending := make(map[string]error)
	status := hydrateStaticStatus(map[string]interface{}{
		"url":        ref.NewStandaloneCelExpression("deployment.status.url"),
		"apiVersion": "v1alpha1",
	}, instance, pending)

	assert.Equal(t, "https://demo.example.com", status["url"])
	assert.Equal(t, "v1alpha1", status["apiVersion"])
	assert.Empty(t, pending)
}

func TestHydrateStaticStatusRecordsPendingWhenKroHasNotWrittenYet(t *testing.T) {
	instance := &unstructured.Unstructured{Object: map[string]interface{}{}}
	pending := make(map[string]error)
	status := hydrateStaticStatus(map[string]interface{}{
		"url": ref.NewStandaloneCelExpression("deployment.status.url"),
	}, instance, pending)

	assert.NotContains(t, status, "url")
	require.Contains(t, pending, "url")
}

func TestEvaluateInstanceStateTerminatingIsTerminal(t *testing.T) {
	live := &unstructured.Unstructured{Object: map[string]interface{}{}}
	_ = unstructured.SetNestedField(live.Object, "TERMINATING", "status", "state")
	result := evaluateInstanceState(live)
	assert.True(t, result.Terminal)
	assert.False(t, result.Ready)
}

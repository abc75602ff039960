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

package closures

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/errs"
)

// memClient is an in-memory k8s.Interface, the closures package's analogue
// of pkg/readiness's sequenceClient: here every apply path (Create/Read/
// Patch) needs to actually mutate shared state across calls, which a fixed
// response sequence cannot model.
type memClient struct {
	objects map[string]*unstructured.Unstructured
}

func newMemClient() *memClient {
	return &memClient{objects: make(map[string]*unstructured.Unstructured)}
}

func memKey(gvr schema.GroupVersionResource, namespace, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s", gvr.String(), gvr.Resource, namespace, name)
}

func (c *memClient) Create(_ context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
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
	obj, ok := c.objects[memKey(gvr, namespace, name)]
	if !ok {
		return nil, &errs.NotFoundError{ResourceID: name}
	}
	return obj.DeepCopy(), nil
}

func (c *memClient) Patch(_ context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
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

func configMap(name, namespace string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": namespace,
		},
		"data": map[string]interface{}{"k": "v"},
	}}
}

func TestApplyOneCreatesNewObject(t *testing.T) {
	client := newMemClient()
	record, err := applyOne(context.Background(), client, configMap("cm1", "default"), "default", StrategyReplace)
	require.NoError(t, err)
	assert.Equal(t, "cm1", record.Name)
	assert.Equal(t, "default", record.Namespace)
	assert.Equal(t, "ConfigMap", record.GVK.Kind)
}

func TestApplyOneReplaceStrategyPatchesOnConflict(t *testing.T) {
	client := newMemClient()
	_, err := applyOne(context.Background(), client, configMap("cm1", "default"), "default", StrategyReplace)
	require.NoError(t, err)

	record, err := applyOne(context.Background(), client, configMap("cm1", "default"), "default", StrategyReplace)
	require.NoError(t, err)
	assert.Equal(t, "cm1", record.Name)

	gvr := schema.GroupVersionResource{Version: "v1", Resource: "configmaps"}
	live, err := client.Read(context.Background(), gvr, "default", "cm1")
	require.NoError(t, err)
	assert.Equal(t, "2", live.GetResourceVersion())
}

func TestApplyOneSkipIfExistsReturnsExisting(t *testing.T) {
	client := newMemClient()
	_, err := applyOne(context.Background(), client, configMap("cm1", "default"), "default", StrategyReplace)
	require.NoError(t, err)

	record, err := applyOne(context.Background(), client, configMap("cm1", "default"), "default", StrategySkipIfExists)
	require.NoError(t, err)

	gvr := schema.GroupVersionResource{Version: "v1", Resource: "configmaps"}
	live, err := client.Read(context.Background(), gvr, "default", "cm1")
	require.NoError(t, err)
	assert.Equal(t, "1", live.GetResourceVersion())
	assert.Equal(t, "1", record.Observed.GetResourceVersion())
}

func TestApplyOneFailStrategyPropagatesConflict(t *testing.T) {
	client := newMemClient()
	_, err := applyOne(context.Background(), client, configMap("cm1", "default"), "default", StrategyReplace)
	require.NoError(t, err)

	_, err = applyOne(context.Background(), client, configMap("cm1", "default"), "default", StrategyFail)
	require.Error(t, err)
	var conflict *errs.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestClientFromRejectsWrongType(t *testing.T) {
	_, err := clientFrom(composition.DeploymentContext{KubernetesAPI: "not-a-client"})
	require.Error(t, err)
}

func TestCtxOrBackgroundFallsBackWhenNil(t *testing.T) {
	assert.NotNil(t, ctxOrBackground(composition.DeploymentContext{}))
}

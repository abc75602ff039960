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
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"

	"github.com/typekro/typekro-go/pkg/composition"
)

// YAMLFileOptions configures a YAMLFile/YAMLDirectory closure.
type YAMLFileOptions struct {
	// Namespace is applied to any document that does not already carry one;
	// empty leaves cluster-scoped defaulting to the apiserver.
	Namespace string
	// Strategy governs how a create-conflict is handled (§6 deploymentStrategy).
	Strategy Strategy
}

// YAMLFile registers a closure-resource (§4.6, §9) that applies every
// document in the YAML/JSON file at path, in file order, when its turn in
// the level schedule arrives.
func YAMLFile(path string, opts YAMLFileOptions) composition.ClosureFunc {
	return func(dctx composition.DeploymentContext) ([]composition.AppliedResource, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("yamlFile %q: %w", path, err)
		}
		return applyDocuments(dctx, data, opts)
	}
}

// YAMLDirectory registers a closure-resource that applies every *.yaml/*.yml
// file in dir, in lexicographic filename order (so callers can force an
// intra-directory order by naming files 00-..., 01-..., etc), non-recursive.
func YAMLDirectory(dir string, opts YAMLFileOptions) composition.ClosureFunc {
	return func(dctx composition.DeploymentContext) ([]composition.AppliedResource, error) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("yamlDirectory %q: %w", dir, err)
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := filepath.Ext(e.Name())
			if ext == ".yaml" || ext == ".yml" {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		var applied []composition.AppliedResource
		for _, name := range names {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return applied, fmt.Errorf("yamlDirectory %q: reading %q: %w", dir, name, err)
			}
			records, err := applyDocuments(dctx, data, opts)
			applied = append(applied, records...)
			if err != nil {
				return applied, fmt.Errorf("yamlDirectory %q: applying %q: %w", dir, name, err)
			}
		}
		return applied, nil
	}
}

// applyDocuments splits a multi-document YAML/JSON stream with the same
// decoder kubectl-style appliers use and applies each document in order.
func applyDocuments(dctx composition.DeploymentContext, data []byte, opts YAMLFileOptions) ([]composition.AppliedResource, error) {
	client, err := clientFrom(dctx)
	if err != nil {
		return nil, err
	}

	namespace := opts.Namespace
	if namespace == "" {
		namespace = dctx.Namespace
	}

	dec := utilyaml.NewYAMLOrJSONDecoder(bytes.NewReader(data), 4096)
	var applied []composition.AppliedResource
	for {
		var raw map[string]interface{}
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return applied, fmt.Errorf("decoding manifest: %w", err)
		}
		if len(raw) == 0 {
			continue
		}
		obj := &unstructured.Unstructured{Object: raw}
		record, err := applyOne(ctxOrBackground(dctx), client, obj, namespace, opts.Strategy)
		if err != nil {
			return applied, fmt.Errorf("applying %s/%s: %w", obj.GetKind(), obj.GetName(), err)
		}
		applied = append(applied, record)
	}
	return applied, nil
}

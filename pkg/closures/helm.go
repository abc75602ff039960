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
	"sort"
	"strings"

	helmloader "helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/engine"

	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/ref"
)

// HelmReleaseOptions configures a helmRelease closure (§4.6, §9). Values may
// themselves contain refs/CelExpressions resolved through
// DeploymentContext.ResolveReference before rendering, so a chart's values
// can depend on a sibling resource's observed status.
type HelmReleaseOptions struct {
	// ChartPath is a local directory containing Chart.yaml, the only chart
	// source this closure loads (matching hupe1980-chart2kro's
	// DirectoryLoader; OCI/repository sources are out of scope for the core).
	ChartPath   string
	ReleaseName string
	Namespace   string
	Values      map[string]interface{}
	Strategy    Strategy
}

// HelmRelease registers a closure-resource that renders a local Helm chart
// in-memory with the Helm SDK engine (no Tiller/release storage involved —
// this is a template+apply, not a full `helm install`) and applies every
// rendered manifest, grounded on hupe1980-chart2kro's
// internal/helm/renderer.HelmRenderer.
func HelmRelease(opts HelmReleaseOptions) composition.ClosureFunc {
	return func(dctx composition.DeploymentContext) ([]composition.AppliedResource, error) {
		ch, err := helmloader.LoadDir(opts.ChartPath)
		if err != nil {
			return nil, fmt.Errorf("helmRelease: loading chart %q: %w", opts.ChartPath, err)
		}

		releaseName := opts.ReleaseName
		if releaseName == "" {
			releaseName = ch.Name()
		}
		namespace := opts.Namespace
		if namespace == "" {
			namespace = dctx.Namespace
		}

		resolvedValues, err := resolveValues(opts.Values, dctx)
		if err != nil {
			return nil, fmt.Errorf("helmRelease: resolving values: %w", err)
		}

		renderValues, err := chartutil.ToRenderValues(ch, resolvedValues, chartutil.ReleaseOptions{
			Name:      releaseName,
			Namespace: namespace,
			Revision:  1,
			IsInstall: true,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("helmRelease: preparing values: %w", err)
		}

		eng := engine.Engine{Strict: false, LintMode: false}
		rendered, err := eng.Render(ch, renderValues)
		if err != nil {
			return nil, fmt.Errorf("helmRelease: rendering chart %q: %w", opts.ChartPath, err)
		}

		manifest := combineManifests(rendered)
		return applyDocuments(dctx, manifest, YAMLFileOptions{Namespace: namespace, Strategy: opts.Strategy})
	}
}

// resolveValues walks a chart values tree, resolving any ref/CelExpression
// value through dctx.ResolveReference exactly like a first-class resource's
// manifest would be resolved by the direct executor, so a chart's values can
// read a sibling resource's observed status.
func resolveValues(values map[string]interface{}, dctx composition.DeploymentContext) (map[string]interface{}, error) {
	resolved, err := resolveAny(values, dctx)
	if err != nil {
		return nil, err
	}
	m, _ := resolved.(map[string]interface{})
	return m, nil
}

func resolveAny(v interface{}, dctx composition.DeploymentContext) (interface{}, error) {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, child := range x {
			r, err := resolveAny(child, dctx)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, child := range x {
			r, err := resolveAny(child, dctx)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return resolveLeaf(v, dctx)
	}
}

func resolveLeaf(v interface{}, dctx composition.DeploymentContext) (interface{}, error) {
	if dctx.ResolveReference == nil {
		return v, nil
	}
	switch r := v.(type) {
	case ref.ResourceRef:
		return dctx.ResolveReference(r.ResourceID, r.FieldPath)
	case *ref.ResourceRef:
		if r == nil {
			return v, nil
		}
		return dctx.ResolveReference(r.ResourceID, r.FieldPath)
	default:
		return v, nil
	}
}

// combineManifests merges a Helm engine render output map into a single
// multi-document YAML stream in path order, the same combine step
// hupe1980-chart2kro's renderer performs, dropping NOTES.txt and empty
// templates.
func combineManifests(rendered map[string]string) []byte {
	keys := make([]string, 0, len(rendered))
	for k := range rendered {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		content := rendered[k]
		if strings.HasSuffix(k, "NOTES.txt") {
			continue
		}
		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("---\n")
		}
		buf.WriteString(trimmed)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

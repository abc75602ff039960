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

// Package deploy holds the types the Direct (C7) and Kro (C8) executors
// share: deployment options, the resource state machine, progress events and
// the deployed-instance result, grounded on the teacher's
// pkg/controller/instance state/event shapes (InstanceState, ResourceState)
// generalized from a controller's in-memory reconcile state to a one-shot
// deploy call's return value.
package deploy

import (
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/typekro/typekro-go/pkg/closures"
	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/k8s"
	"github.com/typekro/typekro-go/pkg/readiness"
)

// ResourceState is one point in the per-resource state machine §4.6 names:
// Pending -> Resolving -> Applying -> Created -> WaitingReady -> Ready|Failed,
// with RolledBack and Skipped as additional terminal states.
type ResourceState string

const (
	StatePending      ResourceState = "Pending"
	StateResolving    ResourceState = "Resolving"
	StateApplying     ResourceState = "Applying"
	StateCreated      ResourceState = "Created"
	StateWaitingReady ResourceState = "WaitingReady"
	StateReady        ResourceState = "Ready"
	StateFailed       ResourceState = "Failed"
	StateRolledBack   ResourceState = "RolledBack"
	StateSkipped      ResourceState = "Skipped"
)

// EventKind names the shape of a progressCallback invocation (§6).
type EventKind string

const (
	EventProgress    EventKind = "progress"
	EventRollback    EventKind = "rollback"
	EventCompleted   EventKind = "completed"
	EventFailed      EventKind = "failed"
	EventStatusDebug EventKind = "status-debug"
)

// Event is the one shape every progressCallback invocation takes, carrying a
// monotonic timestamp so a caller interleaving events from multiple
// resources can still recover per-resource order (§5 ordering guarantees).
type Event struct {
	Kind       EventKind
	ResourceID string
	State      ResourceState
	Message    string
	Err        error
	Debug      *readiness.DebugEvent
	Timestamp  time.Time
}

// Options is FactoryOptions (§4.6, §6) as the executors consume it. The
// composition/serialization-time options (mode, kubeConfig selection) live
// one layer up, in the package that owns client construction; this struct is
// everything both executors need once a client.Interface already exists.
type Options struct {
	Client k8s.Interface

	Namespace     string
	WaitForReady  bool
	Timeout       time.Duration
	HydrateStatus bool
	DebugLogging  bool
	AlchemyScope  string

	// DeploymentStrategy decides how the Direct executor handles a
	// create-time 409 conflict on a first-class resource (§4.6 step 3c).
	// Closures are not given this value; they apply their own Strategy from
	// YAMLFileOptions/HelmReleaseOptions.
	DeploymentStrategy closures.Strategy

	// MaxParallelism caps concurrent per-level tasks; zero means the level's
	// full width (§5).
	MaxParallelism int

	// PollInterval overrides the readiness engine's poll cadence; zero uses
	// readiness.DefaultPollInterval.
	PollInterval time.Duration

	// Registry overrides the default readiness registry; nil uses
	// readiness.NewRegistry().
	Registry *readiness.Registry

	// ProgressCallback receives every Event emitted during deploy/rollback.
	// Never called concurrently with itself.
	ProgressCallback func(Event)
}

func (o Options) emit(kind EventKind, resourceID string, state ResourceState, message string, err error) {
	if o.ProgressCallback == nil {
		return
	}
	o.ProgressCallback(Event{
		Kind:       kind,
		ResourceID: resourceID,
		State:      state,
		Message:    message,
		Err:        err,
		Timestamp:  time.Now(),
	})
}

// Progress emits an EventProgress for resourceID transitioning to state.
func (o Options) Progress(resourceID string, state ResourceState, message string, err error) {
	o.emit(EventProgress, resourceID, state, message, err)
}

// Completed emits the single EventCompleted marking a successful deploy.
func (o Options) Completed(message string) {
	o.emit(EventCompleted, "", "", message, nil)
}

// Failed emits the single EventFailed marking a deploy's terminal failure.
func (o Options) Failed(err error) {
	o.emit(EventFailed, "", StateFailed, "", err)
}

// Rollback emits an EventRollback for one record's rollback progress.
func (o Options) Rollback(resourceID string, message string, err error) {
	o.emit(EventRollback, resourceID, StateRolledBack, message, err)
}

// Debug emits an EventStatusDebug wrapping a readiness poll attempt.
func (o Options) Debug(resourceID string, ev readiness.DebugEvent) {
	if o.ProgressCallback == nil {
		return
	}
	o.ProgressCallback(Event{
		Kind:       EventStatusDebug,
		ResourceID: resourceID,
		Debug:      &ev,
		Timestamp:  time.Now(),
	})
}

// Result is the caller-visible outcome of a deploy (§4.6 step 4): every
// applied record in application order (the exact reverse of which is the
// rollback order per §5), the live object observed for each resource id, and
// the hydrated status merging static values with resolved dynamic ones.
type Result struct {
	Applied  []composition.AppliedResource
	Observed map[string]*unstructured.Unstructured
	Status   map[string]any
	// Pending lists status fields that could not be resolved deterministically
	// at deploy time (§4.6 step 4: "otherwise surface ExpressionPending").
	Pending map[string]error
}

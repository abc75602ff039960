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

// Package rollback implements the rollback manager (C10): given the ordered
// list of records a deploy actually applied, tear them down in reverse
// order, isolating one resource's failure from the rest. Grounded on the
// instance controller's deleteResourcesInOrder/deleteResource pair, which
// walks the same topological order backwards and treats a 404 on delete as
// success; reworked here to operate on deploy-time AppliedResource records
// instead of a live runtime's resource map, and to support an optional
// wait-for-gone poll and a force/grace-period escalation the teacher's
// reconcile loop does not need (it relies on the next reconcile pass
// instead of blocking).
package rollback

import (
	"context"
	"errors"
	"time"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/typekro/typekro-go/pkg/composition"
	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/k8s"
)

// Status is the aggregate outcome of one rollback run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// ProgressEvent is emitted for each resource rollback attempt, and once more
// as the final aggregate "rollback" event when emitEvent is set.
type ProgressEvent struct {
	ResourceID string
	Status     Status
	Err        error
	Final      bool
}

// Options configures one rollback run.
type Options struct {
	// Force escalates a non-404 delete error to a second attempt with
	// gracePeriod=0 instead of failing that resource immediately.
	Force bool
	// Timeout, when > 0, is how long to poll for a deleted resource to
	// actually disappear after a successful delete call; zero skips the
	// wait-for-gone poll entirely (delete accepted is success).
	Timeout time.Duration
	// PollInterval paces the wait-for-gone poll; zero defaults to 1s.
	PollInterval time.Duration
	// EmitEvent, when true and OnProgress is non-nil, requests the final
	// aggregate ProgressEvent in addition to the per-resource ones.
	EmitEvent bool
	// OnProgress receives every per-resource event (and, if EmitEvent, the
	// final aggregate one).
	OnProgress func(ProgressEvent)
}

// Record is one thing a deploy created, the unit rollback tears down.
type Record struct {
	ResourceID string
	GVR        schema.GroupVersionResource
	Namespace  string
	Name       string
}

// RecordFromApplied adapts a composition.AppliedResource (as produced by a
// closure) into a Record, using the GVR the caller has already resolved for
// its GVK.
func RecordFromApplied(resourceID string, applied composition.AppliedResource, gvr schema.GroupVersionResource) Record {
	return Record{ResourceID: resourceID, GVR: gvr, Namespace: applied.Namespace, Name: applied.Name}
}

// Manager runs rollback (C10) over a k8s.Interface.
type Manager struct {
	client k8s.Interface
}

// NewManager builds a Manager backed by client.
func NewManager(client k8s.Interface) *Manager {
	return &Manager{client: client}
}

// Rollback deletes every record in reverse of the order given (the caller
// passes records in application order; Rollback reverses them itself so
// callers never have to remember to do it, matching graph.Plan.RollbackOrder
// already being the reverse of TopologicalOrder at the id level).
func (m *Manager) Rollback(ctx context.Context, records []Record, opts Options) error {
	reversed := make([]Record, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}

	var items []errs.RollbackItemError
	succeeded := 0

	for _, record := range reversed {
		err := m.rollbackOne(ctx, record, opts)
		status := StatusSuccess
		if err != nil {
			status = StatusFailed
			items = append(items, errs.RollbackItemError{ResourceID: record.ResourceID, Err: err})
		} else {
			succeeded++
		}
		if opts.OnProgress != nil {
			opts.OnProgress(ProgressEvent{ResourceID: record.ResourceID, Status: status, Err: err})
		}
	}

	aggregate := aggregateStatus(succeeded, len(reversed), len(items))
	if opts.EmitEvent && opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{Status: aggregate, Final: true})
	}

	if len(items) == 0 {
		return nil
	}
	return &errs.RollbackError{Items: items}
}

func aggregateStatus(succeeded, total, failed int) Status {
	switch {
	case failed == 0:
		return StatusSuccess
	case succeeded == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

func (m *Manager) rollbackOne(ctx context.Context, record Record, opts Options) error {
	err := m.client.Delete(ctx, record.GVR, record.Namespace, record.Name, nil)
	if err != nil {
		if opts.Force {
			zero := int64(0)
			err = m.client.Delete(ctx, record.GVR, record.Namespace, record.Name, &zero)
		}
		if err != nil {
			return err
		}
	}

	if opts.Timeout <= 0 {
		return nil
	}
	return m.waitForGone(ctx, record, opts)
}

func (m *Manager) waitForGone(ctx context.Context, record Record, opts Options) error {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(opts.Timeout)
	for {
		_, err := m.client.Read(ctx, record.GVR, record.Namespace, record.Name)
		if err != nil {
			var notFound *errs.NotFoundError
			if isNotFound(err, &notFound) {
				return nil
			}
			return err
		}
		if time.Now().After(deadline) {
			return &errs.TimeoutError{ResourceID: record.ResourceID, Elapsed: opts.Timeout.String()}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func isNotFound(err error, target **errs.NotFoundError) bool {
	nf, ok := err.(*errs.NotFoundError)
	if ok {
		*target = nf
	}
	return ok
}

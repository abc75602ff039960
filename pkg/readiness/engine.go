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
	"context"
	"encoding/json"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/typekro/typekro-go/pkg/errs"
	"github.com/typekro/typekro-go/pkg/k8s"
	"github.com/typekro/typekro-go/pkg/requeue"
)

// DefaultPollInterval is the fixed-base poll backoff §4.8 names.
const DefaultPollInterval = 2 * time.Second

// DefaultMaxStatusObjectSize bounds the currentStatus payload a DebugEvent
// carries; larger objects are truncated, never dropped.
const DefaultMaxStatusObjectSize = 8 << 10 // 8 KiB

// DebugEvent is emitted on every poll attempt when debug logging is enabled.
type DebugEvent struct {
	ResourceID    string
	CurrentStatus map[string]interface{}
	Truncated     bool
	Result        Result
	Attempt       int
	Elapsed       time.Duration
	IsTimeout     bool
	Err           error
}

// Options configures one Wait call.
type Options struct {
	// PollInterval paces successive Get calls; zero defaults to
	// DefaultPollInterval.
	PollInterval time.Duration
	// Timeout bounds the whole wait; zero means no deadline.
	Timeout time.Duration
	// DebugLogging, when true, invokes OnDebug on every poll attempt.
	DebugLogging bool
	// MaxStatusObjectSize caps the serialized size of CurrentStatus in a
	// DebugEvent; zero defaults to DefaultMaxStatusObjectSize.
	MaxStatusObjectSize int
	// OnDebug receives a DebugEvent per poll attempt when DebugLogging is
	// set. Never called concurrently with itself for a single Wait call.
	OnDebug func(DebugEvent)
}

// Engine is the readiness engine (C9): it polls a live object through a
// k8s.Interface until an Evaluator reports ready, a terminal failure, or the
// wait times out.
type Engine struct {
	client   k8s.Interface
	registry *Registry
}

// NewEngine builds an Engine backed by client, consulting registry for the
// default evaluator when a resource carries none of its own.
func NewEngine(client k8s.Interface, registry *Registry) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Engine{client: client, registry: registry}
}

// EvaluatorFor resolves the evaluator for gvk: a caller-supplied override
// when non-nil, otherwise the registry default, otherwise nil (meaning:
// ready as soon as the object exists).
func (e *Engine) EvaluatorFor(gvk schema.GroupVersionKind, override Evaluator) Evaluator {
	if override != nil {
		return override
	}
	return e.registry.Lookup(gvk)
}

// Wait polls namespace/name of gvr until eval reports ready, a terminal
// failure surfaces as *errs.ReadinessFailedError, or the deadline / ctx
// cancellation surfaces as *errs.TimeoutError carrying the last observed
// object. A nil eval means "ready as soon as the object can be read". A
// transient Read error is wrapped as requeue.RequeueNeededAfter, whose
// Duration paces the retry, instead of being treated as terminal.
func (e *Engine) Wait(ctx context.Context, gvr schema.GroupVersionResource, namespace, name, resourceID string, eval Evaluator, opts Options) (*unstructured.Unstructured, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxSize := opts.MaxStatusObjectSize
	if maxSize <= 0 {
		maxSize = DefaultMaxStatusObjectSize
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	start := time.Now()
	var lastObserved *unstructured.Unstructured

	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, e.timeoutError(resourceID, start, lastObserved)
		}

		live, err := e.client.Read(ctx, gvr, namespace, name)
		if err != nil {
			rq := requeue.NeededAfter(err, interval)
			if opts.DebugLogging && opts.OnDebug != nil {
				opts.OnDebug(DebugEvent{ResourceID: resourceID, Attempt: attempt, Elapsed: time.Since(start), Err: rq})
			}
			if ctx.Err() != nil {
				return nil, e.timeoutError(resourceID, start, lastObserved)
			}
			select {
			case <-ctx.Done():
				return nil, e.timeoutError(resourceID, start, lastObserved)
			case <-time.After(rq.Duration()):
			}
			continue
		}
		lastObserved = live

		var result Result
		if eval == nil {
			result = ready("resource exists")
		} else {
			result = eval(live)
		}

		if opts.DebugLogging && opts.OnDebug != nil {
			status, truncated := truncateStatus(live.Object, maxSize)
			opts.OnDebug(DebugEvent{
				ResourceID:    resourceID,
				CurrentStatus: status,
				Truncated:     truncated,
				Result:        result,
				Attempt:       attempt,
				Elapsed:       time.Since(start),
			})
		}

		if result.Ready {
			return live, nil
		}
		if result.Terminal {
			return live, &errs.ReadinessFailedError{ResourceID: resourceID, Reason: result.Reason, Message: result.Message}
		}

		select {
		case <-ctx.Done():
			return live, e.timeoutError(resourceID, start, lastObserved)
		default:
		}
	}
}

func (e *Engine) timeoutError(resourceID string, start time.Time, lastObserved *unstructured.Unstructured) error {
	var observedObj map[string]interface{}
	if lastObserved != nil {
		observedObj = lastObserved.Object
	}
	return &errs.TimeoutError{
		ResourceID:   resourceID,
		Elapsed:      time.Since(start).String(),
		LastObserved: observedObj,
	}
}

// truncateStatus marshals status to JSON and, if it exceeds maxBytes,
// replaces it with a truncated string preview rather than dropping it.
func truncateStatus(obj map[string]interface{}, maxBytes int) (map[string]interface{}, bool) {
	status, found, _ := unstructured.NestedMap(obj, "status")
	if !found {
		return nil, false
	}
	data, err := json.Marshal(status)
	if err != nil || len(data) <= maxBytes {
		return status, false
	}
	return map[string]interface{}{
		"__truncated__": true,
		"preview":       string(data[:maxBytes]),
	}, true
}

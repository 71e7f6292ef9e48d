// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package server

import (
	"time"

	"github.com/postwright/postwright/internal/dispatch"
	"github.com/postwright/postwright/internal/registry"
	"github.com/postwright/postwright/internal/scheduler"
	"github.com/postwright/postwright/internal/store"
	"github.com/postwright/postwright/internal/validator"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// SchedulerService exposes runner state for REST handlers.
type SchedulerService interface {
	Snapshot(id string) (scheduler.Snapshot, error)
}

// Services holds the dependencies of the admin routes.
type Services struct {
	validator *validator.Validator
	runner    *dispatch.PostPlugRunner
	scheduler SchedulerService
	store     store.Store
	now       func() time.Time
}

// NewServices validates and wraps the route dependencies. The validator and
// runner are required. sched and st may be nil: without a scheduler plug
// listings carry no schedule, and without a store activation changes are not
// persisted and the runs endpoint is not registered.
func NewServices(v *validator.Validator, runner *dispatch.PostPlugRunner, sched SchedulerService, st store.Store) (*Services, error) {
	if v == nil {
		return nil, pwerr.New(pwerr.CodeServerConfigInvalid, "validator is required")
	}
	if runner == nil {
		return nil, pwerr.New(pwerr.CodeServerConfigInvalid, "post-plug runner is required")
	}
	return &Services{
		validator: v,
		runner:    runner,
		scheduler: sched,
		store:     st,
		now:       time.Now,
	}, nil
}

// PlugSummary is the REST representation of a Plug.
type PlugSummary struct {
	Identifier           string                 `json:"identifier" doc:"Plug identifier"`
	Title                string                 `json:"title" doc:"Display title"`
	Description          string                 `json:"description,omitempty" doc:"Plug description"`
	Owner                string                 `json:"owner" doc:"Module that declared the plug"`
	Disabled             bool                   `json:"disabled" doc:"Whether the plug is currently disabled"`
	RunEveryMilliseconds int64                  `json:"run_every_ms" doc:"Interval between runs in milliseconds"`
	TotalRuns            int                    `json:"total_runs" doc:"Maximum number of runs for the process lifetime"`
	Fields               []capability.FieldSpec `json:"fields,omitempty" doc:"User-supplied values the plug accepts"`
	Schedule             *ScheduleStatus        `json:"schedule,omitempty" doc:"Scheduler state, absent when no scheduler is running"`
}

// ScheduleStatus is the REST representation of a scheduler snapshot.
type ScheduleStatus struct {
	State         string    `json:"state" enum:"armed,disabled,exhausted" doc:"Runner state"`
	RunsCompleted int       `json:"runs_completed" doc:"Invocations finished, including failures"`
	Failures      int       `json:"failures" doc:"Invocations that returned an error"`
	SkippedTicks  int       `json:"skipped_ticks" doc:"Ticks skipped because the previous run was still in flight"`
	Running       bool      `json:"running" doc:"Whether an invocation is in flight"`
	LastRun       time.Time `json:"last_run,omitzero" doc:"Completion time of the last run"`
	LastFailure   time.Time `json:"last_failure,omitzero" doc:"Completion time of the last failed run"`
	LastError     string    `json:"last_error,omitempty" doc:"Error of the last failed run"`
}

// PostPlugSummary is the REST representation of a PostPlug.
type PostPlugSummary struct {
	Identifier      string                 `json:"identifier" doc:"PostPlug identifier"`
	Title           string                 `json:"title" doc:"Display title"`
	Description     string                 `json:"description,omitempty" doc:"PostPlug description"`
	Owner           string                 `json:"owner" doc:"Module that declared the post-plug"`
	Disabled        bool                   `json:"disabled" doc:"Whether the post-plug is currently disabled"`
	PickIntegration []string               `json:"pick_integration" doc:"Integration types the post-plug applies to"`
	Fields          []capability.FieldSpec `json:"fields,omitempty" doc:"User-supplied values the post-plug accepts"`
}

// RunSummary is the REST representation of a run ledger entry.
type RunSummary struct {
	ID         string    `json:"id" doc:"Record identifier"`
	Kind       string    `json:"kind" doc:"Record kind, e.g. plug.run.failed"`
	Identifier string    `json:"identifier" doc:"Capability identifier"`
	Owner      string    `json:"owner,omitempty" doc:"Owning module"`
	Run        int       `json:"run" doc:"1-based run number, 0 for on-demand invocations"`
	Error      string    `json:"error,omitempty" doc:"Failure message"`
	Timestamp  time.Time `json:"timestamp" doc:"Time the record was reported"`
}

func (s *Services) plugSummary(e *registry.PlugEntry) PlugSummary {
	d := e.Descriptor()
	sum := PlugSummary{
		Identifier:           d.Identifier,
		Title:                d.Title,
		Description:          d.Description,
		Owner:                e.Owner(),
		Disabled:             d.Disabled,
		RunEveryMilliseconds: d.RunEveryMilliseconds,
		TotalRuns:            d.TotalRuns,
		Fields:               d.Fields,
	}
	if s.scheduler != nil {
		if snap, err := s.scheduler.Snapshot(d.Identifier); err == nil {
			sum.Schedule = &ScheduleStatus{
				State:         snap.State.String(),
				RunsCompleted: snap.RunsCompleted,
				Failures:      snap.Failures,
				SkippedTicks:  snap.SkippedTicks,
				Running:       snap.Running,
				LastRun:       snap.LastRun,
				LastFailure:   snap.LastFailure,
				LastError:     snap.LastError,
			}
		}
	}
	return sum
}

func postPlugSummary(e *registry.PostPlugEntry) PostPlugSummary {
	d := e.Descriptor()
	return PostPlugSummary{
		Identifier:      d.Identifier,
		Title:           d.Title,
		Description:     d.Description,
		Owner:           e.Owner(),
		Disabled:        d.Disabled,
		PickIntegration: d.PickIntegration,
		Fields:          d.Fields,
	}
}

func runSummary(e *store.RunEntry) RunSummary {
	return RunSummary{
		ID:         e.ID,
		Kind:       e.Kind,
		Identifier: e.Identifier,
		Owner:      e.Owner,
		Run:        e.Run,
		Error:      e.Error,
		Timestamp:  e.Timestamp,
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

// Package scheduler runs every registered Plug on its own interval until the
// Plug has used up its TotalRuns.
//
// Each Plug gets a runner with an independent ticker. A tick that finds the
// Plug disabled does nothing; a tick that finds the previous invocation still
// running is skipped. Invocations run on their own goroutines so a slow
// integration never delays other Plugs, and their failures never stop the
// scheduler.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/postwright/postwright/internal/dispatch"
	"github.com/postwright/postwright/internal/registry"
	"github.com/postwright/postwright/internal/telemetry"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// Snapshot is a point-in-time view of one runner.
type Snapshot struct {
	Identifier    string    `json:"identifier" yaml:"identifier"`
	Owner         string    `json:"owner" yaml:"owner"`
	State         State     `json:"state" yaml:"state"`
	RunsCompleted int       `json:"runs_completed" yaml:"runs_completed"`
	TotalRuns     int       `json:"total_runs" yaml:"total_runs"`
	Failures      int       `json:"failures" yaml:"failures"`
	SkippedTicks  int       `json:"skipped_ticks" yaml:"skipped_ticks"`
	Running       bool      `json:"running" yaml:"running"`
	LastRun       time.Time `json:"last_run,omitzero" yaml:"last_run,omitempty"`
	LastFailure   time.Time `json:"last_failure,omitzero" yaml:"last_failure,omitempty"`
	LastError     string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTicker replaces the time.Ticker based factory.
func WithTicker(f TickerFactory) Option {
	return func(s *Scheduler) { s.newTicker = f }
}

// WithClock sets the clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithDispatcher sets the dispatcher resolving each Plug's integration. When
// unset, every Plug receives a dry-run dispatch.LogIntegration.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(s *Scheduler) { s.dispatcher = d }
}

// WithObserver sets the observer receiving run records.
func WithObserver(o telemetry.Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithValues sets per-Plug field values passed to each invocation, keyed by
// Plug identifier.
func WithValues(values map[string]map[string]string) Option {
	return func(s *Scheduler) {
		for id, v := range values {
			s.values[id] = maps.Clone(v)
		}
	}
}

// FieldChecker validates user-supplied field values. *validator.Validator
// implements it.
type FieldChecker interface {
	CheckFields(kind capability.Kind, id string, values map[string]string) error
}

// WithValidator makes every invocation check the Plug's values first. A Plug
// whose values do not satisfy its fields fails the run without calling the
// bound action.
func WithValidator(c FieldChecker) Option {
	return func(s *Scheduler) { s.fields = c }
}

// Scheduler drives the Plugs of one catalog.
type Scheduler struct {
	catalog    *registry.Catalog
	dispatcher dispatch.Dispatcher
	fields     FieldChecker
	observer   telemetry.Observer
	newTicker  TickerFactory
	now        func() time.Time
	values     map[string]map[string]string

	runners []*runner
	byID    map[string]*runner

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}

	loops    sync.WaitGroup
	inflight sync.WaitGroup
}

// New creates a scheduler with one runner per Plug in catalog order. Nothing
// runs until Start.
func New(catalog *registry.Catalog, opts ...Option) *Scheduler {
	s := &Scheduler{
		catalog:   catalog,
		observer:  telemetry.Nop,
		newTicker: NewTimeTicker,
		now:       time.Now,
		values:    make(map[string]map[string]string),
		byID:      make(map[string]*runner),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, e := range catalog.Plugs() {
		desc := e.Descriptor()
		r := &runner{
			entry: e,
			total: desc.TotalRuns,
			every: time.Duration(desc.RunEveryMilliseconds) * time.Millisecond,
			done:  make(chan struct{}),
		}
		switch {
		case desc.TotalRuns == 0:
			r.state = StateExhausted
			close(r.done)
		case e.Disabled():
			r.state = StateDisabled
		default:
			r.state = StateArmed
		}
		s.runners = append(s.runners, r)
		s.byID[e.Identifier()] = r
	}
	return s
}

// Start launches a goroutine and ticker for every runner that is not
// exhausted. Invocations inherit ctx's values but not its cancellation;
// cancelling ctx stops the tickers like Stop does, without waiting. A stopped
// scheduler cannot be started, even when Stop came first.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return pwerr.New(pwerr.CodeSchedulerStateInvalid, "scheduler already stopped")
	}
	if s.started {
		return pwerr.New(pwerr.CodeSchedulerAlreadyStarted, "scheduler already started")
	}
	s.started = true

	invokeCtx := context.WithoutCancel(ctx)
	armed := 0
	for _, r := range s.runners {
		if r.snapshotState() == StateExhausted {
			continue
		}
		r.ticker = s.newTicker(r.every)
		armed++
		s.loops.Add(1)
		go s.loop(ctx, invokeCtx, r)
	}

	slog.Info("plug scheduler started", "plugs", len(s.runners), "ticking", armed)
	return nil
}

// Stop stops every ticker and waits for in-flight invocations until ctx is
// done. Invocations still running at the deadline are abandoned and Stop
// returns a CodeSchedulerShutdownTimeout error; they may still report to the
// observer afterwards, so observers backed by closable resources must outlive
// them or tolerate late records. Stop is idempotent.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.stopped = true
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	s.loops.Wait()

	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		slog.Info("plug scheduler stopped")
		return nil
	case <-ctx.Done():
		running := 0
		for _, r := range s.runners {
			if r.inflight.Load() {
				running++
			}
		}
		slog.Warn("plug scheduler stop deadline reached, abandoning invocations", "running", running)
		return pwerr.Wrap(ctx.Err(), pwerr.CodeSchedulerShutdownTimeout,
			fmt.Sprintf("abandoned %d in-flight plug invocations", running))
	}
}

// Snapshot returns the current metrics of the Plug id.
func (s *Scheduler) Snapshot(id string) (Snapshot, error) {
	r, ok := s.byID[id]
	if !ok {
		return Snapshot{}, pwerr.New(pwerr.CodeSchedulerPlugNotFound, "plug not found: "+id, pwerr.FieldPlug(id))
	}
	return r.snapshot(), nil
}

// Snapshots returns the metrics of every Plug in catalog order.
func (s *Scheduler) Snapshots() []Snapshot {
	out := make([]Snapshot, len(s.runners))
	for i, r := range s.runners {
		out[i] = r.snapshot()
	}
	return out
}

func (s *Scheduler) loop(ctx, invokeCtx context.Context, r *runner) {
	defer s.loops.Done()
	defer r.ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-r.ticker.C():
			s.tick(invokeCtx, r)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, r *runner) {
	id := r.entry.Identifier()

	r.mu.Lock()
	if r.state == StateExhausted {
		r.mu.Unlock()
		return
	}

	if r.entry.Disabled() {
		if r.state == StateArmed {
			r.transition(StateDisabled)
			slog.Info("plug disabled, pausing", "plug", id)
		}
		r.mu.Unlock()
		return
	}
	if r.state == StateDisabled {
		r.transition(StateArmed)
		slog.Info("plug re-enabled", "plug", id)
	}

	if r.runs >= r.total {
		r.exhaust()
		r.mu.Unlock()
		return
	}

	if !r.inflight.CompareAndSwap(false, true) {
		r.skipped++
		r.mu.Unlock()
		slog.Warn("skipping plug tick, previous invocation still running", "plug", id)
		return
	}
	run := r.runs + 1
	r.mu.Unlock()

	s.inflight.Add(1)
	go s.invoke(ctx, r, run)
}

func (s *Scheduler) invoke(ctx context.Context, r *runner, run int) {
	defer s.inflight.Done()

	id := r.entry.Identifier()
	owner := r.entry.Owner()

	err := s.call(ctx, r, run)
	at := s.now()

	r.mu.Lock()
	r.runs++
	r.lastRun = at
	if err != nil {
		r.failures++
		r.lastFailure = at
		r.lastErr = err.Error()
	}
	if r.runs >= r.total {
		r.exhaust()
	}
	exhausted := r.state == StateExhausted
	r.inflight.Store(false)
	r.mu.Unlock()

	kind := telemetry.KindRunSucceeded
	if err != nil {
		kind = telemetry.KindRunFailed
		slog.Warn("plug run failed", "plug", id, "owner", owner, "run", run, "error", err)
	} else {
		slog.Debug("plug run completed", "plug", id, "owner", owner, "run", run)
	}
	s.observer.Report(ctx, telemetry.NewRecord(kind, id, owner, run, err, at))

	if exhausted {
		slog.Info("plug exhausted", "plug", id, "runs", run)
	}
}

// call resolves the integration and runs the bound action with panic
// recovery.
func (s *Scheduler) call(ctx context.Context, r *runner, run int) (err error) {
	id := r.entry.Identifier()
	owner := r.entry.Owner()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("plug panic recovered",
				"plug", id,
				"panic", rec,
				"stack", string(debug.Stack()))
			err = pwerr.Errorf(pwerr.CodeSchedulerInvokeFailure, "plug panic: %v", rec)
		}
	}()

	values := maps.Clone(s.values[id])
	if s.fields != nil {
		if err := s.fields.CheckFields(capability.KindPlug, id, values); err != nil {
			return pwerr.Wrap(err, pwerr.CodeSchedulerInvokeFailure,
				fmt.Sprintf("plug %q run %d skipped", id, run), pwerr.FieldPlug(id))
		}
	}

	var integration capability.Integration
	if s.dispatcher == nil {
		integration = dispatch.NewLogIntegration(owner, nil)
	} else {
		integration, err = s.dispatcher.ResolveIntegrationType(ctx, owner)
		if err != nil {
			return pwerr.Wrap(err, pwerr.CodeSchedulerInvokeFailure,
				fmt.Sprintf("resolving integration %q for plug %q", owner, id),
				pwerr.FieldPlug(id), pwerr.FieldIntegration(owner))
		}
	}

	call := capability.PlugCall{
		Identifier:  id,
		Run:         run,
		Values:      values,
		Integration: integration,
	}
	if err := r.entry.Action()(ctx, call); err != nil {
		return pwerr.Wrap(err, pwerr.CodeSchedulerInvokeFailure,
			fmt.Sprintf("plug %q run %d failed", id, run), pwerr.FieldPlug(id))
	}
	return nil
}

type runner struct {
	entry *registry.PlugEntry
	total int
	every time.Duration

	// ticker is set by Start before the loop goroutine begins.
	ticker Ticker

	inflight atomic.Bool

	mu          sync.Mutex
	state       State
	runs        int
	failures    int
	skipped     int
	lastRun     time.Time
	lastFailure time.Time
	lastErr     string
	done        chan struct{}
}

// transition must be called with r.mu held.
func (r *runner) transition(to State) {
	if !ValidTransition(r.state, to) {
		slog.Error("invalid plug state transition",
			"plug", r.entry.Identifier(), "from", r.state.String(), "to", to.String())
		return
	}
	r.state = to
}

// exhaust moves the runner to Exhausted and stops its ticker. It must be
// called with r.mu held.
func (r *runner) exhaust() {
	if r.state == StateExhausted {
		return
	}
	r.transition(StateExhausted)
	close(r.done)
	if r.ticker != nil {
		r.ticker.Stop()
	}
}

func (r *runner) snapshotState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *runner) snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Identifier:    r.entry.Identifier(),
		Owner:         r.entry.Owner(),
		State:         r.state,
		RunsCompleted: r.runs,
		TotalRuns:     r.total,
		Failures:      r.failures,
		SkippedTicks:  r.skipped,
		Running:       r.inflight.Load(),
		LastRun:       r.lastRun,
		LastFailure:   r.lastFailure,
		LastError:     r.lastErr,
	}
}

package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"runctl/internal/combinator"
	"runctl/internal/notifier"
	"runctl/internal/platform"
	"runctl/internal/schema"
	"runctl/internal/task"
	"runctl/internal/testcase"
	"runctl/internal/variable"
	"runctl/pkg/logging"
)

// RootRunner owns one run: it expands the runbook's combinator into
// runners, keeps the worker pool saturated with their tasks, and
// aggregates every result. The main loop runs on one goroutine; results
// arrive through the pool's completion callback.
type RootRunner struct {
	runbook  *schema.Runbook
	vars     variable.Set
	platform platform.Platform
	notifier *notifier.Fanout
	catalog  *testcase.Catalog

	resultsMu sync.Mutex
	results   []*testcase.Result
}

// NewRoot wires a run from its loaded runbook and frozen variables.
func NewRoot(rb *schema.Runbook, vars variable.Set, fanout *notifier.Fanout, catalog *testcase.Catalog) (*RootRunner, error) {
	pf, err := platform.New(rb.Platform)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = testcase.Default()
	}
	return &RootRunner{
		runbook:  rb,
		vars:     vars,
		platform: pf,
		notifier: fanout,
		catalog:  catalog,
	}, nil
}

// Results returns the aggregated results so far. The returned slice is
// a snapshot; safe to call after Run returns.
func (r *RootRunner) Results() []*testcase.Result {
	r.resultsMu.Lock()
	defer r.resultsMu.Unlock()
	return append([]*testcase.Result(nil), r.results...)
}

// Run drives the whole run to completion and returns the number of
// failed cases, the run's exit code. A summary event fires even when
// the run aborts.
func (r *RootRunner) Run(ctx context.Context) (int, error) {
	concurrency := r.runbook.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	workDir := filepath.Join(r.runbook.WorkDir, r.runbook.RunID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create run working directory: %w", err)
	}

	manager := task.NewManager(concurrency, r.applyResults)
	stop := context.AfterFunc(ctx, manager.Cancel)
	defer stop()

	logging.Info(logSubsystem, "run %s started, concurrency %d", r.runbook.RunID, concurrency)
	r.notifier.Notify(notifier.RunStarted(r.runbook.RunID, concurrency))

	aborted := false
	defer func() {
		summary := testcase.Summarize(r.Results())
		r.notifier.Notify(notifier.RunCompleted(r.runbook.RunID, summary, aborted))
	}()

	source, err := r.newSource(workDir)
	if err != nil {
		aborted = true
		return 0, err
	}

	var active []BaseRunner
	defer func() {
		for _, rn := range append(active, source.pending...) {
			if err := rn.Close(); err != nil {
				logging.Warn(logSubsystem, "failed to close runner %s: %v", rn.ID(), err)
			}
		}
	}()

	loopErr := func() error {
		for {
			if manager.Canceled() {
				aborted = true
				return ctx.Err()
			}

			active = closeDone(active)

			// Materialize runners lazily, never more than concurrency at
			// a time so a huge sweep stays bounded.
			for len(active) < concurrency {
				rn, ok, err := source.Next()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				logging.Debug(logSubsystem, "runner %s joined", rn.ID())
				active = append(active, rn)
			}

			progressed, err := r.saturate(manager, active)
			if err != nil {
				return err
			}

			if manager.WaitWorker() || progressed {
				continue
			}
			active = closeDone(active)
			if len(active) == 0 && source.Exhausted() {
				if manager.Canceled() {
					aborted = true
					return ctx.Err()
				}
				return nil
			}
			// No work ready, nothing in flight; yield before polling again.
			time.Sleep(10 * time.Millisecond)
		}
	}()
	if loopErr != nil {
		aborted = true
		manager.Cancel()
		// Let in-flight units finish marking their results.
		for manager.WaitWorker() {
		}
		return r.failedCount(), loopErr
	}

	return r.failedCount(), nil
}

// saturate polls the active runners for work while idle workers remain.
// Synchronous results are applied inline; tasks go to the pool.
func (r *RootRunner) saturate(manager *task.Manager[[]*testcase.Result], active []BaseRunner) (bool, error) {
	progressed := false
	for _, rn := range active {
		for manager.HasIdleWorker() {
			t, direct, err := rn.FetchTask(manager.Context())
			if err != nil {
				return progressed, fmt.Errorf("runner %s: %w", rn.ID(), err)
			}
			if t == nil && direct == nil {
				break
			}
			if direct != nil {
				r.applyResults(direct)
				progressed = true
			}
			if t != nil {
				if err := manager.Submit(t); err != nil {
					return progressed, err
				}
				progressed = true
			}
		}
		if !manager.HasIdleWorker() {
			break
		}
	}
	return progressed, nil
}

// applyResults records finished results and fans out one event per
// case. It is the pool's completion callback and also serves results
// runners resolve synchronously.
func (r *RootRunner) applyResults(results []*testcase.Result) {
	r.resultsMu.Lock()
	r.results = append(r.results, results...)
	r.resultsMu.Unlock()

	for _, result := range results {
		r.notifier.Notify(notifier.CaseResult(result))
	}
}

func (r *RootRunner) failedCount() int {
	return testcase.Summarize(r.Results()).Failed
}

// closeDone closes finished runners and returns the still-active rest.
func closeDone(active []BaseRunner) []BaseRunner {
	remaining := active[:0]
	for _, rn := range active {
		if rn.IsDone() {
			logging.Debug(logSubsystem, "runner %s done", rn.ID())
			if err := rn.Close(); err != nil {
				logging.Warn(logSubsystem, "failed to close runner %s: %v", rn.ID(), err)
			}
			continue
		}
		remaining = append(remaining, rn)
	}
	return remaining
}

// runnerSource materializes runners one combinator step at a time. A
// runbook without a combinator yields exactly one step with the run's
// frozen variables.
type runnerSource struct {
	root    *RootRunner
	workDir string
	comb    combinator.Combinator
	done    bool
	pending []BaseRunner
	index   int
}

func (r *RootRunner) newSource(workDir string) (*runnerSource, error) {
	s := &runnerSource{root: r, workDir: workDir}
	if r.runbook.Combinator != nil {
		comb, err := combinator.New(r.runbook.Combinator)
		if err != nil {
			return nil, err
		}
		s.comb = comb
	}
	return s, nil
}

// Next pops the next runner, refilling from the combinator when the
// current step is spent. ok is false once the sweep is exhausted.
func (s *runnerSource) Next() (rn BaseRunner, ok bool, err error) {
	if len(s.pending) == 0 {
		if err := s.refill(); err != nil {
			return nil, false, err
		}
	}
	if len(s.pending) == 0 {
		return nil, false, nil
	}
	rn = s.pending[0]
	s.pending = s.pending[1:]
	return rn, true, nil
}

// Exhausted reports that no further runner will ever be produced.
func (s *runnerSource) Exhausted() bool {
	return s.done && len(s.pending) == 0
}

// refill fetches one combinator step and builds a runner per runner
// kind the enabled filters name, preserving filter order.
func (s *runnerSource) refill() error {
	if s.done {
		return nil
	}
	stepVars := s.root.vars
	if s.comb == nil {
		s.done = true
	} else {
		vars, ok := s.comb.Fetch(s.root.vars)
		if !ok {
			s.done = true
			return nil
		}
		stepVars = vars
	}

	var kinds []string
	byKind := map[string][]schema.CaseFilter{}
	for _, f := range s.root.runbook.TestCases {
		if !f.Enabled() {
			continue
		}
		kind := f.RunnerKind()
		if _, ok := byKind[kind]; !ok {
			kinds = append(kinds, kind)
		}
		byKind[kind] = append(byKind[kind], f)
	}

	for _, kind := range kinds {
		rn, err := New(kind, Params{
			Runbook:   s.root.runbook,
			Filters:   byKind[kind],
			Index:     s.index,
			Variables: stepVars,
			Catalog:   s.root.catalog,
			Platform:  s.root.platform,
			WorkDir:   s.workDir,
		})
		if err != nil {
			return err
		}
		s.index++
		s.pending = append(s.pending, rn)
	}
	return nil
}

package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"runctl/internal/environment"
	"runctl/internal/platform"
	"runctl/internal/schema"
	"runctl/internal/space"
	"runctl/internal/task"
	"runctl/internal/testcase"
	"runctl/internal/variable"
	"runctl/pkg/logging"
)

const logSubsystem = "runner"

// caseGroup is one schedulable unit: every case sharing the same
// effective requirement, executed against one environment.
type caseGroup struct {
	requirement *schema.NodeSpace
	capability  *schema.NodeSpace // minimal negotiated fit, nil until checked
	cases       []testcase.Metadata
	results     []*testcase.Result
}

// localRunner executes case groups on environments requested from the
// configured platform, one environment per group.
type localRunner struct {
	id       string
	platform platform.Platform
	vars     variable.Set

	log       *slog.Logger
	logCloser io.Closer
	closeOnce sync.Once

	groups   []*caseGroup
	nextTask int
	inflight atomic.Int32
}

func newLocalRunner(p Params) (BaseRunner, error) {
	id := fmt.Sprintf("local-%d", p.Index)

	selected, err := selectCases(p.Catalog, p.Filters)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(p.WorkDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runner working directory: %w", err)
	}
	log, closer, err := logging.NewFileLogger(filepath.Join(dir, "runner.log"), logging.LevelDebug)
	if err != nil {
		return nil, err
	}

	r := &localRunner{
		id:        id,
		platform:  p.Platform,
		vars:      p.Variables,
		log:       log,
		logCloser: closer,
		groups:    groupByRequirement(selected, p.Runbook.Requirement),
	}
	logging.Debug(logSubsystem, "%s: %d cases in %d groups", id, len(selected), len(r.groups))
	return r, nil
}

// selectCases resolves the runner's filters against the catalog,
// deduplicating cases matched by more than one filter.
func selectCases(catalog *testcase.Catalog, filters []schema.CaseFilter) ([]testcase.Metadata, error) {
	var selected []testcase.Metadata
	seen := map[string]struct{}{}
	for _, f := range filters {
		matched, err := catalog.Select(f)
		if err != nil {
			return nil, err
		}
		for _, md := range matched {
			if _, ok := seen[md.Name]; ok {
				continue
			}
			seen[md.Name] = struct{}{}
			selected = append(selected, md)
		}
	}
	return selected, nil
}

// groupByRequirement partitions cases into units sharing one effective
// requirement, preserving selection order. A runbook-level requirement
// overrides every case's own declaration.
func groupByRequirement(cases []testcase.Metadata, override *schema.NodeSpace) []*caseGroup {
	var groups []*caseGroup
	byKey := map[string]*caseGroup{}
	for _, md := range cases {
		req := md.EffectiveRequirement()
		if override != nil {
			req = override
		}
		key := req.String()
		g, ok := byKey[key]
		if !ok {
			g = &caseGroup{requirement: req}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.cases = append(g.cases, md)
		g.results = append(g.results, testcase.NewResult(md.Name, md.Suite))
	}
	return groups
}

func (r *localRunner) ID() string { return r.id }

// IsDone reports no queued groups and no group still executing.
func (r *localRunner) IsDone() bool {
	return len(r.groups) == 0 && r.inflight.Load() == 0
}

// FetchTask pops the next group. Groups whose requirement no capability
// satisfies are resolved synchronously as skipped; the rest become an
// asynchronous task deploying an environment and running the cases.
func (r *localRunner) FetchTask(ctx context.Context) (*task.Task[[]*testcase.Result], []*testcase.Result, error) {
	if len(r.groups) == 0 {
		return nil, nil, nil
	}
	g := r.groups[0]
	r.groups = r.groups[1:]

	if reason := r.negotiate(g); !reason.IsSatisfied() {
		message := fmt.Sprintf("no capability satisfies requirement: %s", reason)
		for _, result := range g.results {
			if err := result.Transition(testcase.StatusSkipped, message); err != nil {
				return nil, nil, err
			}
		}
		r.log.Info("group skipped", "requirement", g.requirement.String(), "reason", reason.String())
		return nil, g.results, nil
	}

	r.nextTask++
	name := fmt.Sprintf("%s-unit-%d", r.id, r.nextTask)
	r.inflight.Add(1)
	t := task.New(r.nextTask, name,
		func(ctx context.Context) []*testcase.Result {
			defer r.inflight.Add(-1)
			return r.runGroup(ctx, g)
		},
		func(rec any) []*testcase.Result {
			message := r.vars.Mask(fmt.Sprintf("unit panicked: %v", rec))
			for _, result := range g.results {
				if !result.Status.IsTerminal() {
					_ = result.Transition(testcase.StatusFailed, message)
				}
			}
			return g.results
		})
	return t, nil, nil
}

// negotiate finds the first advertised capability satisfying the group
// requirement and stores the minimal fit. The returned reason is empty
// on success and aggregates every mismatch otherwise.
func (r *localRunner) negotiate(g *caseGroup) space.ResultReason {
	var combined space.ResultReason
	for _, offered := range r.platform.Capabilities() {
		reason := g.requirement.Check(offered)
		if reason.IsSatisfied() {
			min, err := g.requirement.GenerateMinCapability(offered)
			if err != nil {
				combined.Add("%v", err)
				continue
			}
			g.capability = min
			return space.ResultReason{}
		}
		combined.Merge(reason, offered.Name)
	}
	if len(r.platform.Capabilities()) == 0 {
		combined.Add("platform advertises no capabilities")
	}
	return combined
}

// runGroup deploys one environment, runs every case in the group on it,
// and releases the environment. It always returns a terminal result for
// each case.
func (r *localRunner) runGroup(ctx context.Context, g *caseGroup) []*testcase.Result {
	env, err := r.deploy(ctx, g)
	if err != nil {
		message := r.vars.Mask(fmt.Sprintf("environment request failed: %v", err))
		r.log.Error("deployment failed", "error", err)
		for _, result := range g.results {
			_ = result.Transition(testcase.StatusFailed, message)
		}
		return g.results
	}
	defer func() {
		if err := r.platform.DeleteEnvironment(context.Background(), env); err != nil {
			logging.Warn(logSubsystem, "%s: failed to delete environment %s: %v", r.id, env.Name, err)
		}
	}()

	node, err := env.DefaultNode()
	if err != nil {
		for _, result := range g.results {
			_ = result.Transition(testcase.StatusFailed, err.Error())
		}
		return g.results
	}

	caseVars := r.vars.CaseVisible()
	for i, md := range g.cases {
		result := g.results[i]
		if ctx.Err() != nil {
			_ = result.Transition(testcase.StatusNotRun, "run canceled")
			continue
		}
		r.runCase(ctx, md, result, env, node, caseVars)
	}
	return g.results
}

func (r *localRunner) deploy(ctx context.Context, g *caseGroup) (*environment.Environment, error) {
	requirements, err := g.capability.ExpandByNodeCount()
	if err != nil {
		return nil, err
	}
	env := environment.New("", requirements)
	env.Platform = r.platform.Kind()
	r.log.Info("requesting environment", "environment", env.Name, "nodes", len(requirements))
	if err := r.platform.RequestEnvironment(ctx, env); err != nil {
		return nil, err
	}
	return env, nil
}

// runCase executes one case, mapping a panic inside the case body to a
// failed result so the rest of the group still runs.
func (r *localRunner) runCase(ctx context.Context, md testcase.Metadata, result *testcase.Result, env *environment.Environment, node *environment.Node, vars variable.Set) {
	if err := result.Transition(testcase.StatusRunning, ""); err != nil {
		logging.Warn(logSubsystem, "%s: %v", r.id, err)
	}
	r.log.Info("case started", "case", md.Name)

	started := time.Now()
	outcome := func() (outcome testcase.Outcome) {
		defer func() {
			if rec := recover(); rec != nil {
				outcome = testcase.Failedf("case panicked: %v", rec)
			}
		}()
		return md.Run(ctx, &testcase.CaseContext{
			Environment: env,
			Node:        node,
			Variables:   vars,
			Log:         r.log.With("case", md.Name),
		})
	}()
	result.Elapsed = time.Since(started)

	_ = result.Transition(outcome.Status(), r.vars.Mask(outcome.Message()))
	r.log.Info("case finished", "case", md.Name, "status", string(outcome.Status()), "elapsed", result.Elapsed.String())
}

// Close releases the runner's log file. Safe to call more than once.
func (r *localRunner) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.logCloser.Close()
	})
	return err
}

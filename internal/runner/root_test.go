package runner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runctl/internal/notifier"
	"runctl/internal/schema"
	"runctl/internal/space"
	"runctl/internal/testcase"
	"runctl/internal/variable"
)

func testRunbook(t *testing.T, cores int) *schema.Runbook {
	t.Helper()
	return &schema.Runbook{
		RunID:       "test-run",
		Concurrency: 2,
		WorkDir:     t.TempDir(),
		Platform: schema.PlatformConfig{
			Kind: "local",
			Capability: &schema.NodeSpace{
				Name:      "test-host",
				NodeCount: space.ExactCount(1),
				CoreCount: space.ExactCount(cores),
				MemoryMB:  space.ExactCount(4096),
				NicCount:  space.ExactCount(1),
			},
		},
		TestCases: []schema.CaseFilter{{Name: "unit_*"}},
	}
}

func testFanout(t *testing.T) *notifier.Fanout {
	t.Helper()
	fanout, err := notifier.NewFanout(nil)
	require.NoError(t, err)
	t.Cleanup(fanout.Close)
	return fanout
}

func TestRunOneResultPerCombinatorStep(t *testing.T) {
	catalog := testcase.NewCatalog()
	require.NoError(t, catalog.Register(testcase.Metadata{
		Name:  "unit_echo_size",
		Suite: "unit",
		Run: func(ctx context.Context, tc *testcase.CaseContext) testcase.Outcome {
			entry, ok := tc.Variables.Get("size")
			if !ok {
				return testcase.Failedf("variable size not visible")
			}
			return testcase.Passed(entry.Value)
		},
	}))

	rb := testRunbook(t, 8)
	rb.Combinator = &schema.CombinatorConfig{
		Kind:   schema.CombinatorGrid,
		Fields: []schema.GridField{{Name: "size", Values: []string{"small", "medium", "large"}}},
	}

	root, err := NewRoot(rb, variable.Set{}, testFanout(t), catalog)
	require.NoError(t, err)

	exitCode, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)

	results := root.Results()
	require.Len(t, results, 3)
	messages := map[string]bool{}
	for _, r := range results {
		assert.Equal(t, testcase.StatusPassed, r.Status)
		messages[r.Message] = true
	}
	assert.Equal(t, map[string]bool{"small": true, "medium": true, "large": true}, messages)
}

func TestRunSkipsUnsatisfiableRequirement(t *testing.T) {
	catalog := testcase.NewCatalog()
	require.NoError(t, catalog.Register(testcase.Metadata{
		Name:  "unit_needs_many_cores",
		Suite: "unit",
		Requirement: &schema.NodeSpace{
			NodeCount: space.ExactCount(1),
			CoreCount: space.MinCount(16),
		},
		Run: func(ctx context.Context, tc *testcase.CaseContext) testcase.Outcome {
			return testcase.Passed("")
		},
	}))

	root, err := NewRoot(testRunbook(t, 8), variable.Set{}, testFanout(t), catalog)
	require.NoError(t, err)

	exitCode, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode, "a skipped case is not a failure")

	results := root.Results()
	require.Len(t, results, 1)
	assert.Equal(t, testcase.StatusSkipped, results[0].Status)
	assert.Contains(t, results[0].Message, "core_count")
}

func TestRunFailedCountIsExitCode(t *testing.T) {
	catalog := testcase.NewCatalog()
	require.NoError(t, catalog.Register(testcase.Metadata{
		Name:  "unit_passes",
		Suite: "unit",
		Run: func(ctx context.Context, tc *testcase.CaseContext) testcase.Outcome {
			return testcase.Passed("")
		},
	}))
	require.NoError(t, catalog.Register(testcase.Metadata{
		Name:  "unit_fails_one",
		Suite: "unit",
		Run: func(ctx context.Context, tc *testcase.CaseContext) testcase.Outcome {
			return testcase.Failedf("expected 4, got 5")
		},
	}))
	require.NoError(t, catalog.Register(testcase.Metadata{
		Name:  "unit_fails_two",
		Suite: "unit",
		Run: func(ctx context.Context, tc *testcase.CaseContext) testcase.Outcome {
			return testcase.Failedf("boom")
		},
	}))

	root, err := NewRoot(testRunbook(t, 8), variable.Set{}, testFanout(t), catalog)
	require.NoError(t, err)

	exitCode, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, exitCode)
}

func TestRunCasePanicFailsOnlyItsGroup(t *testing.T) {
	catalog := testcase.NewCatalog()
	require.NoError(t, catalog.Register(testcase.Metadata{
		Name:  "unit_panics",
		Suite: "unit",
		Run: func(ctx context.Context, tc *testcase.CaseContext) testcase.Outcome {
			panic("unexpected state")
		},
	}))
	require.NoError(t, catalog.Register(testcase.Metadata{
		Name:  "unit_survives",
		Suite: "unit",
		Run: func(ctx context.Context, tc *testcase.CaseContext) testcase.Outcome {
			return testcase.Passed("")
		},
	}))

	root, err := NewRoot(testRunbook(t, 8), variable.Set{}, testFanout(t), catalog)
	require.NoError(t, err)

	exitCode, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, exitCode)

	byName := map[string]testcase.Status{}
	for _, r := range root.Results() {
		byName[r.Name] = r.Status
	}
	assert.Equal(t, testcase.StatusFailed, byName["unit_panics"])
	assert.Equal(t, testcase.StatusPassed, byName["unit_survives"])
}

func TestRunCancellationDoesNotDeadlock(t *testing.T) {
	catalog := testcase.NewCatalog()
	require.NoError(t, catalog.Register(testcase.Metadata{
		Name:  "unit_blocks_until_canceled",
		Suite: "unit",
		Run: func(ctx context.Context, tc *testcase.CaseContext) testcase.Outcome {
			<-ctx.Done()
			return testcase.Skipped("canceled")
		},
	}))

	root, err := NewRoot(testRunbook(t, 8), variable.Set{}, testFanout(t), catalog)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := root.Run(ctx)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestRunUnknownRunnerKind(t *testing.T) {
	catalog := testcase.NewCatalog()
	require.NoError(t, catalog.Register(testcase.Metadata{
		Name:  "unit_whatever",
		Suite: "unit",
		Run: func(ctx context.Context, tc *testcase.CaseContext) testcase.Outcome {
			return testcase.Passed("")
		},
	}))

	rb := testRunbook(t, 8)
	rb.TestCases = []schema.CaseFilter{{Name: "unit_*", Runner: "cloudburst"}}

	root, err := NewRoot(rb, variable.Set{}, testFanout(t), catalog)
	require.NoError(t, err)

	_, err = root.Run(context.Background())
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestGroupByRequirement(t *testing.T) {
	mdA := testcase.Metadata{Name: "a", Suite: "s"}
	mdB := testcase.Metadata{Name: "b", Suite: "s"}
	mdC := testcase.Metadata{
		Name:        "c",
		Suite:       "s",
		Requirement: &schema.NodeSpace{NodeCount: space.ExactCount(1), CoreCount: space.MinCount(4)},
	}

	groups := groupByRequirement([]testcase.Metadata{mdA, mdB, mdC}, nil)
	require.Len(t, groups, 2, "default-requirement cases share one group")
	assert.Len(t, groups[0].cases, 2)
	assert.Len(t, groups[1].cases, 1)

	// A runbook-level requirement collapses everything into one group.
	override := &schema.NodeSpace{NodeCount: space.ExactCount(1), CoreCount: space.MinCount(2)}
	groups = groupByRequirement([]testcase.Metadata{mdA, mdB, mdC}, override)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].cases, 3)
}

func TestSelectCasesDeduplicates(t *testing.T) {
	catalog := testcase.NewCatalog()
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("dedup_case_%d", i)
		require.NoError(t, catalog.Register(testcase.Metadata{
			Name:  name,
			Suite: "dedup",
			Run: func(ctx context.Context, tc *testcase.CaseContext) testcase.Outcome {
				return testcase.Passed("")
			},
		}))
	}

	selected, err := selectCases(catalog, []schema.CaseFilter{
		{Name: "dedup_*"},
		{Name: "dedup_case_1"},
	})
	require.NoError(t, err)
	assert.Len(t, selected, 3)
}

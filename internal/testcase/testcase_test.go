package testcase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runctl/internal/schema"
)

func noop(ctx context.Context, tc *CaseContext) Outcome {
	return Passed("")
}

func TestCatalogRegisterAndSelect(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(Metadata{Name: "net_ping", Suite: "network", Priority: 1, Run: noop}))
	require.NoError(t, c.Register(Metadata{Name: "net_dns", Suite: "network", Priority: 0, Run: noop}))
	require.NoError(t, c.Register(Metadata{Name: "disk_io", Suite: "storage", Run: noop}))

	t.Run("select by suite sorts by priority", func(t *testing.T) {
		selected, err := c.Select(schema.CaseFilter{Name: "network"})
		require.NoError(t, err)
		require.Len(t, selected, 2)
		assert.Equal(t, "net_dns", selected[0].Name)
		assert.Equal(t, "net_ping", selected[1].Name)
	})

	t.Run("select by exact name", func(t *testing.T) {
		selected, err := c.Select(schema.CaseFilter{Name: "disk_io"})
		require.NoError(t, err)
		require.Len(t, selected, 1)
	})

	t.Run("wildcard prefix", func(t *testing.T) {
		selected, err := c.Select(schema.CaseFilter{Name: "net_*"})
		require.NoError(t, err)
		assert.Len(t, selected, 2)
	})

	t.Run("no match is an error", func(t *testing.T) {
		_, err := c.Select(schema.CaseFilter{Name: "nope"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoMatch)
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		err := c.Register(Metadata{Name: "net_ping", Suite: "other", Run: noop})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateCase)
	})
}

func TestRegisterValidation(t *testing.T) {
	c := NewCatalog()
	assert.Error(t, c.Register(Metadata{Name: "", Run: noop}))
	assert.Error(t, c.Register(Metadata{Name: "no_entry"}))

	bad := schema.DefaultNodeSpace()
	bad.Features = []schema.FeatureSetting{schema.PlainFeature("sriov")}
	bad.ExcludedFeatures = []schema.FeatureSetting{schema.PlainFeature("sriov")}
	assert.Error(t, c.Register(Metadata{Name: "contradiction", Run: noop, Requirement: bad}))
}

func TestEffectiveRequirement(t *testing.T) {
	md := Metadata{Name: "x", Run: noop}
	req := md.EffectiveRequirement()
	require.NotNil(t, req)
	assert.True(t, req.NodeCount.Contains(1))
}

func TestResultTransitions(t *testing.T) {
	r := NewResult("case", "suite")
	assert.Equal(t, StatusQueued, r.Status)

	require.NoError(t, r.Transition(StatusRunning, ""))
	require.NoError(t, r.Transition(StatusAttempted, "first try failed"))
	require.NoError(t, r.Transition(StatusRunning, ""), "retry re-enters RUNNING")
	require.NoError(t, r.Transition(StatusPassed, "ok"))

	// Terminal states admit nothing.
	assert.Error(t, r.Transition(StatusFailed, ""))
	assert.Error(t, r.Transition(StatusRunning, ""))
}

func TestResultTransitionRejectsBackwards(t *testing.T) {
	r := NewResult("case", "suite")
	require.NoError(t, r.Transition(StatusSkipped, "unsupported"))
	assert.True(t, r.Status.IsTerminal())
	assert.Error(t, r.Transition(StatusQueued, ""))
}

func TestOutcomeMapping(t *testing.T) {
	assert.Equal(t, StatusPassed, Passed("ok").Status())
	assert.Equal(t, StatusSkipped, Skipped("no gpu").Status())
	assert.Equal(t, StatusFailed, Failedf("exit %d", 2).Status())
	assert.Equal(t, "no gpu", Skipped("no gpu").Message())
}

func TestSummarize(t *testing.T) {
	results := []*Result{
		{Status: StatusPassed},
		{Status: StatusPassed},
		{Status: StatusFailed},
		{Status: StatusSkipped},
		{Status: StatusAttempted},
		{Status: StatusQueued},
	}
	s := Summarize(results)
	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Attempted)
	assert.Equal(t, 1, s.NotRun)
}

func TestRegisterBuiltins(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, RegisterBuiltins(c))
	selected, err := c.Select(schema.CaseFilter{Name: "smoke"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(selected), 3)
}

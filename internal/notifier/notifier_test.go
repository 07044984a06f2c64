package notifier

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"runctl/internal/schema"
	"runctl/internal/testcase"
)

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(schema.NotifierConfig{Kind: "pager"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	c := &consoleNotifier{out: &buf}

	c.Notify(RunStarted("run-1", 2))

	result := testcase.NewResult("smoke_echo", "smoke")
	require.NoError(t, result.Transition(testcase.StatusRunning, ""))
	require.NoError(t, result.Transition(testcase.StatusPassed, "ok"))
	c.Notify(CaseResult(result))

	c.Notify(RunCompleted("run-1", testcase.Summarize([]*testcase.Result{result}), false))

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "smoke_echo")
	assert.Contains(t, out, "PASSED")
	assert.Contains(t, out, "test result summary")
	assert.Contains(t, out, "TOTAL    : 1")
	assert.NotContains(t, out, "ATTEMPTED", "attempted row hidden when zero")
}

func TestConsoleSummaryOnAbort(t *testing.T) {
	var buf bytes.Buffer
	c := &consoleNotifier{out: &buf}
	c.Notify(RunCompleted("run-2", testcase.Summary{Total: 2, Failed: 1, NotRun: 1}, true))

	out := buf.String()
	assert.Contains(t, out, "run aborted")
	assert.Contains(t, out, "NOTRUN")
}

func TestFileNotifierWritesReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	f, err := New(schema.NotifierConfig{Kind: "file", Path: path})
	require.NoError(t, err)

	f.Notify(RunStarted("run-3", 1))
	result := testcase.NewResult("smoke_echo", "smoke")
	require.NoError(t, result.Transition(testcase.StatusSkipped, "core_count too small"))
	f.Notify(CaseResult(result))
	f.Notify(RunCompleted("run-3", testcase.Summarize([]*testcase.Result{result}), false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var report fileReport
	require.NoError(t, yaml.Unmarshal(data, &report))
	assert.Equal(t, "run-3", report.RunID)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "SKIPPED", report.Results[0].Status)
	assert.Equal(t, 1, report.Summary.Skipped)
}

func TestFanoutAlwaysHasConsole(t *testing.T) {
	fanout, err := NewFanout(nil)
	require.NoError(t, err)
	require.Len(t, fanout.sinks, 1)
	assert.Equal(t, "console", fanout.sinks[0].Kind())

	fanout, err = NewFanout([]schema.NotifierConfig{{Kind: "console"}})
	require.NoError(t, err)
	assert.Len(t, fanout.sinks, 1, "console not duplicated")
}

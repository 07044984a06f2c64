package notifier

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"runctl/internal/schema"
)

// fileNotifier collects case results and writes a YAML report when the
// run completes.
type fileNotifier struct {
	path string

	mu     sync.Mutex
	report fileReport
}

type fileReport struct {
	RunID     string           `yaml:"run_id"`
	StartedAt time.Time        `yaml:"started_at"`
	EndedAt   time.Time        `yaml:"ended_at"`
	Aborted   bool             `yaml:"aborted,omitempty"`
	Results   []fileCaseResult `yaml:"results"`
	Summary   fileSummary      `yaml:"summary"`
}

type fileCaseResult struct {
	Name    string        `yaml:"name"`
	Suite   string        `yaml:"suite,omitempty"`
	Status  string        `yaml:"status"`
	Message string        `yaml:"message,omitempty"`
	Elapsed time.Duration `yaml:"elapsed,omitempty"`
}

type fileSummary struct {
	Total   int `yaml:"total"`
	Passed  int `yaml:"passed"`
	Failed  int `yaml:"failed"`
	Skipped int `yaml:"skipped"`
}

func newFile(cfg schema.NotifierConfig) (Notifier, error) {
	path := cfg.Path
	if path == "" {
		path = "runctl-report.yaml"
	}
	return &fileNotifier{path: path}, nil
}

func (f *fileNotifier) Kind() string {
	return "file"
}

func (f *fileNotifier) Notify(event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch event.Kind {
	case EventRunStarted:
		f.report.RunID = event.RunID
		f.report.StartedAt = event.Timestamp
	case EventCaseResult:
		r := event.Result
		f.report.Results = append(f.report.Results, fileCaseResult{
			Name:    r.Name,
			Suite:   r.Suite,
			Status:  string(r.Status),
			Message: r.Message,
			Elapsed: r.Elapsed,
		})
	case EventRunCompleted:
		f.report.EndedAt = event.Timestamp
		f.report.Aborted = event.Aborted
		f.report.Summary = fileSummary{
			Total:   event.Summary.Total,
			Passed:  event.Summary.Passed,
			Failed:  event.Summary.Failed,
			Skipped: event.Summary.Skipped,
		}
		if err := f.flushLocked(); err != nil {
			// Fire-and-forget contract: report the write failure on
			// stderr and move on.
			fmt.Fprintf(os.Stderr, "failed to write report %s: %v\n", f.path, err)
		}
	}
}

func (f *fileNotifier) flushLocked() error {
	data, err := yaml.Marshal(f.report)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o644)
}

func (f *fileNotifier) Close() error {
	return nil
}

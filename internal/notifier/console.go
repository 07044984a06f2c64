package notifier

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"runctl/internal/schema"
	"runctl/internal/testcase"
)

var (
	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

func styleFor(status testcase.Status) lipgloss.Style {
	switch status {
	case testcase.StatusPassed:
		return passedStyle
	case testcase.StatusFailed:
		return failedStyle
	case testcase.StatusSkipped:
		return skippedStyle
	default:
		return mutedStyle
	}
}

// consoleNotifier renders events as styled lines on stdout and always
// prints the final summary table, even on abort.
type consoleNotifier struct {
	out io.Writer
}

func newConsole(cfg schema.NotifierConfig) (Notifier, error) {
	return &consoleNotifier{out: os.Stdout}, nil
}

func (c *consoleNotifier) Kind() string {
	return "console"
}

func (c *consoleNotifier) Notify(event Event) {
	switch event.Kind {
	case EventRunStarted:
		fmt.Fprintf(c.out, "%s run %s (concurrency %d)\n",
			headerStyle.Render("starting"), event.RunID, event.Concurrency)
	case EventCaseResult:
		r := event.Result
		line := fmt.Sprintf("%50s: %-8s %s", r.Name, r.Status, r.Message)
		fmt.Fprintln(c.out, styleFor(r.Status).Render(line))
	case EventRunCompleted:
		c.printSummary(event)
	}
}

func (c *consoleNotifier) printSummary(event Event) {
	s := event.Summary
	fmt.Fprintln(c.out, mutedStyle.Render("________________________________________"))
	if event.Aborted {
		fmt.Fprintln(c.out, failedStyle.Render("run aborted"))
	}
	fmt.Fprintln(c.out, headerStyle.Render("test result summary"))
	fmt.Fprintf(c.out, "    TOTAL    : %d\n", s.Total)
	fmt.Fprintf(c.out, "    %s: %d\n", passedStyle.Render(fmt.Sprintf("%-9s", "PASSED")), s.Passed)
	fmt.Fprintf(c.out, "    %s: %d\n", failedStyle.Render(fmt.Sprintf("%-9s", "FAILED")), s.Failed)
	fmt.Fprintf(c.out, "    %s: %d\n", skippedStyle.Render(fmt.Sprintf("%-9s", "SKIPPED")), s.Skipped)
	if s.Attempted > 0 {
		// Attempted is confusing when nothing was retried, so only show
		// it when present.
		fmt.Fprintf(c.out, "    ATTEMPTED: %d\n", s.Attempted)
	}
	if s.NotRun > 0 {
		fmt.Fprintf(c.out, "    NOTRUN   : %d\n", s.NotRun)
	}
}

func (c *consoleNotifier) Close() error {
	return nil
}

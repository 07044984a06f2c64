package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"runctl/internal/config"
	"runctl/internal/notifier"
	"runctl/internal/runner"
	"runctl/internal/testcase"
	"runctl/pkg/logging"
)

type runOptions struct {
	runID       string
	concurrency int
	variables   []string
	logLevel    string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <runbook.yaml>",
		Short: "Execute the run a runbook describes",
		Long: `Loads the runbook, expands its combinator into run configurations,
and executes the selected test cases. The process exit code is the
number of failed cases, so a fully green run exits zero.

Variables layer in ascending priority: runbook declarations, RUNCTL_*
environment variables, then -v overrides. Prefix an override value with
"secret:" to mask it in logs and reports.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "Override the run identifier (default: generated)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Override the runbook's concurrency")
	cmd.Flags().StringArrayVarP(&opts.variables, "variable", "v", nil, "Override a runbook variable as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	return cmd
}

func runRun(path string, opts *runOptions) error {
	logging.InitForCLI(logging.ParseLevel(opts.logLevel), os.Stderr)

	runbook, vars, err := config.LoadRunbook(path, config.Options{
		RunID:       opts.runID,
		Concurrency: opts.concurrency,
		Overrides:   opts.variables,
	})
	if err != nil {
		return err
	}

	fanout, err := notifier.NewFanout(runbook.Notifiers)
	if err != nil {
		return err
	}

	root, err := runner.NewRoot(runbook, vars, fanout, testcase.Default())
	if err != nil {
		fanout.Close()
		return err
	}

	// Ctrl-C cancels the run; in-flight cases observe the token and the
	// summary is still printed.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed, runErr := root.Run(ctx)
	fanout.Close()
	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		os.Exit(failed)
	}
	return nil
}

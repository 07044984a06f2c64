package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"runctl/internal/testcase"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered test cases",
		Long: `Prints the name of every test case registered in this binary, one
per line. These names are what runbook testcase filters match against;
a filter may also use a trailing '*' wildcard.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := testcase.Default().Names()
			if len(names) == 0 {
				return fmt.Errorf("no test cases registered")
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

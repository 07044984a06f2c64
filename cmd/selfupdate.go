package cmd

import (
	"context"
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// githubRepoSlug is the repository releases are published to.
const githubRepoSlug = "runctl/runctl"

func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "Update runctl to the latest released version",
		Long: `Checks for the latest release on GitHub and, when a newer version
exists, replaces the current binary with it in place.`,
		RunE: runSelfUpdate,
	}
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	version := rootCmd.Version
	if version == "" || version == "dev" {
		return fmt.Errorf("cannot self-update a development version (%q); install a released build first", version)
	}

	latest, err := selfupdate.UpdateSelf(context.Background(), version, selfupdate.ParseSlug(githubRepoSlug))
	if err != nil {
		return fmt.Errorf("self-update failed: %w", err)
	}

	if latest.Version() == version {
		fmt.Printf("runctl is already up to date at version %s\n", version)
	} else {
		fmt.Printf("Successfully updated runctl to version %s\n", latest.Version())
	}
	return nil
}

package main

import (
	"fmt"
	"os"

	"runctl/cmd"
	"runctl/internal/testcase"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := testcase.RegisterBuiltins(testcase.Default()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register built-in test cases: %v\n", err)
		os.Exit(1)
	}
	cmd.SetVersion(version)
	cmd.Execute()
}

package testcase

import (
	"context"
	"strings"

	"runctl/internal/schema"
	"runctl/internal/space"
)

// RegisterBuiltins adds the built-in smoke suite to the catalog. The
// CLI calls this once at startup; nothing is discovered at runtime.
func RegisterBuiltins(c *Catalog) error {
	builtins := []Metadata{
		{
			Name:        "smoke_echo",
			Suite:       "smoke",
			Description: "runs a trivial command on the default node and checks the output round-trips",
			Priority:    0,
			Run:         runSmokeEcho,
		},
		{
			Name:        "smoke_kernel_name",
			Suite:       "smoke",
			Description: "reads the kernel name from the default node",
			Priority:    1,
			Run:         runSmokeKernelName,
		},
		{
			Name:        "smoke_multicore",
			Suite:       "smoke",
			Description: "verifies nproc agrees with the negotiated core count",
			Priority:    2,
			Requirement: multicoreRequirement(),
			Run:         runSmokeMulticore,
		},
	}
	for _, md := range builtins {
		if err := c.Register(md); err != nil {
			return err
		}
	}
	return nil
}

func multicoreRequirement() *schema.NodeSpace {
	req := schema.DefaultNodeSpace()
	req.CoreCount = space.MinCount(2)
	return req
}

func runSmokeEcho(ctx context.Context, tc *CaseContext) Outcome {
	marker := "runctl-smoke"
	if e, ok := tc.Variables.Get("smoke_marker"); ok && e.Value != "" {
		marker = e.Value
	}
	result, err := tc.Node.Execute(ctx, "echo", marker)
	if err != nil {
		return Failed(err)
	}
	if strings.TrimSpace(result.Stdout) != marker {
		return Failedf("expected %q on stdout, got %q", marker, result.Stdout)
	}
	return Passed("echo round-tripped")
}

func runSmokeKernelName(ctx context.Context, tc *CaseContext) Outcome {
	result, err := tc.Node.Execute(ctx, "uname", "-s")
	if err != nil {
		return Failed(err)
	}
	if result.ExitCode != 0 {
		return Failedf("uname exited %d: %s", result.ExitCode, result.Stderr)
	}
	tc.Log.Info("kernel detected", "name", strings.TrimSpace(result.Stdout))
	return Passed(strings.TrimSpace(result.Stdout))
}

func runSmokeMulticore(ctx context.Context, tc *CaseContext) Outcome {
	cores, exact := tc.Node.Capability.CoreCount.Exact()
	if !exact {
		return Skipped("node capability does not pin a core count")
	}
	if cores < 2 {
		return Skipped("needs at least 2 cores")
	}
	result, err := tc.Node.Execute(ctx, "nproc")
	if err != nil {
		return Failed(err)
	}
	tc.Log.Debug("nproc output", "stdout", result.Stdout, "negotiated", cores)
	if result.ExitCode != 0 {
		return Failedf("nproc exited %d", result.ExitCode)
	}
	return Passed("core count verified")
}

package platform

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"runctl/internal/environment"
	"runctl/internal/schema"
	"runctl/internal/space"
	"runctl/pkg/logging"
)

const logSubsystem = "platform"

// localPlatform offers the host runctl runs on as a single-node
// capability. Its capability is discovered once at construction, never
// lazily recomputed.
type localPlatform struct {
	capability *schema.NodeSpace
}

func newLocal(cfg schema.PlatformConfig) (Platform, error) {
	capability := cfg.Capability
	if capability == nil {
		discovered, err := discoverLocalCapability()
		if err != nil {
			return nil, fmt.Errorf("failed to discover local capability: %w", err)
		}
		capability = discovered
	}
	capability = capability.NewCapability()
	logging.Debug(logSubsystem, "local capability: %s", capability)
	return &localPlatform{capability: capability}, nil
}

// discoverLocalCapability probes the host's core count and memory.
func discoverLocalCapability() (*schema.NodeSpace, error) {
	cores, err := cpu.Counts(true)
	if err != nil {
		return nil, fmt.Errorf("failed to count cpus: %w", err)
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory size: %w", err)
	}
	return &schema.NodeSpace{
		Name:      "localhost",
		NodeCount: space.ExactCount(1),
		CoreCount: space.ExactCount(cores),
		MemoryMB:  space.ExactCount(int(vm.Total / (1024 * 1024))),
		NicCount:  space.ExactCount(1),
		GpuCount:  space.ExactCount(0),
	}, nil
}

func (p *localPlatform) Kind() string {
	return "local"
}

func (p *localPlatform) Capabilities() []*schema.NodeSpace {
	return []*schema.NodeSpace{p.capability}
}

func (p *localPlatform) RequestEnvironment(ctx context.Context, env *environment.Environment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(env.Requirements) > 1 {
		return fmt.Errorf("%w: local platform offers a single node, %d required",
			ErrRefused, len(env.Requirements))
	}

	for i, req := range env.Requirements {
		minCap, err := req.GenerateMinCapability(p.capability)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRefused, err)
		}
		name := fmt.Sprintf("%s-node-%d", env.Name, i)
		env.Nodes = append(env.Nodes, environment.NewLocalNode(name, minCap))
	}
	env.Platform = p.Kind()
	env.Status = environment.StatusDeployed
	logging.Info(logSubsystem, "deployed environment %s", env)
	return nil
}

func (p *localPlatform) DeleteEnvironment(ctx context.Context, env *environment.Environment) error {
	env.Nodes = nil
	env.Status = environment.StatusDeleted
	logging.Debug(logSubsystem, "deleted environment %s", env.Name)
	return nil
}

// Package environment models the provisioned set of nodes a runner
// executes test cases against, plus the execution backend contract used
// to run commands on a node.
package environment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/google/uuid"

	"runctl/internal/schema"
)

// Status is the lifecycle state of an environment.
type Status string

const (
	// StatusNew is an environment holding pending requirements only.
	StatusNew Status = "new"
	// StatusPrepared means a platform has matched every requirement.
	StatusPrepared Status = "prepared"
	// StatusDeployed means the nodes exist and are addressable.
	StatusDeployed Status = "deployed"
	// StatusDeleted means the environment was released to its platform.
	StatusDeleted Status = "deleted"
)

// ErrNoNodes is returned when execution is attempted against an
// environment that has no deployed node.
var ErrNoNodes = errors.New("environment has no deployed nodes")

// ExecResult is the outcome of one command on a node.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs commands on a node. Implementations decide the
// transport; the scheduler never calls this directly, only units of
// work do.
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (ExecResult, error)
}

// localExecutor runs commands on the host runctl itself runs on.
type localExecutor struct{}

func (localExecutor) Execute(ctx context.Context, name string, args ...string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return result, fmt.Errorf("failed to execute %s: %w", name, err)
	}
	return result, nil
}

// Node is one addressable machine inside an environment.
type Node struct {
	Name       string
	Capability *schema.NodeSpace
	executor   Executor
}

// NewLocalNode builds a node backed by the local host.
func NewLocalNode(name string, capability *schema.NodeSpace) *Node {
	return &Node{Name: name, Capability: capability, executor: localExecutor{}}
}

// NewRemoteNode builds a node with a caller-supplied execution backend.
func NewRemoteNode(name string, capability *schema.NodeSpace, executor Executor) *Node {
	return &Node{Name: name, Capability: capability, executor: executor}
}

// Execute runs a command on the node.
func (n *Node) Execute(ctx context.Context, name string, args ...string) (ExecResult, error) {
	return n.executor.Execute(ctx, name, args...)
}

// Environment is one or more nodes satisfying a set of requirements. It
// is owned by the runner that requested it until explicitly released.
type Environment struct {
	Name   string
	Status Status

	// Requirements are the pending single-node requirements before the
	// platform deploys; Nodes are the concrete result afterwards.
	Requirements []*schema.NodeSpace
	Nodes        []*Node

	// Platform is the kind of the platform that owns the environment.
	Platform string
}

// New creates an environment holding pending requirements. The name is
// generated when empty.
func New(name string, requirements []*schema.NodeSpace) *Environment {
	if name == "" {
		name = fmt.Sprintf("env-%s", uuid.NewString()[:8])
	}
	return &Environment{
		Name:         name,
		Status:       StatusNew,
		Requirements: requirements,
	}
}

// DefaultNode returns the node test cases run on unless they pick one
// themselves.
func (e *Environment) DefaultNode() (*Node, error) {
	if len(e.Nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoNodes, e.Name)
	}
	return e.Nodes[0], nil
}

func (e *Environment) String() string {
	return fmt.Sprintf("%s (%s, %d nodes)", e.Name, e.Status, len(e.Nodes))
}

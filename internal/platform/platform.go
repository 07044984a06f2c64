// Package platform defines the collaborator contract for provisioning
// environments and the built-in local platform.
//
// Fit is decided by the caller: a runner negotiates a requirement
// against the platform's advertised capabilities before calling
// RequestEnvironment. Platforms are registered in an explicit
// construction table keyed by kind.
package platform

import (
	"context"
	"errors"
	"fmt"

	"runctl/internal/environment"
	"runctl/internal/schema"
)

var (
	// ErrUnknownKind is returned when a runbook names a platform kind
	// that is not in the construction table.
	ErrUnknownKind = errors.New("unknown platform kind")
	// ErrRefused is returned when a platform cannot deploy an
	// environment it was asked for.
	ErrRefused = errors.New("platform refused environment request")
)

// Platform provisions and releases environments.
type Platform interface {
	Kind() string

	// Capabilities lists the node shapes the platform can offer.
	Capabilities() []*schema.NodeSpace

	// RequestEnvironment deploys the environment's pending requirements
	// into concrete nodes. Fit must have been negotiated by the caller.
	RequestEnvironment(ctx context.Context, env *environment.Environment) error

	// DeleteEnvironment releases the environment's resources.
	DeleteEnvironment(ctx context.Context, env *environment.Environment) error
}

type constructor func(cfg schema.PlatformConfig) (Platform, error)

// constructors is the closed table of built-in platform kinds.
var constructors = map[string]constructor{
	"local": newLocal,
}

// New builds the platform a runbook configured.
func New(cfg schema.PlatformConfig) (Platform, error) {
	build, ok := constructors[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
	return build(cfg)
}

// Package schema defines the declarative types of a runbook: the
// requirement/capability model used for environment negotiation, feature
// settings, and the top-level run description loaded from YAML.
//
// Requirements and capabilities share one shape, NodeSpace. A test case
// declares a NodeSpace describing what it needs; a platform offers
// NodeSpaces describing what it can provision. Negotiation is
// NodeSpace.Check plus NodeSpace.GenerateMinCapability, built on the
// value-space primitives in internal/space.
package schema

// Package space implements the composable constraint primitives used on
// both sides of requirement/capability negotiation.
//
// A constraint ("value space") is either an exact value, a bounded integer
// range, or a restricted set. Requirements and capabilities are built from
// the same primitives; negotiation is a recursive Check that reports every
// reason a capability cannot satisfy a requirement, plus a Min* generation
// step that computes the smallest concrete value both sides accept.
package space

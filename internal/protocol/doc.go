// Package protocol owns the MessagePack value model and codec.
//
// Ownership boundary:
// - Value tagged union and accessors
// - single-pass encoder
// - incremental decoder over a growable buffer (see buffer and wire)
//
// Nothing in this package logs; callers get typed results and sentinel errors.
package protocol

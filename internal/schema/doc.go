// Package schema describes a scriptable API: its commands, their ordered and
// typed parameters, and the values that flow through them.
//
// An API is loaded once from a descriptor document (JSON or CUE) and is
// read-only afterwards. Every endpoint bound to the same API shares the same
// *API value.
//
// The only computed behaviour in this package is type-directed coercion:
// Coerce converts a loosely typed Go value (as produced by a script runtime or
// a decoded document) into a Value through exactly one case of the matching
// Type, enforcing integer bounds.
//
// Key constraints:
//   - Identifiers are lowercase ascii letters, digits and single interior spaces
//   - Integer bounds fit a signed 48-bit range
//   - Parameter order is the positional argument order
//   - Defaults are checked against their parameter type at load time
package schema

// Package codegen emits script-side stubs for an API.
//
// For every function two bindings are produced:
//
//   - a blocking stub that sends the command and waits for its terminal
//     response, returning the result or raising the ErrorResponse message;
//   - a cooperative stub that returns a Promise (JavaScript) or a
//     *channel.Future (Go) instead of blocking.
//
// Both forward positional arguments in parameter declaration order. Names
// are mangled per target: identifier spaces become "_" in JavaScript and
// word boundaries in Go.
package codegen

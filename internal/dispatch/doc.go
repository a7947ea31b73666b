// Package dispatch implements the engine-side dispatch loop.
//
// A Loop polls its server endpoints once per simulation tick, decodes each
// request against the endpoint's schema, and hands it to a Handler. The
// handler answers with a Result: Ok (respond now), Pending (respond when the
// effect completes) or Fail (respond with an error).
//
// INVARIANTS:
//   - At most one command is pending across all endpoints (single-flight).
//   - While a command is pending no endpoint is polled; later requests stay
//     queued in their channels, in order.
//   - A pending command is resolved by the first notification from the
//     loop's event registry subscription and answered with Boolean(true).
//   - Tick never blocks.
//
// Thread-safety: a Loop is owned by the simulation goroutine. Tick, State,
// AddEndpoint and Close must all be called from that goroutine.
package dispatch

// Package harness runs YAML command scenarios against a dispatch loop.
//
// A scenario drives the loop step by step: clients send requests, the
// loop ticks, simulated time advances, completion events fire, and
// responses are checked as they arrive. Every loop entry is recorded in a
// trace that can be asserted on and compared against a golden file.
//
// # Scenario Format
//
//	name: move_forward
//	description: "A move stays pending until its effect completes"
//	schema: robot            # built-in API, or a .json/.cue path
//	world: {width: 8, height: 8}
//	steps:
//	  - send: {command: move forward, args: [1000], as: move}
//	  - tick: 1
//	  - expect_state: awaiting
//	  - advance: 1s
//	  - tick: 1
//	  - expect: {id: move, result: true}
//	assertions:
//	  - type: trace_order
//	    entries: ["request move forward", "pending move forward", "response move forward"]
//
// Scenarios with a schema other than robot script their handlers:
//
//	handlers:
//	  ping: {result: true}
//	  wait: {pending: true}
//	  fail: {error: "broken"}
//
// and resolve pending commands with a "complete: true" step.
//
// # Assertion Types
//
//   - trace_contains: an entry of the given kind and command exists
//   - trace_order: entries appear in the given relative order
//   - trace_count: an entry appears exactly N times
//   - final_state: the loop ends idle or awaiting
//
// # Deterministic Testing
//
// Request ids come from protocol.SequentialIDs and the loop's clock is
// virtual (moved only by advance steps), so traces are identical across
// runs.
package harness

package dispatch

import (
	"context"

	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// ResultKind is the three-way outcome of executing a command.
type ResultKind uint8

const (
	ResultOk ResultKind = iota + 1
	ResultPending
	ResultError
)

func (k ResultKind) String() string {
	switch k {
	case ResultOk:
		return "ok"
	case ResultPending:
		return "pending"
	case ResultError:
		return "error"
	default:
		return "invalid"
	}
}

// Result is what a Handler returns. It is never persisted.
type Result struct {
	kind  ResultKind
	value schema.Value
	err   error
}

// Ok completes the command now with v. A nil v becomes Unit.
func Ok(v schema.Value) Result {
	if v == nil {
		v = schema.Unit
	}
	return Result{kind: ResultOk, value: v}
}

// Pending accepts the command and defers its completion to the next
// notification of the loop's event registry.
func Pending() Result {
	return Result{kind: ResultPending}
}

// Fail rejects the command. Errors other than *CommandError are reported as
// ErrCodeExecutionFailed with the error text as message.
func Fail(err error) Result {
	return Result{kind: ResultError, err: err}
}

// Kind returns the outcome.
func (r Result) Kind() ResultKind { return r.kind }

// Value returns the Ok value.
func (r Result) Value() schema.Value { return r.value }

// Err returns the failure.
func (r Result) Err() error { return r.err }

// Call is one decoded command handed to a Handler.
type Call struct {
	ID       protocol.RequestID
	Endpoint int
	Function *schema.Function

	// Arguments has one value per parameter, defaults filled in, each
	// conforming to its parameter type.
	Arguments []schema.Value
}

// Command returns the function name.
func (c Call) Command() schema.Identifier {
	return c.Function.Name
}

// Handler executes decoded commands against simulation state.
//
// Execute runs on the simulation goroutine and must not block. A handler
// returning Pending is responsible for arranging that the loop's registry is
// notified when the effect completes.
type Handler interface {
	Execute(ctx context.Context, call Call) Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, call Call) Result

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, call Call) Result {
	return f(ctx, call)
}

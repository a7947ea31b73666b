package channel

import (
	"context"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// Future is the result of an asynchronous Call.
type Future struct {
	done  chan struct{}
	value schema.Value
	err   error
}

// Go runs Call on a new goroutine. Calls started with Go still queue behind
// one another, so the client keeps a single outstanding request.
func (c *Client) Go(ctx context.Context, command schema.Identifier, args []schema.Value) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = c.Call(ctx, command, args)
	}()
	return f
}

// Done is closed when the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx ends.
func (f *Future) Await(ctx context.Context) (schema.Value, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

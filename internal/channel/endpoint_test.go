package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

func testAPI() *schema.API {
	return schema.NewAPI("robot", "Robot", "",
		&schema.Function{
			Name: "move forward",
			Parameters: []schema.Parameter{
				{Name: "duration", Type: schema.IntegerType{Min: 0, Max: 10000}, Default: schema.IntegerValue(1000)},
			},
			Returns: &schema.Parameter{Name: "success", Type: schema.BooleanType{}},
		},
	)
}

type transport struct {
	name string
	open func(t *testing.T, opts ...Option) (*Client, *Server)
}

func transports() []transport {
	return []transport{
		{
			name: "inproc",
			open: func(t *testing.T, opts ...Option) (*Client, *Server) {
				return InProcess(testAPI(), opts...)
			},
		},
		{
			name: "ring",
			open: func(t *testing.T, opts ...Option) (*Client, *Server) {
				c, s, err := SharedRing(testAPI(), 1024, opts...)
				require.NoError(t, err)
				return c, s
			},
		},
	}
}

// respond answers each request with fn until ctx ends.
func respond(ctx context.Context, s *Server, fn func(protocol.Request)) {
	for ctx.Err() == nil {
		req, ok, err := s.PollRequest()
		if err != nil {
			return
		}
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		fn(req)
	}
}

func TestEndpoints_FIFO(t *testing.T) {
	for _, tr := range transports() {
		t.Run(tr.name, func(t *testing.T) {
			client, server := tr.open(t, WithIDGenerator(protocol.NewSequentialIDs()))
			assert.Same(t, client.API(), server.API())

			var ids []protocol.RequestID
			for i := 0; i < 3; i++ {
				id, err := client.SendCommand("move forward", []schema.Value{schema.IntegerValue(int64(i))})
				require.NoError(t, err)
				ids = append(ids, id)
			}
			assert.Equal(t, 3, server.Pending())

			for i := 0; i < 3; i++ {
				req, ok, err := server.PollRequest()
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, ids[i], req.ID)
				assert.Equal(t, schema.Identifier("move forward"), req.Command)
				assert.Equal(t, []schema.Value{schema.IntegerValue(int64(i))}, req.Arguments)
			}

			_, ok, err := server.PollRequest()
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, server.SendResponse(ids[0], schema.BooleanValue(true)))
			require.NoError(t, server.SendError(ids[1], "boom"))

			msg, ok, err := client.PollResponse()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, protocol.Response{ID: ids[0], Result: schema.BooleanValue(true)}, msg)

			msg, ok, err = client.PollResponse()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, protocol.ErrorResponse{ID: ids[1], Message: "boom"}, msg)
		})
	}
}

func TestEndpoints_DisconnectIsHardFailure(t *testing.T) {
	for _, tr := range transports() {
		t.Run(tr.name, func(t *testing.T) {
			client, server := tr.open(t)
			server.Close()

			_, err := client.SendCommand("move forward", nil)
			assert.ErrorIs(t, err, ErrDisconnected)

			_, _, err = client.PollResponse()
			assert.ErrorIs(t, err, ErrDisconnected)

			assert.ErrorIs(t, server.SendResponse(protocol.SequentialID(1), schema.Unit), ErrDisconnected)

			_, _, err = server.PollRequest()
			assert.ErrorIs(t, err, ErrDisconnected)
		})
	}
}

func TestEndpoints_NilArgumentRejected(t *testing.T) {
	for _, tr := range transports() {
		t.Run(tr.name, func(t *testing.T) {
			client, server := tr.open(t)

			_, err := client.SendCommand("move forward", []schema.Value{nil})
			require.ErrorIs(t, err, ErrNilArgument)
			assert.Contains(t, err.Error(), "argument 0")

			_, ok, err := server.PollRequest()
			require.NoError(t, err)
			assert.False(t, ok, "rejected request must not reach the server")

			// The client stays usable.
			_, err = client.SendCommand("move forward", []schema.Value{schema.IntegerValue(5)})
			require.NoError(t, err)
		})
	}
}

func TestClient_Call(t *testing.T) {
	for _, tr := range transports() {
		t.Run(tr.name, func(t *testing.T) {
			client, server := tr.open(t, WithPollInterval(time.Millisecond))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go respond(ctx, server, func(req protocol.Request) {
				if req.Command == "move forward" {
					_ = server.SendResponse(req.ID, schema.BooleanValue(true))
					return
				}
				_ = server.SendError(req.ID, "Unknown Command: "+string(req.Command))
			})

			for i := 0; i < 5; i++ {
				v, err := client.Call(ctx, "move forward", []schema.Value{schema.IntegerValue(100)})
				require.NoError(t, err)
				assert.Equal(t, schema.BooleanValue(true), v)
			}

			_, err := client.Call(ctx, "unknown cmd", nil)
			require.Error(t, err)
			assert.True(t, IsRemoteError(err))
			assert.Equal(t, "Unknown Command: unknown cmd", err.Error())

			var remote *RemoteError
			require.True(t, errors.As(err, &remote))
			assert.Equal(t, schema.Identifier("unknown cmd"), remote.Command)
		})
	}
}

func TestClient_Call_MismatchPoisons(t *testing.T) {
	client, server := InProcess(testAPI(), WithPollInterval(time.Millisecond))

	require.NoError(t, server.SendResponse(protocol.SequentialID(99), schema.BooleanValue(true)))

	_, err := client.Call(context.Background(), "move forward", nil)
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))

	var pe *ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, protocol.SequentialID(99), pe.Got)

	_, err = client.SendCommand("move forward", nil)
	assert.True(t, IsProtocolError(err), "client stays poisoned")
	_, _, err = client.PollResponse()
	assert.True(t, IsProtocolError(err))
}

func TestClient_Call_BuffersEvents(t *testing.T) {
	client, server := InProcess(testAPI(), WithPollInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go respond(ctx, server, func(req protocol.Request) {
		_ = server.SendEvent("command-effect-completed", 1)
		_ = server.SendResponse(req.ID, schema.Unit)
	})

	v, err := client.Call(ctx, "move forward", nil)
	require.NoError(t, err)
	assert.Equal(t, schema.Unit, v)
	assert.Equal(t, []protocol.Event{{Name: "command-effect-completed", Seq: 1}}, client.Events())
	assert.Empty(t, client.Events())
}

func TestClient_Call_AbandonedResponseDiscarded(t *testing.T) {
	ids := protocol.NewSequentialIDs()
	client, server := InProcess(testAPI(), WithPollInterval(time.Millisecond), WithIDGenerator(ids))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err := client.Call(ctx, "move forward", nil)
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	first, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, server.SendResponse(first.ID, schema.BooleanValue(false)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			req, ok, err := server.PollRequest()
			if err != nil {
				return
			}
			if ok {
				_ = server.SendResponse(req.ID, schema.BooleanValue(true))
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	v, err := client.Call(context.Background(), "move forward", nil)
	require.NoError(t, err)
	assert.Equal(t, schema.BooleanValue(true), v)
	<-done
}

func TestClient_Go(t *testing.T) {
	client, server := InProcess(testAPI(), WithPollInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go respond(ctx, server, func(req protocol.Request) {
		_ = server.SendResponse(req.ID, req.Arguments[0])
	})

	futures := make([]*Future, 5)
	for i := range futures {
		futures[i] = client.Go(ctx, "move forward", []schema.Value{schema.IntegerValue(int64(i))})
	}
	for i, f := range futures {
		v, err := f.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, schema.IntegerValue(int64(i)), v)
	}
}

func TestSharedRing_Capacity(t *testing.T) {
	_, _, err := SharedRing(testAPI(), 8)
	assert.Error(t, err)

	client, server, err := SharedRing(testAPI(), 0)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.NotNil(t, server)

	client, _, err = SharedRing(testAPI(), MinRingCapacity)
	require.NoError(t, err)
	var sendErr error
	for i := 0; i < 10 && sendErr == nil; i++ {
		_, sendErr = client.SendCommand("move forward", []schema.Value{schema.IntegerValue(1)})
	}
	assert.ErrorIs(t, sendErr, ErrRingFull)
}

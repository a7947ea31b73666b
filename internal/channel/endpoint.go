package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// DefaultPollInterval is the backoff between response polls in Call.
const DefaultPollInterval = 10 * time.Millisecond

// ProtocolError reports a correlation violation. It is fatal to the client:
// once returned, every later operation on the client fails with it.
type ProtocolError struct {
	Expected protocol.RequestID
	Got      protocol.RequestID
	Message  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("channel: protocol violation: %s (expected %s, got %s)", e.Message, e.Expected, e.Got)
}

// RemoteError is the client-side form of an ErrorResponse.
type RemoteError struct {
	ID      protocol.RequestID
	Command schema.Identifier
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// IsProtocolError reports whether err is a correlation violation.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsRemoteError reports whether err came back as an ErrorResponse.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// Option configures a channel pair.
type Option func(*options)

type options struct {
	ids          protocol.IDGenerator
	pollInterval time.Duration
	logger       *slog.Logger
}

// WithIDGenerator replaces the random request id source.
func WithIDGenerator(g protocol.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithPollInterval sets the Call backoff. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithLogger sets the logger used for discarded messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		ids:          protocol.RandomIDs{},
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// InProcess creates a channel pair backed by two in-memory queues.
func InProcess(api *schema.API, opts ...Option) (*Client, *Server) {
	return newPair(api, newQueue[protocol.Request](), newQueue[protocol.ServerMessage](), buildOptions(opts))
}

// SharedRing creates a channel pair whose directions are fixed-capacity byte
// rings. Messages are serialized with the protocol codec, so nothing but
// bytes is shared between the two sides. capacity 0 selects
// DefaultRingCapacity.
func SharedRing(api *schema.API, capacity int, opts ...Option) (*Client, *Server, error) {
	if capacity == 0 {
		capacity = DefaultRingCapacity
	}
	if capacity < MinRingCapacity {
		return nil, nil, fmt.Errorf("channel: ring capacity %d below minimum %d", capacity, MinRingCapacity)
	}

	requests := &ringPipe[protocol.Request]{
		r:      newRing(capacity),
		encode: protocol.EncodeRequest,
		decode: protocol.DecodeRequest,
	}
	responses := &ringPipe[protocol.ServerMessage]{
		r:      newRing(capacity),
		encode: protocol.EncodeServerMessage,
		decode: protocol.DecodeServerMessage,
	}
	client, server := newPair(api, requests, responses, buildOptions(opts))
	return client, server, nil
}

func newPair(api *schema.API, requests pipe[protocol.Request], responses pipe[protocol.ServerMessage], o options) (*Client, *Server) {
	client := &Client{
		api:          api,
		requests:     requests,
		responses:    responses,
		ids:          o.ids,
		pollInterval: o.pollInterval,
		logger:       o.logger,
		abandoned:    make(map[protocol.RequestID]struct{}),
	}
	server := &Server{
		api:       api,
		requests:  requests,
		responses: responses,
	}
	return client, server
}

// Server is the engine-side endpoint. All methods are non-blocking.
type Server struct {
	api       *schema.API
	requests  pipe[protocol.Request]
	responses pipe[protocol.ServerMessage]
}

// API returns the schema shared with the client.
func (s *Server) API() *schema.API {
	return s.api
}

// PollRequest dequeues at most one request.
func (s *Server) PollRequest() (protocol.Request, bool, error) {
	return s.requests.TryRecv()
}

// Pending returns the number of queued requests.
func (s *Server) Pending() int {
	return s.requests.Len()
}

// SendResponse queues a successful response.
func (s *Server) SendResponse(id protocol.RequestID, result schema.Value) error {
	return s.responses.Send(protocol.Response{ID: id, Result: result})
}

// SendError queues an error response.
func (s *Server) SendError(id protocol.RequestID, message string) error {
	return s.responses.Send(protocol.ErrorResponse{ID: id, Message: message})
}

// SendEvent queues an uncorrelated event.
func (s *Server) SendEvent(name string, seq int64) error {
	return s.responses.Send(protocol.Event{Name: name, Seq: seq})
}

// Close disconnects both directions.
func (s *Server) Close() {
	s.requests.Close()
	s.responses.Close()
}

// Client is the script-side endpoint.
//
// SendCommand and PollResponse never block. Call blocks the calling
// goroutine, never the engine, and allows one outstanding request at a time.
type Client struct {
	api          *schema.API
	requests     pipe[protocol.Request]
	responses    pipe[protocol.ServerMessage]
	ids          protocol.IDGenerator
	pollInterval time.Duration
	logger       *slog.Logger

	callMu sync.Mutex // held for the whole of Call

	mu        sync.Mutex
	poisoned  error
	abandoned map[protocol.RequestID]struct{}
	events    []protocol.Event
}

// API returns the schema shared with the server.
func (c *Client) API() *schema.API {
	return c.api
}

// SendCommand queues a request under a fresh id and returns the id.
func (c *Client) SendCommand(command schema.Identifier, args []schema.Value) (protocol.RequestID, error) {
	if err := c.err(); err != nil {
		return protocol.RequestID{}, err
	}
	for i, arg := range args {
		if arg == nil {
			return protocol.RequestID{}, fmt.Errorf("send %q: argument %d: %w", command, i, ErrNilArgument)
		}
	}

	req := protocol.Request{ID: c.ids.NewID(), Command: command, Arguments: args}
	if err := c.requests.Send(req); err != nil {
		return protocol.RequestID{}, fmt.Errorf("send %q: %w", command, err)
	}
	return req.ID, nil
}

// PollResponse dequeues at most one server message.
func (c *Client) PollResponse() (protocol.ServerMessage, bool, error) {
	if err := c.err(); err != nil {
		return nil, false, err
	}
	return c.responses.TryRecv()
}

// Call sends a command and polls until its terminal response arrives.
//
// An ErrorResponse is returned as *RemoteError. A response carrying any id
// other than the outstanding one poisons the client with *ProtocolError.
// Events received while waiting are buffered for Events.
//
// If ctx ends first, the request is abandoned: its eventual response is
// discarded by a later Call instead of being treated as a violation.
func (c *Client) Call(ctx context.Context, command schema.Identifier, args []schema.Value) (schema.Value, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	id, err := c.SendCommand(command, args)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()

	for {
		msg, ok, err := c.PollResponse()
		if err != nil {
			return nil, fmt.Errorf("await %q: %w", command, err)
		}
		if !ok {
			timer.Reset(c.pollInterval)
			select {
			case <-ctx.Done():
				c.abandon(id)
				return nil, ctx.Err()
			case <-timer.C:
			}
			continue
		}

		got, correlated := msg.CorrelationID()
		if !correlated {
			if ev, isEvent := msg.(protocol.Event); isEvent {
				c.bufferEvent(ev)
			}
			continue
		}
		if got != id {
			if c.takeAbandoned(got) {
				c.logger.Debug("discarded response to abandoned request", "request_id", got.String())
				continue
			}
			return nil, c.poison(&ProtocolError{Expected: id, Got: got, Message: "response id does not match outstanding request"})
		}

		switch m := msg.(type) {
		case protocol.Response:
			return m.Result, nil
		case protocol.ErrorResponse:
			return nil, &RemoteError{ID: id, Command: command, Message: m.Message}
		}
	}
}

// Events returns and clears the events received during Call.
func (c *Client) Events() []protocol.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := c.events
	c.events = nil
	return events
}

// Close disconnects both directions.
func (c *Client) Close() {
	c.requests.Close()
	c.responses.Close()
}

func (c *Client) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poisoned
}

func (c *Client) poison(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poisoned == nil {
		c.poisoned = err
	}
	return c.poisoned
}

func (c *Client) abandon(id protocol.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abandoned[id] = struct{}{}
}

func (c *Client) takeAbandoned(id protocol.RequestID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.abandoned[id]; ok {
		delete(c.abandoned, id)
		return true
	}
	return false
}

func (c *Client) bufferEvent(ev protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

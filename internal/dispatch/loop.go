package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gam3du/gam3du-sub000/internal/channel"
	"github.com/gam3du/gam3du-sub000/internal/event"
	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// ServerEndpoint is the engine side of a channel as seen by the loop.
// *channel.Server implements it.
type ServerEndpoint interface {
	API() *schema.API
	PollRequest() (protocol.Request, bool, error)
	SendResponse(id protocol.RequestID, result schema.Value) error
	SendError(id protocol.RequestID, message string) error
}

var _ ServerEndpoint = (*channel.Server)(nil)

// ResolvedValue is sent when a pending command completes.
var ResolvedValue schema.Value = schema.BooleanValue(true)

type endpointSlot struct {
	ep           ServerEndpoint
	disconnected bool
}

// Loop is the dispatch loop. See the package documentation for invariants.
type Loop struct {
	handler   Handler
	endpoints []endpointSlot
	state     State
	tick      uint64

	registry      *event.Registry
	subscriberID  uuid.UUID
	notifications *event.Receiver

	logger         *slog.Logger
	metrics        *Metrics
	observer       Observer
	pendingTimeout time.Duration
	now            func() time.Time

	closed bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(loop *Loop) { loop.logger = l }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(loop *Loop) { loop.metrics = m }
}

// WithObserver adds an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(loop *Loop) {
		if o == nil {
			return
		}
		if loop.observer == nil {
			loop.observer = o
			return
		}
		if multi, ok := loop.observer.(multiObserver); ok {
			loop.observer = append(multi, o)
			return
		}
		loop.observer = multiObserver{loop.observer, o}
	}
}

// WithPendingTimeout bounds how long a command may stay pending. When the
// deadline passes the command is answered with ErrCodePendingTimeout and the
// loop returns to Idle. Zero (the default) waits forever.
func WithPendingTimeout(d time.Duration) Option {
	return func(loop *Loop) { loop.pendingTimeout = d }
}

// WithNow replaces the wall clock used for pending deadlines and durations.
func WithNow(now func() time.Time) Option {
	return func(loop *Loop) { loop.now = now }
}

// New creates an idle loop and subscribes it to registry.
func New(handler Handler, registry *event.Registry, opts ...Option) (*Loop, error) {
	if handler == nil {
		return nil, errors.New("dispatch: nil handler")
	}
	if registry == nil {
		return nil, errors.New("dispatch: nil registry")
	}

	l := &Loop{
		handler:  handler,
		state:    Idle{},
		registry: registry,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	sender, receiver := event.NewChannel(1)
	l.subscriberID = uuid.New()
	l.notifications = receiver
	if err := registry.Subscribe(l.subscriberID, sender); err != nil {
		return nil, fmt.Errorf("dispatch: subscribe: %w", err)
	}
	return l, nil
}

// AddEndpoint registers a server endpoint and returns its index. Endpoints
// are polled in registration order.
func (l *Loop) AddEndpoint(ep ServerEndpoint) int {
	l.endpoints = append(l.endpoints, endpointSlot{ep: ep})
	if l.metrics != nil {
		l.metrics.EndpointsConnected.Inc()
	}
	return len(l.endpoints) - 1
}

// State returns the current dispatch state.
func (l *Loop) State() State {
	return l.state
}

// Ticks returns the number of completed Tick calls.
func (l *Loop) Ticks() uint64 {
	return l.tick
}

// Close unsubscribes from the registry. Later ticks do nothing.
func (l *Loop) Close() {
	if l.closed {
		return
	}
	l.closed = true
	l.registry.Unsubscribe(l.subscriberID)
	l.notifications.Drop()
}

// Tick runs one dispatch step and returns the number of requests dequeued.
//
// Awaiting: resolve the pending command if a notification arrived (or fail
// it if its deadline passed); otherwise return without polling. Once back
// in Idle the same tick goes on to poll.
//
// Idle: for each endpoint in order, drain its queued requests until one of
// them goes pending.
func (l *Loop) Tick(ctx context.Context) int {
	if l.closed {
		return 0
	}
	l.tick++

	if awaiting, ok := l.state.(Awaiting); ok {
		if !l.settle(awaiting) {
			return 0
		}
	}

	dequeued := 0
	for i := range l.endpoints {
		slot := &l.endpoints[i]
		for !slot.disconnected {
			req, ok, err := slot.ep.PollRequest()
			if err != nil {
				if errors.Is(err, channel.ErrDisconnected) {
					l.disconnect(i, err)
					break
				}
				// Undecodable input carries no id to answer; skip the
				// endpoint until the next tick.
				l.logger.Error("poll request failed", "endpoint", i, "error", err)
				break
			}
			if !ok {
				break
			}
			dequeued++
			if l.dispatch(ctx, i, req) {
				return dequeued
			}
		}
	}
	return dequeued
}

// settle tries to leave Awaiting. Returns true when the loop is Idle again.
func (l *Loop) settle(a Awaiting) bool {
	if _, ok := l.notifications.TryRecv(); ok {
		l.notifications.Drain()
		l.logger.Debug("pending command resolved",
			"request_id", a.ID.String(),
			"command", string(a.Command),
			"endpoint", a.Endpoint)
		l.leavePending(a, "resolved")
		l.respond(a.Endpoint, a.ID, a.Command, ResolvedValue)
		return true
	}

	if l.pendingTimeout > 0 && l.now().Sub(a.Since) >= l.pendingTimeout {
		l.logger.Warn("pending command timed out",
			"request_id", a.ID.String(),
			"command", string(a.Command),
			"timeout", l.pendingTimeout)
		l.leavePending(a, "timeout")
		l.fail(a.Endpoint, a.ID, &CommandError{Code: ErrCodePendingTimeout, Command: a.Command})
		return true
	}
	return false
}

func (l *Loop) leavePending(a Awaiting, outcome string) {
	l.state = Idle{}
	if l.metrics != nil {
		l.metrics.Pending.Set(0)
		l.metrics.PendingDuration.Observe(l.now().Sub(a.Since).Seconds())
		l.metrics.RequestsTotal.WithLabelValues(outcome).Inc()
	}
}

// dispatch handles one request. Returns true if it went pending.
func (l *Loop) dispatch(ctx context.Context, endpoint int, req protocol.Request) bool {
	l.observe(Entry{Kind: EntryRequest, Endpoint: endpoint, ID: req.ID, Command: req.Command, Arguments: req.Arguments})

	ep := l.endpoints[endpoint].ep
	fn, ok := ep.API().Lookup(string(req.Command))
	if !ok {
		l.fail(endpoint, req.ID, UnknownCommand(req.Command))
		return false
	}

	args, err := DecodeArguments(fn, req.Arguments)
	if err != nil {
		l.fail(endpoint, req.ID, err)
		return false
	}

	// Notifications left over from effects that no longer have a waiter
	// must not resolve this command.
	l.notifications.Drain()

	result := l.handler.Execute(ctx, Call{ID: req.ID, Endpoint: endpoint, Function: fn, Arguments: args})
	switch result.Kind() {
	case ResultOk:
		l.countOutcome("ok")
		l.respond(endpoint, req.ID, fn.Name, result.Value())
		return false

	case ResultPending:
		l.state = Awaiting{ID: req.ID, Endpoint: endpoint, Command: fn.Name, Since: l.now()}
		l.countOutcome("pending")
		if l.metrics != nil {
			l.metrics.Pending.Set(1)
		}
		l.observe(Entry{Kind: EntryPending, Endpoint: endpoint, ID: req.ID, Command: fn.Name})
		l.logger.Debug("command pending",
			"request_id", req.ID.String(),
			"command", string(fn.Name),
			"endpoint", endpoint)
		return true

	case ResultError:
		err := result.Err()
		if err == nil {
			err = errors.New("command failed")
		}
		var ce *CommandError
		if !errors.As(err, &ce) {
			err = ExecutionFailed(fn.Name, err)
		}
		l.fail(endpoint, req.ID, err)
		return false

	default:
		l.logger.Error("handler returned invalid result", "command", string(fn.Name), "kind", result.Kind().String())
		l.fail(endpoint, req.ID, ExecutionFailed(fn.Name, fmt.Errorf("invalid result from handler")))
		return false
	}
}

func (l *Loop) respond(endpoint int, id protocol.RequestID, command schema.Identifier, value schema.Value) {
	l.observe(Entry{Kind: EntryResponse, Endpoint: endpoint, ID: id, Command: command, Result: value})
	if err := l.endpoints[endpoint].ep.SendResponse(id, value); err != nil {
		l.sendFailed(endpoint, id, err)
	}
}

func (l *Loop) fail(endpoint int, id protocol.RequestID, err error) {
	entry := Entry{Kind: EntryError, Endpoint: endpoint, ID: id, Message: err.Error()}
	var ce *CommandError
	if errors.As(err, &ce) {
		entry.Code = ce.Code
		entry.Command = ce.Command
	}
	if ce == nil || ce.Code != ErrCodePendingTimeout {
		l.countOutcome("error")
	}
	if l.metrics != nil && entry.Code != "" {
		l.metrics.ErrorsTotal.WithLabelValues(string(entry.Code)).Inc()
	}

	l.logger.Debug("command rejected",
		"request_id", id.String(),
		"endpoint", endpoint,
		"code", string(entry.Code),
		"error", entry.Message)

	l.observe(entry)
	if sendErr := l.endpoints[endpoint].ep.SendError(id, entry.Message); sendErr != nil {
		l.sendFailed(endpoint, id, sendErr)
	}
}

func (l *Loop) sendFailed(endpoint int, id protocol.RequestID, err error) {
	if l.metrics != nil {
		l.metrics.SendFailuresTotal.Inc()
	}
	l.logger.Error("response not delivered",
		"endpoint", endpoint,
		"request_id", id.String(),
		"error", err)
	if errors.Is(err, channel.ErrDisconnected) {
		l.disconnect(endpoint, err)
	}
}

func (l *Loop) disconnect(endpoint int, err error) {
	slot := &l.endpoints[endpoint]
	if slot.disconnected {
		return
	}
	slot.disconnected = true
	if l.metrics != nil {
		l.metrics.EndpointsConnected.Dec()
	}
	l.logger.Info("endpoint disconnected", "endpoint", endpoint, "reason", err)
}

func (l *Loop) countOutcome(outcome string) {
	if l.metrics != nil {
		l.metrics.RequestsTotal.WithLabelValues(outcome).Inc()
	}
}

func (l *Loop) observe(e Entry) {
	if l.observer == nil {
		return
	}
	e.Tick = l.tick
	l.observer.Observe(e)
}

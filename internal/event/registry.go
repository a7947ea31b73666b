package event

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// CommandEffectCompleted names the registry fired when a time-extended
// simulation effect finishes.
const CommandEffectCompleted = "command-effect-completed"

// Registry is a named broadcast point mapping subscriber ids to senders.
//
// Notify delivers to every current subscriber in subscription order. A
// subscriber whose receiver was dropped is removed and logged; delivery to
// the remaining subscribers continues.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	name   string
	clock  *Clock
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[uuid.UUID]*Sender
	order       []uuid.UUID
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock shares a clock between registries so sequence numbers are
// globally ordered.
func WithClock(c *Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger sets the logger for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(name string, opts ...Option) *Registry {
	r := &Registry{
		name:        name,
		clock:       NewClock(),
		logger:      slog.Default(),
		subscribers: make(map[uuid.UUID]*Sender),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the registry name.
func (r *Registry) Name() string {
	return r.name
}

// Subscribe registers sender under id. Subscribing an id twice is an error.
func (r *Registry) Subscribe(id uuid.UUID, sender *Sender) error {
	if sender == nil {
		return errors.New("event: nil sender")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subscribers[id]; exists {
		return fmt.Errorf("event: %s: subscriber %s already registered", r.name, id)
	}
	r.subscribers[id] = sender
	r.order = append(r.order, id)
	return nil
}

// Unsubscribe removes id. Returns false if it was not registered.
func (r *Registry) Unsubscribe(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

// Notify broadcasts one notification and returns it along with the number of
// subscribers it reached.
func (r *Registry) Notify() (Notification, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := Notification{Registry: r.name, Seq: r.clock.Next()}
	delivered := 0

	var dropped []uuid.UUID
	for _, id := range r.order {
		if err := r.subscribers[id].Send(n); err != nil {
			r.logger.Debug("notification not delivered",
				"registry", r.name,
				"subscriber", id.String(),
				"seq", n.Seq,
				"error", err)
			dropped = append(dropped, id)
			continue
		}
		delivered++
	}

	for _, id := range dropped {
		r.removeLocked(id)
	}
	return n, delivered
}

// Len returns the number of subscribers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func (r *Registry) removeLocked(id uuid.UUID) bool {
	if _, ok := r.subscribers[id]; !ok {
		return false
	}
	delete(r.subscribers, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

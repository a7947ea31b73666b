package dispatch

import (
	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// EntryKind identifies what happened to a request.
type EntryKind string

const (
	EntryRequest  EntryKind = "request"  // request dequeued from an endpoint
	EntryPending  EntryKind = "pending"  // handler deferred completion
	EntryResponse EntryKind = "response" // Response sent
	EntryError    EntryKind = "error"    // ErrorResponse sent
)

// Entry is one observable step of the loop.
//
// Request entries carry Command and the raw Arguments; Response entries
// carry Result; Error entries carry Code and Message.
type Entry struct {
	Kind      EntryKind
	Tick      uint64
	Endpoint  int
	ID        protocol.RequestID
	Command   schema.Identifier
	Arguments []schema.Value
	Result    schema.Value
	Code      CommandErrorCode
	Message   string
}

// Observer receives every Entry in loop order. Observe runs on the
// simulation goroutine and must not block for long.
type Observer interface {
	Observe(e Entry)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Entry)

// Observe calls f.
func (f ObserverFunc) Observe(e Entry) {
	f(e)
}

type multiObserver []Observer

func (m multiObserver) Observe(e Entry) {
	for _, o := range m {
		o.Observe(e)
	}
}

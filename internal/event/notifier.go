package event

import (
	"errors"
	"sync"
)

// ErrReceiverDropped is returned by Sender.Send once the receiving side has
// been dropped.
var ErrReceiverDropped = errors.New("event: receiver dropped")

// Notification is delivered to subscribers when a registry fires.
type Notification struct {
	Registry string
	Seq      int64
}

type link struct {
	ch      chan Notification
	mu      sync.Mutex
	dropped bool
}

// Sender is the registry-held half of a notification channel.
type Sender struct {
	l *link
}

// Receiver is the subscriber-held half of a notification channel.
type Receiver struct {
	l *link
}

// NewChannel creates a connected Sender/Receiver pair buffering up to
// capacity notifications (minimum 1). With capacity 1 the pair acts as a
// one-shot: the first notification is kept until received.
func NewChannel(capacity int) (*Sender, *Receiver) {
	if capacity < 1 {
		capacity = 1
	}
	l := &link{ch: make(chan Notification, capacity)}
	return &Sender{l: l}, &Receiver{l: l}
}

// Send delivers n without blocking. When the buffer is full the notification
// is coalesced into the ones already queued and nil is returned: a waiting
// receiver is woken either way.
func (s *Sender) Send(n Notification) error {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	if s.l.dropped {
		return ErrReceiverDropped
	}
	select {
	case s.l.ch <- n:
	default:
	}
	return nil
}

// TryRecv returns a queued notification without blocking.
func (r *Receiver) TryRecv() (Notification, bool) {
	select {
	case n := <-r.l.ch:
		return n, true
	default:
		return Notification{}, false
	}
}

// Drain discards every queued notification and returns how many there were.
func (r *Receiver) Drain() int {
	n := 0
	for {
		if _, ok := r.TryRecv(); !ok {
			return n
		}
		n++
	}
}

// Drop detaches the receiver; later sends fail with ErrReceiverDropped.
func (r *Receiver) Drop() {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	r.l.dropped = true
}

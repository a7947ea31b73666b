package protocol

import (
	"fmt"
	"strings"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// Request asks the server to execute one command with positional arguments.
type Request struct {
	ID        RequestID
	Command   schema.Identifier
	Arguments []schema.Value
}

func (r Request) String() string {
	args := make([]string, len(r.Arguments))
	for i, a := range r.Arguments {
		args[i] = a.String()
	}
	return fmt.Sprintf("Request{%s %q [%s]}", r.ID, r.Command, strings.Join(args, ", "))
}

// ServerMessage is a message sent from server to client.
// Sealed: only Response, ErrorResponse and Event implement it.
type ServerMessage interface {
	serverMessage()

	// CorrelationID returns the request id this message answers. Events are
	// not correlated and return false.
	CorrelationID() (RequestID, bool)
}

// Response is the successful terminal answer to a request.
type Response struct {
	ID     RequestID
	Result schema.Value
}

func (Response) serverMessage() {}

func (r Response) CorrelationID() (RequestID, bool) { return r.ID, true }

func (r Response) String() string {
	return fmt.Sprintf("Response{%s %s}", r.ID, r.Result)
}

// ErrorResponse is the failed terminal answer to a request.
type ErrorResponse struct {
	ID      RequestID
	Message string
}

func (ErrorResponse) serverMessage() {}

func (e ErrorResponse) CorrelationID() (RequestID, bool) { return e.ID, true }

func (e ErrorResponse) String() string {
	return fmt.Sprintf("ErrorResponse{%s %q}", e.ID, e.Message)
}

// Event is an uncorrelated server notification. Reserved: the dispatcher does
// not emit events, but the codec and transports carry them.
type Event struct {
	Name string
	Seq  int64
}

func (Event) serverMessage() {}

func (Event) CorrelationID() (RequestID, bool) { return RequestID{}, false }

func (e Event) String() string {
	return fmt.Sprintf("Event{%s #%d}", e.Name, e.Seq)
}

package dispatch

import (
	"fmt"
	"time"

	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// State is the loop's dispatch state. Sealed: Idle or Awaiting.
type State interface {
	dispatchState()
	String() string
}

// Idle means no command is pending; every tick polls all endpoints.
type Idle struct{}

func (Idle) dispatchState() {}

func (Idle) String() string { return "idle" }

// Awaiting means one command is pending; no endpoint is polled until it
// resolves.
type Awaiting struct {
	ID       protocol.RequestID
	Endpoint int
	Command  schema.Identifier
	Since    time.Time
}

func (Awaiting) dispatchState() {}

func (a Awaiting) String() string {
	return fmt.Sprintf("awaiting %q (%s) on endpoint %d", a.Command, a.ID, a.Endpoint)
}

package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/gam3du/gam3du-sub000/internal/dispatch"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// scriptedHandler answers commands from the scenario's handler table.
type scriptedHandler struct {
	replies map[schema.Identifier]HandlerSpec
}

func newScriptedHandler(replies map[string]HandlerSpec) (*scriptedHandler, error) {
	h := &scriptedHandler{replies: make(map[schema.Identifier]HandlerSpec, len(replies))}
	for name, reply := range replies {
		id, err := schema.ParseIdentifier(name)
		if err != nil {
			return nil, fmt.Errorf("handlers[%s]: %w", name, err)
		}
		h.replies[id] = reply
	}
	return h, nil
}

// Execute implements dispatch.Handler. Commands without an entry fail as
// unknown; a result is coerced to the function's declared return type.
func (h *scriptedHandler) Execute(_ context.Context, call dispatch.Call) dispatch.Result {
	reply, ok := h.replies[call.Command()]
	if !ok {
		return dispatch.Fail(dispatch.UnknownCommand(call.Command()))
	}

	switch {
	case reply.Pending:
		return dispatch.Pending()
	case reply.Error != "":
		return dispatch.Fail(errors.New(reply.Error))
	case reply.Result == nil || call.Function.Returns == nil:
		return dispatch.Ok(schema.Unit)
	}

	v, err := schema.Coerce(call.Function.Returns.Type, reply.Result)
	if err != nil {
		return dispatch.Fail(fmt.Errorf("scripted result: %w", err))
	}
	return dispatch.Ok(v)
}

package assistant

import (
	"context"
	"fmt"

	"codeme/pkg/protocol"
)

// Handler executes one kind of action plan and returns a user-facing
// result.
type Handler interface {
	Execute(ctx context.Context, plan *protocol.ActionPlan) (string, error)
}

// Dispatcher routes validated plans to their handlers. A panicking
// handler is contained here: the plan fails, the loop survives.
type Dispatcher struct {
	handlers map[protocol.ActionKind]Handler
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[protocol.ActionKind]Handler)}
}

// Register binds a handler to an action kind.
func (d *Dispatcher) Register(kind protocol.ActionKind, h Handler) {
	d.handlers[kind] = h
}

// Dispatch validates the plan's kind and runs its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, plan *protocol.ActionPlan) (result string, err error) {
	if !plan.Kind.Valid() {
		return "", &protocol.UnknownActionError{Kind: string(plan.Kind)}
	}
	h, ok := d.handlers[plan.Kind]
	if !ok {
		return "", &protocol.UnknownActionError{Kind: string(plan.Kind)}
	}

	defer func() {
		if r := recover(); r != nil {
			result = ""
			err = fmt.Errorf("handler for %s panicked: %v", plan.Kind, r)
		}
	}()
	return h.Execute(ctx, plan)
}

// navigateHandler answers "open" and "show" style plans. Navigation
// carries no execution semantics; the plan resolves to a clarification
// prompt only.
type navigateHandler struct{}

func (*navigateHandler) Execute(context.Context, *protocol.ActionPlan) (string, error) {
	return "could you please clarify your request?", nil
}

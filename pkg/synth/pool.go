package synth

import (
	"context"

	"codeme/pkg/protocol"
)

// MinPoolSize is the floor for concurrent synthesis slots. The intake
// side keeps accepting while a plan is in flight, so two slots is the
// minimum that keeps a slow completion from stalling a fast one.
const MinPoolSize = 2

// Pool bounds how many completions are in flight at once. Slots are
// acquired with the caller's context, so shutdown cancels waiters.
type Pool struct {
	client Client
	slots  chan struct{}
}

// NewPool creates a Pool with the given slot count, clamped to
// MinPoolSize.
func NewPool(client Client, size int) *Pool {
	if size < MinPoolSize {
		size = MinPoolSize
	}
	return &Pool{
		client: client,
		slots:  make(chan struct{}, size),
	}
}

// Size returns the slot count.
func (p *Pool) Size() int { return cap(p.slots) }

// Synthesize builds the prompt for rawCommand, runs a completion inside
// a pool slot, and parses the reply into a plan.
func (p *Pool) Synthesize(ctx context.Context, rawCommand string, snap Snapshot) (*protocol.ActionPlan, error) {
	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	raw, err := p.client.Complete(ctx, BuildPrompt(rawCommand, snap))
	if err != nil {
		return nil, err
	}
	return ParsePlan(raw)
}

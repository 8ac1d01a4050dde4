package assistant

import (
	"context"
	"fmt"
	"os"

	"codeme/pkg/protocol"
)

// logEvent appends one lifecycle event to the runtime database, tagged
// with the current project. Event log trouble is reported but never
// interrupts command processing.
func (a *Assistant) logEvent(ctx context.Context, eventType string, source protocol.Source, planID, payload string) {
	if a.events == nil {
		return
	}
	projectName := ""
	if p := a.pm.Current(); p != nil {
		projectName = p.Name
	}
	if err := a.events.Append(ctx, eventType, source, planID, projectName, payload); err != nil {
		fmt.Fprintf(os.Stderr, "warning: event log: %v\n", err)
	}
}

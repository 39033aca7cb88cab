package inventory

import "context"

// IntegrationHandler receives ledger events once their transaction commits.
// Implementations are best effort and must not block the caller for long.
type IntegrationHandler interface {
	HandleMovementApplied(ctx context.Context, evt MovementAppliedEvent)
}

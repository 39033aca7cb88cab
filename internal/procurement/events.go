package procurement

import (
	"context"
	"time"
)

// StatusChangedEvent is emitted after a purchase order changes status.
type StatusChangedEvent struct {
	BusinessID int64
	OrderID    int64
	Number     string
	From       Status
	To         Status
	Total      int64
	ActorID    int64
	ChangedAt  time.Time
}

// IntegrationHandler receives purchase order events once they commit.
type IntegrationHandler interface {
	HandleStatusChanged(ctx context.Context, evt StatusChangedEvent)
}

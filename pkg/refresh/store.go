package refresh

import (
	"context"
	"time"
)

// Store is the bookmark persistence layer consumed by the engine.
type Store interface {
	// ReadDue returns records whose last_refresh_at (or created_at when never
	// refreshed) is at or before before.
	ReadDue(ctx context.Context, before time.Time) ([]Record, error)

	// Write applies patch to record id atomically. A failed write leaves the
	// record unchanged.
	Write(ctx context.Context, id int64, patch Patch) error
}

// Catalog lists the license identifiers known to an owner.
type Catalog interface {
	ListForOwner(ctx context.Context, ownerID int64) ([]string, error)
}

// Package history persists per-session conversation turns.
package history

import (
	"context"

	"knowledge-assistant/internal/models"
)

// Store is the capability a history backend must provide. Load on an
// unknown session returns an empty sequence, not an error.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]models.Turn, error)
	Append(ctx context.Context, sessionID string, turns ...models.Turn) error
	Clear(ctx context.Context, sessionID string) error
}

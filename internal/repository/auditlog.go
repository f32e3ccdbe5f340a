package repository

import (
	"context"
	"time"

	"github.com/fwerner/plantguard/internal/model"
)

// LogRepository stores the append-only communication log.
type LogRepository interface {
	// Append inserts one entry. Entries are never mutated.
	Append(ctx context.Context, e *model.LogEntry) error

	// PruneOlderThan deletes entries with minLevel <= level < maxLevel
	// created before cutoff and returns the number of rows removed.
	PruneOlderThan(ctx context.Context, minLevel, maxLevel model.Level, cutoff time.Time) (int64, error)
}

package postgres

import (
	"context"
	"time"

	"github.com/fwerner/plantguard/internal/model"
)

// LogRepo implements LogRepository using PostgreSQL.
type LogRepo struct{ db *DB }

// NewLogRepo constructs a communication log repository.
func NewLogRepo(db *DB) *LogRepo { return &LogRepo{db: db} }

// Append inserts one log entry.
func (r *LogRepo) Append(ctx context.Context, e *model.LogEntry) error {
	const q = `
INSERT INTO comm_log (level, unit_identity_key, request_uri, request, response)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, e.Level, e.UnitIdentityKey, e.RequestURI, e.Request, e.Response)
	return err
}

// PruneOlderThan deletes entries of a severity tier older than cutoff.
func (r *LogRepo) PruneOlderThan(ctx context.Context, minLevel, maxLevel model.Level, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM comm_log WHERE level >= $1 AND level < $2 AND created_at < $3`
	tag, err := r.db.Pool.Exec(ctx, q, minLevel, maxLevel, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
)

// MeasurementRepo implements MeasurementRepository using PostgreSQL.
type MeasurementRepo struct{ db *DB }

// NewMeasurementRepo constructs a measurement repository.
func NewMeasurementRepo(db *DB) *MeasurementRepo { return &MeasurementRepo{db: db} }

// Insert stores one reading. The (unit_id, taken_at) unique constraint
// turns duplicate submissions into ErrDuplicateTimestamp.
func (r *MeasurementRepo) Insert(ctx context.Context, m *model.Measurement) error {
	const q = `
INSERT INTO measurements (unit_id, taken_at, temperature, air_humidity, ground_humidity, brightness, fill_level)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`
	err := r.db.Pool.QueryRow(ctx, q,
		m.UnitID, m.TakenAt, m.Temperature, m.AirHumidity, m.GroundHumidity, m.Brightness, m.FillLevel,
	).Scan(&m.ID)
	if isUniqueViolation(err) {
		return errs.ErrDuplicateTimestamp
	}
	return err
}

// LatestForUnit returns the newest reading for a unit.
func (r *MeasurementRepo) LatestForUnit(ctx context.Context, unitID int64) (*model.Measurement, error) {
	const q = `
SELECT id, unit_id, taken_at, temperature, air_humidity, ground_humidity, brightness, fill_level
FROM measurements WHERE unit_id=$1
ORDER BY taken_at DESC LIMIT 1`
	row := r.db.Pool.QueryRow(ctx, q, unitID)
	var m model.Measurement
	if err := row.Scan(&m.ID, &m.UnitID, &m.TakenAt, &m.Temperature, &m.AirHumidity, &m.GroundHumidity, &m.Brightness, &m.FillLevel); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ImageRepo implements ImageRepository using PostgreSQL.
type ImageRepo struct{ db *DB }

// NewImageRepo constructs an image repository.
func NewImageRepo(db *DB) *ImageRepo { return &ImageRepo{db: db} }

// Insert stores one image with the same duplicate semantics as measurements.
func (r *ImageRepo) Insert(ctx context.Context, img *model.Image) error {
	const q = `
INSERT INTO unit_images (unit_id, taken_at, content_type, data)
VALUES ($1, $2, $3, $4)
RETURNING id`
	err := r.db.Pool.QueryRow(ctx, q, img.UnitID, img.TakenAt, img.ContentType, img.Data).Scan(&img.ID)
	if isUniqueViolation(err) {
		return errs.ErrDuplicateTimestamp
	}
	return err
}

package repository

import (
	"context"

	"github.com/fwerner/plantguard/internal/model"
)

// MeasurementRepository stores sensor readings.
type MeasurementRepository interface {
	// Insert stores one reading. A (unit, timestamp) collision returns
	// ErrDuplicateTimestamp; the stored record is never overwritten.
	Insert(ctx context.Context, m *model.Measurement) error

	// LatestForUnit returns the newest reading for a unit, or
	// ErrNotFound when the unit has no readings yet.
	LatestForUnit(ctx context.Context, unitID int64) (*model.Measurement, error)
}

// ImageRepository stores camera uploads.
type ImageRepository interface {
	// Insert stores one image with the same (unit, timestamp)
	// uniqueness semantics as measurements.
	Insert(ctx context.Context, img *model.Image) error
}

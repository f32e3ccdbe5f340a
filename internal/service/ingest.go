package service

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
	"github.com/fwerner/plantguard/internal/repository"
	"github.com/fwerner/plantguard/internal/timeutil"
)

// WateringPlanner is notified after a successful measurement ingest. It
// must never block and its failures must not fail the ingest call.
type WateringPlanner interface {
	Notify(unit model.Unit)
}

// MeasurementInput carries the raw form fields of one telemetry submission.
// Numeric fields stay strings here: they are parsed permissively, and an
// unparseable value becomes NULL instead of failing the record.
type MeasurementInput struct {
	Timestamp      string
	Temperature    string
	AirHumidity    string
	GroundHumidity string
	Brightness     string
	FillLevel      string
}

// IngestService accepts authenticated telemetry and image uploads.
type IngestService interface {
	// SubmitMeasurement runs identify, authenticate, parse-timestamp,
	// uniqueness-checked insert, then triggers the watering planner.
	SubmitMeasurement(ctx context.Context, identityKey, signatureB64 string, in MeasurementInput) error
	// SubmitImage is the same pipeline with a content-sniffing step;
	// only genuine images (by magic header, not filename) are stored.
	SubmitImage(ctx context.Context, identityKey, signatureB64, timestamp string, data []byte) error
}

type IngestServiceImpl struct {
	units        repository.UnitRepository
	auth         ChallengeService
	measurements repository.MeasurementRepository
	images       repository.ImageRepository
	loc          *time.Location
	planner      WateringPlanner // optional
	log          *zap.Logger
}

// NewIngestService constructs IngestService. planner may be nil.
func NewIngestService(
	units repository.UnitRepository,
	auth ChallengeService,
	measurements repository.MeasurementRepository,
	images repository.ImageRepository,
	loc *time.Location,
	planner WateringPlanner,
	log *zap.Logger,
) *IngestServiceImpl {
	return &IngestServiceImpl{
		units: units, auth: auth,
		measurements: measurements, images: images,
		loc: loc, planner: planner, log: log,
	}
}

// SubmitMeasurement stores one sensor reading.
func (s *IngestServiceImpl) SubmitMeasurement(ctx context.Context, identityKey, signatureB64 string, in MeasurementInput) error {
	u, err := authenticateUnit(ctx, s.units, s.auth, identityKey, signatureB64)
	if err != nil {
		return err
	}
	takenAt, err := timeutil.ParseDeviceTime(in.Timestamp, s.loc)
	if err != nil {
		return err
	}
	m := &model.Measurement{
		UnitID:         u.ID,
		TakenAt:        takenAt,
		Temperature:    parseFloatField(in.Temperature),
		AirHumidity:    parseFloatField(in.AirHumidity),
		GroundHumidity: parseFloatField(in.GroundHumidity),
		Brightness:     parseFloatField(in.Brightness),
		FillLevel:      parseFloatField(in.FillLevel),
	}
	if err := s.measurements.Insert(ctx, m); err != nil {
		return err
	}
	if s.planner != nil {
		s.planner.Notify(*u)
	}
	return nil
}

// SubmitImage stores one camera upload.
func (s *IngestServiceImpl) SubmitImage(ctx context.Context, identityKey, signatureB64, timestamp string, data []byte) error {
	u, err := authenticateUnit(ctx, s.units, s.auth, identityKey, signatureB64)
	if err != nil {
		return err
	}
	takenAt, err := timeutil.ParseDeviceTime(timestamp, s.loc)
	if err != nil {
		return err
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return errs.ErrNotAnImage
	}
	img := &model.Image{UnitID: u.ID, TakenAt: takenAt, ContentType: contentType, Data: data}
	return s.images.Insert(ctx, img)
}

// parseFloatField converts a sensor value leniently. Sensor glitches
// must not block ingestion of the rest of the record.
func parseFloatField(v string) *float64 {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

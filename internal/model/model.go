// Package model defines domain entities used by services and repositories.
package model

import "time"

// Unit is a provisioned field device with a registered identity key and
// RSA public key. Units are created only by claiming a PendingUnit.
type Unit struct {
	ID          int64
	Name        string
	IdentityKey string // URL-safe token, the device's login name
	PublicKey   string // PEM-encoded SubjectPublicKeyInfo, unique
	OwnerID     int64  // account id in the external user system
	// UnattendedWatering lets the planner create pre-authorized tasks
	// for this unit without an operator approval step.
	UnattendedWatering bool
	CreatedAt          time.Time
}

// PendingUnit is a device that completed first contact but has not been
// claimed by an owner yet. Entries expire after a fixed TTL.
type PendingUnit struct {
	ID          int64
	IdentityKey string
	PublicKey   string
	PairingKey  string // short human-copyable code shown on the claim form
	CreatedAt   time.Time
}

// Challenge is the single outstanding nonce for a unit. Consuming it is
// an atomic delete, so a nonce can be verified against at most once.
type Challenge struct {
	UnitID   int64
	Nonce    string
	IssuedAt time.Time
}

// Measurement is one sensor reading. Every numeric field is optional; a
// reading with all fields nil is valid. (UnitID, TakenAt) is unique.
type Measurement struct {
	ID             int64
	UnitID         int64
	TakenAt        time.Time
	Temperature    *float64
	AirHumidity    *float64
	GroundHumidity *float64
	Brightness     *float64
	FillLevel      *float64
}

// Image is a camera upload, stored with the same (UnitID, TakenAt)
// uniqueness as measurements.
type Image struct {
	ID          int64
	UnitID      int64
	TakenAt     time.Time
	ContentType string
	Data        []byte
}

// TaskStatus is the watering task state machine. The integer values are
// part of the wire and storage format and must not be renumbered.
type TaskStatus int

const (
	// TaskCanceled marks a task superseded by a newer one. Terminal.
	TaskCanceled TaskStatus = -10
	// TaskPendingUnauthorized awaits an operator approval before dispatch.
	TaskPendingUnauthorized TaskStatus = 0
	// TaskPendingAuthorized is eligible for dispatch without approval.
	TaskPendingAuthorized TaskStatus = 5
	// TaskDispatched was handed to the device and awaits acknowledgement.
	TaskDispatched TaskStatus = 10
	// TaskDone was confirmed executed by the device. Terminal.
	TaskDone TaskStatus = 20
)

// String returns a human-readable status name for logs.
func (s TaskStatus) String() string {
	switch s {
	case TaskCanceled:
		return "canceled"
	case TaskPendingUnauthorized:
		return "pending-unauthorized"
	case TaskPendingAuthorized:
		return "pending-authorized"
	case TaskDispatched:
		return "dispatched"
	case TaskDone:
		return "done"
	default:
		return "unknown"
	}
}

// WateringTask is a queued actuation command. At most one task per unit
// may be dispatched at a time.
type WateringTask struct {
	ID         int64
	UnitID     int64
	Amount     int64 // milliliters, positive
	Status     TaskStatus
	CreatedAt  time.Time
	ExecutedAt *time.Time // set only on TaskDone
}

// Level classifies communication log entries. The integer values are the
// storage format; retention tiers are derived from the ranges
// [1,10), [10,100), [100,...).
type Level int

const (
	LevelMinorInfo  Level = 1
	LevelMinorError Level = 2
	LevelInfo       Level = 10
	LevelError      Level = 20
	LevelMajorInfo  Level = 100
	LevelMajorError Level = 200
)

// LogEntry is an append-only record of one protocol exchange. The unit
// identity key is snapshotted so the entry survives unit deletion.
type LogEntry struct {
	ID              int64
	Level           Level
	UnitIdentityKey string
	RequestURI      string
	Request         string
	Response        string
	CreatedAt       time.Time
}

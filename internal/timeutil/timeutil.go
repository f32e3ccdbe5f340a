// Package timeutil parses device-supplied wall-clock timestamps.
package timeutil

import (
	"time"

	"github.com/fwerner/plantguard/internal/errs"
)

// DeviceTimeLayout is the fixed textual pattern devices use on the wire.
const DeviceTimeLayout = "2006-01-02_15-04-05"

// ParseDeviceTime interprets value in loc and converts it to an absolute
// instant. Wall clocks that do not exist (skipped by a DST gap) or that
// occur twice (DST fold) are rejected: every stored timestamp must
// resolve to exactly one instant.
func ParseDeviceTime(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DeviceTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, errs.ErrBadTimestamp
	}
	// A skipped wall clock gets normalized past the gap and no longer
	// round-trips to the input.
	if t.Format(DeviceTimeLayout) != value {
		return time.Time{}, errs.ErrBadTimestamp
	}
	// A folded wall clock has a second instant one hour away that
	// formats to the same string.
	if t.Add(-time.Hour).Format(DeviceTimeLayout) == value || t.Add(time.Hour).Format(DeviceTimeLayout) == value {
		return time.Time{}, errs.ErrBadTimestamp
	}
	return t, nil
}

package verification

import (
	"fmt"
	"time"
)

// Windows maps a verification type to its validity in days. Zero means the
// record never expires.
type Windows map[Type]int

// DefaultWindows are used when no runtime setting overrides them.
func DefaultWindows() Windows {
	return Windows{
		TypeWeightFull:  180,
		TypeWeightLight: 30,
		TypeHeight:      0,
		TypePower:       365,
	}
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ExpiresOn returns the last calendar day on which rec is valid. ok is false
// when the window is zero.
func ExpiresOn(rec Record, validityDays int) (last time.Time, ok bool) {
	if validityDays <= 0 {
		return time.Time{}, false
	}
	return day(rec.EvidenceDate).AddDate(0, 0, validityDays), true
}

// IsValid reports whether rec is verified and inside its window on asOf.
// Dates compare at UTC day granularity and the last day is inclusive.
func IsValid(rec Record, validityDays int, asOf time.Time) bool {
	if rec.Status != StatusVerified {
		return false
	}
	last, ok := ExpiresOn(rec, validityDays)
	if !ok {
		return true
	}
	return !day(asOf).After(last)
}

// DaysRemaining is negative once expired. ok is false for records that never expire.
func DaysRemaining(rec Record, validityDays int, asOf time.Time) (int, bool) {
	last, ok := ExpiresOn(rec, validityDays)
	if !ok {
		return 0, false
	}
	return int(last.Sub(day(asOf)).Hours() / 24), true
}

// ValidityStatus renders a short human label for rec.
func ValidityStatus(rec Record, validityDays int, asOf time.Time) string {
	if rec.Status != StatusVerified {
		return "Not verified"
	}
	days, ok := DaysRemaining(rec, validityDays, asOf)
	switch {
	case !ok:
		return "Never expires"
	case days < 0:
		return "Expired"
	default:
		return fmt.Sprintf("Valid (%d days)", days)
	}
}

package appointment

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const (
	keyDelimiter = "_"

	// anonymousPlaceholder stands in for a missing patient reference. Two
	// anonymous bookings for the same specialist/date/time therefore share a
	// key and collide; callers that need ad hoc duplicates use TypeManual,
	// whose keys are salted.
	anonymousPlaceholder = ""
)

// ComputeBookingKey builds the deterministic identity key for an appointment:
// patient-or-placeholder, specialist, date (YYYY-MM-DD) and time (HH-MM-SS)
// joined with a fixed delimiter. Manual entries additionally embed the
// creation instant at nanosecond resolution plus a random suffix, so that two
// manual rows with identical scheduling fields never share a key.
func ComputeBookingKey(a *Appointment, now time.Time) string {
	patient := anonymousPlaceholder
	if a.PatientID != nil {
		patient = a.PatientID.String()
	}

	parts := []string{
		patient,
		a.SpecialistID.String(),
		a.VisitDate.Format("2006-01-02"),
		strings.ReplaceAll(a.VisitTime, ":", "-"),
	}

	if a.Type == TypeManual {
		parts = append(parts, strconv.FormatInt(now.UnixNano(), 10), randomSalt())
	}

	return strings.Join(parts, keyDelimiter)
}

func randomSalt() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// timestamp-derived suffix rather than panicking mid-request.
		return strconv.FormatInt(time.Now().UnixNano()%0xffffffff, 16)
	}
	return hex.EncodeToString(b[:])
}

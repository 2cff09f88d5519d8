package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/directory"
	"github.com/clinicore/clinicore/internal/platform/clock"
	"github.com/clinicore/clinicore/internal/platform/db"
)

const (
	minVisitYear = 1900
	maxVisitYear = 2100
)

// Service is the appointment lifecycle manager. Validation, booking-key
// computation and duplicate detection run as explicit pre-commit steps here,
// not as hidden persistence hooks, so the sequence is orderable and testable.
type Service struct {
	repo     Repository
	tx       db.TxRunner
	resolver *Resolver
	clock    clock.Clock
	log      zerolog.Logger
}

func NewService(repo Repository, tx db.TxRunner, resolver *Resolver, clk clock.Clock, log zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, resolver: resolver, clock: clk, log: log}
}

// CreateInput carries a booking request. Date and Time arrive as strings from
// the surrounding CRUD layers and are validated before any key computation.
type CreateInput struct {
	PatientID    *uuid.UUID `json:"patient_id,omitempty"`
	SpecialistID uuid.UUID  `json:"specialist_id"`
	Type         Type       `json:"type"`
	Date         string     `json:"date"`
	Time         string     `json:"time"`
	Notes        *string    `json:"notes,omitempty"`
}

// Create validates the request, computes the booking key, checks for a
// duplicate (manual entries are exempt) and persists, all inside one
// transaction backed by the partial unique index on booking_key. A unique
// violation at commit time is re-checked once so the caller gets the
// conflicting id rather than a bare constraint error.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	date, timeOfDay, err := validateSchedule(in.Date, in.Time)
	if err != nil {
		return nil, err
	}
	if in.SpecialistID == uuid.Nil {
		return nil, &ValidationError{Field: "specialist_id", Reason: "is required"}
	}
	if !in.Type.Valid() {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", in.Type)}
	}

	a := &Appointment{
		PatientID:     in.PatientID,
		SpecialistID:  in.SpecialistID,
		Type:          in.Type,
		VisitDate:     date,
		VisitTime:     timeOfDay,
		Status:        StatusPending,
		BillingStatus: BillingPending,
		Notes:         in.Notes,
	}
	a.BookingKey = ComputeBookingKey(a, s.clock.Now())

	err = s.tx(ctx, func(ctx context.Context) error {
		if a.Type != TypeManual {
			conflict, err := s.repo.FindConflict(ctx, a.BookingKey, uuid.Nil)
			if err != nil {
				return err
			}
			if conflict != nil {
				return &DuplicateError{ConflictingID: conflict.ID, BookingKey: a.BookingKey}
			}
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, s.mapCommitError(ctx, err, a.BookingKey, uuid.Nil)
	}

	s.log.Info().
		Str("appointment_id", a.ID.String()).
		Str("booking_key", a.BookingKey).
		Str("type", string(a.Type)).
		Msg("appointment created")
	return a, nil
}

// UpdateInput carries a partial edit. Nil fields are left unchanged;
// ClearPatient detaches the patient reference (anonymous booking).
type UpdateInput struct {
	PatientID    *uuid.UUID `json:"patient_id,omitempty"`
	ClearPatient bool       `json:"clear_patient,omitempty"`
	SpecialistID *uuid.UUID `json:"specialist_id,omitempty"`
	Type         *Type      `json:"type,omitempty"`
	Date         *string    `json:"date,omitempty"`
	Time         *string    `json:"time,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
}

// Update applies the edit. The booking key is regenerated and the duplicate
// check re-run only when a scheduling field (patient, specialist, date, time)
// changed, and only when the appointment is not manual before or after the
// edit.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if in.ClearPatient {
		updated.PatientID = nil
	} else if in.PatientID != nil {
		pid := *in.PatientID
		updated.PatientID = &pid
	}
	if in.SpecialistID != nil {
		updated.SpecialistID = *in.SpecialistID
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", *in.Type)}
		}
		updated.Type = *in.Type
	}
	if in.Date != nil || in.Time != nil {
		dateStr := existing.VisitDate.Format("2006-01-02")
		if in.Date != nil {
			dateStr = *in.Date
		}
		timeStr := existing.VisitTime
		if in.Time != nil {
			timeStr = *in.Time
		}
		date, timeOfDay, err := validateSchedule(dateStr, timeStr)
		if err != nil {
			return nil, err
		}
		updated.VisitDate = date
		updated.VisitTime = timeOfDay
	}
	if in.Notes != nil {
		updated.Notes = in.Notes
	}

	schedulingChanged := updated.SchedulingFieldsChanged(existing)
	manualExempt := existing.Type == TypeManual || updated.Type == TypeManual

	if schedulingChanged {
		updated.BookingKey = ComputeBookingKey(&updated, s.clock.Now())
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if schedulingChanged && !manualExempt {
			conflict, err := s.repo.FindConflict(ctx, updated.BookingKey, updated.ID)
			if err != nil {
				return err
			}
			if conflict != nil {
				return &DuplicateError{ConflictingID: conflict.ID, BookingKey: updated.BookingKey}
			}
		}
		return s.repo.Update(ctx, &updated)
	})
	if err != nil {
		return nil, s.mapCommitError(ctx, err, updated.BookingKey, updated.ID)
	}

	return &updated, nil
}

// UpdateStatus moves the appointment through the scheduling state machine.
// Completed, cancelled and no-show are terminal.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next Status) (*Appointment, error) {
	if !next.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", next)}
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.CanTransitionTo(next) {
		return nil, &InvalidTransitionError{From: a.Status, To: next}
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	a.Status = next
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByBookingKey returns the newest appointment holding key.
func (s *Service) FindByBookingKey(ctx context.Context, key string) (*Appointment, error) {
	return s.repo.GetByBookingKey(ctx, key)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListBySpecialist(ctx context.Context, specialistID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListBySpecialist(ctx, specialistID, limit, offset)
}

// ResolvePatient delegates to the tolerant resolver chain; absence is
// (nil, nil), never an error.
func (s *Service) ResolvePatient(ctx context.Context, a *Appointment) (*directory.Patient, error) {
	return s.resolver.ResolvePatient(ctx, a, nil)
}

func (s *Service) ResolveSpecialist(ctx context.Context, a *Appointment) (*directory.Specialist, error) {
	return s.resolver.ResolveSpecialist(ctx, a, nil)
}

// mapCommitError converts a unique violation raised by the partial index into
// a DuplicateError carrying the winner's id. The re-check is the single
// internal retry: if the winning row vanished again in the meantime the
// caller gets a transient conflict.
func (s *Service) mapCommitError(ctx context.Context, err error, key string, excludeID uuid.UUID) error {
	if !db.IsUniqueViolation(err) {
		return err
	}
	conflict, findErr := s.repo.FindConflict(ctx, key, excludeID)
	if findErr == nil && conflict != nil {
		return &DuplicateError{ConflictingID: conflict.ID, BookingKey: key}
	}
	s.log.Warn().Str("booking_key", key).Msg("booking key race lost and winner not found")
	return fmt.Errorf("booking key %q: %w", key, db.ErrConflict)
}

func validateSchedule(dateStr, timeStr string) (time.Time, string, error) {
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, "", &ValidationError{Field: "date", Reason: fmt.Sprintf("%q does not parse as YYYY-MM-DD", dateStr)}
	}
	if y := date.Year(); y < minVisitYear || y > maxVisitYear {
		return time.Time{}, "", &ValidationError{Field: "date", Reason: fmt.Sprintf("year %d outside [%d, %d]", y, minVisitYear, maxVisitYear)}
	}

	t, err := time.Parse("15:04:05", timeStr)
	if err != nil {
		t, err = time.Parse("15:04", timeStr)
		if err != nil {
			return time.Time{}, "", &ValidationError{Field: "time", Reason: fmt.Sprintf("%q does not parse as HH:MM[:SS]", timeStr)}
		}
	}
	return date, t.Format("15:04:05"), nil
}

package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByBookingKey(ctx context.Context, key string) (*Appointment, error)
	// FindConflict returns the non-cancelled, non-manual appointment holding
	// key, excluding excludeID (pass uuid.Nil on create). Returns (nil, nil)
	// when the key is free.
	FindConflict(ctx context.Context, key string, excludeID uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListBySpecialist(ctx context.Context, specialistID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}

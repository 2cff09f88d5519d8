package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound signals that no row matched a lookup. Callers treat it as
// absence, not failure; the appointment resolver walks its strategy chain on
// this error.
var ErrNotFound = errors.New("directory: not found")

// PatientRepository exposes the lookup strategies the resolver chain needs.
// Historical data drift left appointment rows whose patient reference may
// match the primary key, the record number, or a raw legacy column.
type PatientRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByRecordNumber(ctx context.Context, recordNumber string) (*Patient, error)
	GetByLegacyRef(ctx context.Context, ref string) (*Patient, error)
}

type SpecialistRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Specialist, error)
	GetByRecordNumber(ctx context.Context, recordNumber string) (*Specialist, error)
	GetByLegacyRef(ctx context.Context, ref string) (*Specialist, error)
}

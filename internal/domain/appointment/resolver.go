package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/directory"
)

// Resolver performs tolerant reference resolution for the drifted foreign-key
// columns on historical appointment rows. Each lookup walks an ordered
// strategy chain: the already-loaded relation, then a primary-key lookup,
// then the alternate record-number column, then a raw legacy-reference
// lookup. A strategy miss is logged and the chain continues; when every
// strategy misses the resolver returns absence (nil, nil), leaving the caller
// to decide how to degrade.
type Resolver struct {
	patients    directory.PatientRepository
	specialists directory.SpecialistRepository
	log         zerolog.Logger
}

func NewResolver(patients directory.PatientRepository, specialists directory.SpecialistRepository, log zerolog.Logger) *Resolver {
	return &Resolver{patients: patients, specialists: specialists, log: log}
}

type patientStrategy struct {
	name string
	fn   func(ctx context.Context, ref uuid.UUID) (*directory.Patient, error)
}

// ResolvePatient resolves the patient referenced by a. loaded, when non-nil,
// is a relation the caller already fetched and short-circuits the chain.
// Anonymous appointments (no patient reference) resolve to absence directly.
func (r *Resolver) ResolvePatient(ctx context.Context, a *Appointment, loaded *directory.Patient) (*directory.Patient, error) {
	if loaded != nil {
		return loaded, nil
	}
	if a.PatientID == nil {
		return nil, nil
	}
	ref := *a.PatientID

	strategies := []patientStrategy{
		{"primary_key", func(ctx context.Context, ref uuid.UUID) (*directory.Patient, error) {
			return r.patients.GetByID(ctx, ref)
		}},
		{"record_number", func(ctx context.Context, ref uuid.UUID) (*directory.Patient, error) {
			return r.patients.GetByRecordNumber(ctx, ref.String())
		}},
		{"legacy_ref", func(ctx context.Context, ref uuid.UUID) (*directory.Patient, error) {
			return r.patients.GetByLegacyRef(ctx, ref.String())
		}},
	}

	for _, st := range strategies {
		p, err := st.fn(ctx, ref)
		if err == nil {
			return p, nil
		}
		r.logMiss("patient", st.name, a.ID, ref, err)
	}
	return nil, nil
}

type specialistStrategy struct {
	name string
	fn   func(ctx context.Context, ref uuid.UUID) (*directory.Specialist, error)
}

// ResolveSpecialist mirrors ResolvePatient for the specialist reference.
func (r *Resolver) ResolveSpecialist(ctx context.Context, a *Appointment, loaded *directory.Specialist) (*directory.Specialist, error) {
	if loaded != nil {
		return loaded, nil
	}
	ref := a.SpecialistID

	strategies := []specialistStrategy{
		{"primary_key", func(ctx context.Context, ref uuid.UUID) (*directory.Specialist, error) {
			return r.specialists.GetByID(ctx, ref)
		}},
		{"record_number", func(ctx context.Context, ref uuid.UUID) (*directory.Specialist, error) {
			return r.specialists.GetByRecordNumber(ctx, ref.String())
		}},
		{"legacy_ref", func(ctx context.Context, ref uuid.UUID) (*directory.Specialist, error) {
			return r.specialists.GetByLegacyRef(ctx, ref.String())
		}},
	}

	for _, st := range strategies {
		s, err := st.fn(ctx, ref)
		if err == nil {
			return s, nil
		}
		r.logMiss("specialist", st.name, a.ID, ref, err)
	}
	return nil, nil
}

func (r *Resolver) logMiss(kind, strategy string, appointmentID, ref uuid.UUID, err error) {
	evt := r.log.Debug()
	if !errors.Is(err, directory.ErrNotFound) {
		evt = r.log.Warn().Err(err)
	}
	evt.
		Str("kind", kind).
		Str("strategy", strategy).
		Str("appointment_id", appointmentID.String()).
		Str("ref", ref.String()).
		Msg("reference resolution miss")
}

package directory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool db.Pool }

func NewPatientRepoPG(pool db.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, record_number, legacy_ref, full_name, active, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.RecordNumber, &p.LegacyRef, &p.FullName, &p.Active,
		&p.CreatedAt, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByRecordNumber(ctx context.Context, recordNumber string) (*Patient, error) {
	// record_number is not unique in drifted legacy data; take the newest row.
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE record_number = $1 ORDER BY created_at DESC LIMIT 1`,
		recordNumber))
}

func (r *patientRepoPG) GetByLegacyRef(ctx context.Context, ref string) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE legacy_ref = $1 ORDER BY created_at DESC LIMIT 1`,
		ref))
}

// =========== Specialist Repository ===========

type specialistRepoPG struct{ pool db.Pool }

func NewSpecialistRepoPG(pool db.Pool) SpecialistRepository { return &specialistRepoPG{pool: pool} }

func (r *specialistRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const specialistCols = `id, record_number, legacy_ref, full_name, specialty, active, created_at, updated_at`

func (r *specialistRepoPG) scanSpecialist(row pgx.Row) (*Specialist, error) {
	var s Specialist
	err := row.Scan(&s.ID, &s.RecordNumber, &s.LegacyRef, &s.FullName, &s.Specialty,
		&s.Active, &s.CreatedAt, &s.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *specialistRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Specialist, error) {
	return r.scanSpecialist(r.conn(ctx).QueryRow(ctx,
		`SELECT `+specialistCols+` FROM specialists WHERE id = $1`, id))
}

func (r *specialistRepoPG) GetByRecordNumber(ctx context.Context, recordNumber string) (*Specialist, error) {
	return r.scanSpecialist(r.conn(ctx).QueryRow(ctx,
		`SELECT `+specialistCols+` FROM specialists WHERE record_number = $1 ORDER BY created_at DESC LIMIT 1`,
		recordNumber))
}

func (r *specialistRepoPG) GetByLegacyRef(ctx context.Context, ref string) (*Specialist, error) {
	return r.scanSpecialist(r.conn(ctx).QueryRow(ctx,
		`SELECT `+specialistCols+` FROM specialists WHERE legacy_ref = $1 ORDER BY created_at DESC LIMIT 1`,
		ref))
}

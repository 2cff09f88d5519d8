package billing

import (
	"context"
	"fmt"

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

type repoPG struct {
	pool db.Pool
}

func NewRepoPG(pool db.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const chargeCols = `id, appointment_id, settlement_id, price, status, created_at, updated_at`

func scanCharge(row pgx.Row) (*Charge, error) {
	var ch Charge
	err := row.Scan(&ch.ID, &ch.AppointmentID, &ch.SettlementID, &ch.Price,
		&ch.Status, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *repoPG) CreateCharge(ctx context.Context, ch *Charge) error {
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment_charges (id, appointment_id, settlement_id, price, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		ch.ID, ch.AppointmentID, ch.SettlementID, ch.Price, ch.Status)
	if err := row.Scan(&ch.CreatedAt, &ch.UpdatedAt); err != nil {
		return fmt.Errorf("insert charge: %w", err)
	}
	return nil
}

func (r *repoPG) GetCharge(ctx context.Context, id uuid.UUID) (*Charge, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+chargeCols+` FROM appointment_charges WHERE id = $1`, id)
	ch, err := scanCharge(row)
	if db.IsNoRows(err) {
		return nil, db.ErrNotFound
	}
	return ch, err
}

func (r *repoPG) GetChargeByLink(ctx context.Context, appointmentID, settlementID uuid.UUID) (*Charge, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+chargeCols+` FROM appointment_charges
		 WHERE appointment_id = $1 AND settlement_id = $2`,
		appointmentID, settlementID)
	ch, err := scanCharge(row)
	if db.IsNoRows(err) {
		return nil, db.ErrNotFound
	}
	return ch, err
}

func (r *repoPG) UpdateChargeStatus(ctx context.Context, id uuid.UUID, status ChargeStatus) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment_charges SET status = $2, updated_at = now()
		WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update charge status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repoPG) ListBySettlement(ctx context.Context, settlementID uuid.UUID, limit, offset int) ([]*Charge, int, error) {
	q := r.conn(ctx)

	var total int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment_charges WHERE settlement_id = $1`,
		settlementID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count charges: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT `+chargeCols+` FROM appointment_charges
		 WHERE settlement_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		settlementID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list charges: %w", err)
	}
	defer rows.Close()

	charges, err := collectCharges(rows)
	if err != nil {
		return nil, 0, err
	}
	return charges, total, nil
}

func (r *repoPG) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Charge, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+chargeCols+` FROM appointment_charges
		 WHERE appointment_id = $1
		 ORDER BY created_at DESC`,
		appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list charges by appointment: %w", err)
	}
	defer rows.Close()
	return collectCharges(rows)
}

func collectCharges(rows pgx.Rows) ([]*Charge, error) {
	charges := make([]*Charge, 0)
	for rows.Next() {
		ch, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		charges = append(charges, ch)
	}
	return charges, rows.Err()
}

func (r *repoPG) GetSettlement(ctx context.Context, id uuid.UUID) (*Settlement, error) {
	var s Settlement
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, status, appointments_total, created_at, updated_at
		FROM settlements WHERE id = $1`, id).
		Scan(&s.ID, &s.PatientID, &s.Status, &s.AppointmentsTotal, &s.CreatedAt, &s.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) RecomputeSettlementTotal(ctx context.Context, settlementID uuid.UUID) (float64, error) {
	var total float64
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE settlements SET
			appointments_total = (
				SELECT COALESCE(SUM(price), 0)
				FROM appointment_charges
				WHERE settlement_id = $1 AND status <> 'cancelled'
			),
			updated_at = now()
		WHERE id = $1
		RETURNING appointments_total`, settlementID).Scan(&total)
	if db.IsNoRows(err) {
		return 0, db.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("recompute settlement total: %w", err)
	}
	return total, nil
}

func (r *repoPG) SetAppointmentBillingStatus(ctx context.Context, appointmentID uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET billing_status = $2, updated_at = now()
		WHERE id = $1`, appointmentID, status)
	if err != nil {
		return fmt.Errorf("set billing status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repoPG) CountUnpaidCharges(ctx context.Context, appointmentID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointment_charges
		WHERE appointment_id = $1 AND status = 'pending'`,
		appointmentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unpaid charges: %w", err)
	}
	return n, nil
}

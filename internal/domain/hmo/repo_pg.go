package hmo

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

type claimRepoPG struct {
	pool db.Pool
}

func NewClaimRepoPG(pool db.Pool) ClaimRepository {
	return &claimRepoPG{pool: pool}
}

func (r *claimRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const claimCols = `id, claim_number, settlement_id, provider_id, patient_id,
	claim_amount, approved_amount, rejected_amount, status,
	submitted_at, approved_at, paid_at, rejection_reason, created_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var cl Claim
	err := row.Scan(&cl.ID, &cl.ClaimNumber, &cl.SettlementID, &cl.ProviderID,
		&cl.PatientID, &cl.ClaimAmount, &cl.ApprovedAmount, &cl.RejectedAmount,
		&cl.Status, &cl.SubmittedAt, &cl.ApprovedAt, &cl.PaidAt,
		&cl.RejectionReason, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

func (r *claimRepoPG) NextClaimNumber(ctx context.Context) (int64, error) {
	var seq int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('hmo_claim_number_seq')`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next claim number: %w", err)
	}
	return seq, nil
}

func (r *claimRepoPG) Create(ctx context.Context, cl *Claim) error {
	if cl.ID == uuid.Nil {
		cl.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO hmo_claims (
			id, claim_number, settlement_id, provider_id, patient_id,
			claim_amount, approved_amount, rejected_amount, status, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		cl.ID, cl.ClaimNumber, cl.SettlementID, cl.ProviderID, cl.PatientID,
		cl.ClaimAmount, cl.ApprovedAmount, cl.RejectedAmount, cl.Status, cl.SubmittedAt)
	if err := row.Scan(&cl.CreatedAt, &cl.UpdatedAt); err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (r *claimRepoPG) Update(ctx context.Context, cl *Claim) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE hmo_claims SET
			approved_amount = $2, rejected_amount = $3, status = $4,
			approved_at = $5, paid_at = $6, rejection_reason = $7,
			updated_at = now()
		WHERE id = $1`,
		cl.ID, cl.ApprovedAmount, cl.RejectedAmount, cl.Status,
		cl.ApprovedAt, cl.PaidAt, cl.RejectionReason)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *claimRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+claimCols+` FROM hmo_claims WHERE id = $1`, id)
	cl, err := scanClaim(row)
	if db.IsNoRows(err) {
		return nil, db.ErrNotFound
	}
	return cl, err
}

func (r *claimRepoPG) GetByClaimNumber(ctx context.Context, number string) (*Claim, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+claimCols+` FROM hmo_claims WHERE claim_number = $1`, number)
	cl, err := scanClaim(row)
	if db.IsNoRows(err) {
		return nil, db.ErrNotFound
	}
	return cl, err
}

func (r *claimRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	return r.list(ctx, "patient_id", patientID, limit, offset)
}

func (r *claimRepoPG) ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	return r.list(ctx, "provider_id", providerID, limit, offset)
}

func (r *claimRepoPG) list(ctx context.Context, col string, id uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	q := r.conn(ctx)

	var total int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM hmo_claims WHERE `+col+` = $1`, id).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count claims: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT `+claimCols+` FROM hmo_claims
		 WHERE `+col+` = $1
		 ORDER BY submitted_at DESC
		 LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	claims := make([]*Claim, 0)
	for rows.Next() {
		cl, err := scanClaim(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, cl)
	}
	return claims, total, rows.Err()
}

func (r *claimRepoPG) SumApproved(ctx context.Context, patientID, providerID uuid.UUID) (float64, error) {
	var sum float64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(approved_amount), 0)
		FROM hmo_claims
		WHERE patient_id = $1 AND provider_id = $2
		  AND status IN ('approved', 'paid')`,
		patientID, providerID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum approved claims: %w", err)
	}
	return sum, nil
}

type coverageRepoPG struct {
	pool db.Pool
}

func NewCoverageRepoPG(pool db.Pool) CoverageRepository {
	return &coverageRepoPG{pool: pool}
}

func (r *coverageRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const coverageCols = `id, patient_id, provider_id, annual_limit, used_amount,
	remaining_amount, coverage_start, coverage_end, status, created_at, updated_at`

func scanCoverage(row pgx.Row) (*Coverage, error) {
	var cov Coverage
	err := row.Scan(&cov.ID, &cov.PatientID, &cov.ProviderID, &cov.AnnualLimit,
		&cov.UsedAmount, &cov.RemainingAmount, &cov.CoverageStart,
		&cov.CoverageEnd, &cov.Status, &cov.CreatedAt, &cov.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cov, nil
}

func (r *coverageRepoPG) Get(ctx context.Context, patientID, providerID uuid.UUID) (*Coverage, error) {
	return r.get(ctx, patientID, providerID, "")
}

func (r *coverageRepoPG) GetForUpdate(ctx context.Context, patientID, providerID uuid.UUID) (*Coverage, error) {
	return r.get(ctx, patientID, providerID, " FOR UPDATE")
}

func (r *coverageRepoPG) get(ctx context.Context, patientID, providerID uuid.UUID, suffix string) (*Coverage, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+coverageCols+` FROM hmo_patient_coverage
		 WHERE patient_id = $1 AND provider_id = $2`+suffix,
		patientID, providerID)
	cov, err := scanCoverage(row)
	if db.IsNoRows(err) {
		return nil, db.ErrNotFound
	}
	return cov, err
}

func (r *coverageRepoPG) Upsert(ctx context.Context, cov *Coverage) error {
	if cov.ID == uuid.Nil {
		cov.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO hmo_patient_coverage (
			id, patient_id, provider_id, annual_limit, used_amount,
			remaining_amount, coverage_start, coverage_end, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (patient_id, provider_id) DO UPDATE SET
			annual_limit = EXCLUDED.annual_limit,
			coverage_start = EXCLUDED.coverage_start,
			coverage_end = EXCLUDED.coverage_end,
			status = EXCLUDED.status,
			updated_at = now()
		RETURNING id, used_amount, remaining_amount, created_at, updated_at`,
		cov.ID, cov.PatientID, cov.ProviderID, cov.AnnualLimit, cov.UsedAmount,
		cov.RemainingAmount, cov.CoverageStart, cov.CoverageEnd, cov.Status)
	err := row.Scan(&cov.ID, &cov.UsedAmount, &cov.RemainingAmount, &cov.CreatedAt, &cov.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert coverage: %w", err)
	}
	return nil
}

func (r *coverageRepoPG) SetUsage(ctx context.Context, id uuid.UUID, used float64, remaining *float64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE hmo_patient_coverage SET
			used_amount = $2, remaining_amount = $3, updated_at = now()
		WHERE id = $1`, id, used, remaining)
	if err != nil {
		return fmt.Errorf("set coverage usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

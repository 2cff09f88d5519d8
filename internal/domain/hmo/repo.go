package hmo

import (
	"context"

	"github.com/google/uuid"
)

// ClaimRepository persists claims. NextClaimNumber must draw from a database
// sequence so concurrent submissions never collide.
type ClaimRepository interface {
	NextClaimNumber(ctx context.Context) (int64, error)
	Create(ctx context.Context, cl *Claim) error
	Update(ctx context.Context, cl *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	GetByClaimNumber(ctx context.Context, number string) (*Claim, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Claim, int, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*Claim, int, error)
	// SumApproved totals approved_amount over counted claims for the pair.
	SumApproved(ctx context.Context, patientID, providerID uuid.UUID) (float64, error)
}

// CoverageRepository persists the coverage ledger. GetForUpdate must lock the
// row for the duration of the surrounding transaction.
type CoverageRepository interface {
	Get(ctx context.Context, patientID, providerID uuid.UUID) (*Coverage, error)
	GetForUpdate(ctx context.Context, patientID, providerID uuid.UUID) (*Coverage, error)
	Upsert(ctx context.Context, cov *Coverage) error
	SetUsage(ctx context.Context, id uuid.UUID, used float64, remaining *float64) error
}

package hmo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/clock"
	"github.com/clinicore/clinicore/internal/platform/db"
)

// Service runs claim adjudication and keeps the coverage ledger consistent.
// Every transition into or out of a counted state recomputes the affected
// (patient, provider) coverage row inside the adjudication transaction.
type Service struct {
	claims   ClaimRepository
	coverage CoverageRepository
	tx       db.TxRunner
	clock    clock.Clock
	log      zerolog.Logger
}

func NewService(claims ClaimRepository, coverage CoverageRepository, tx db.TxRunner, clk clock.Clock, log zerolog.Logger) *Service {
	return &Service{claims: claims, coverage: coverage, tx: tx, clock: clk, log: log}
}

// SubmitInput carries a new claim.
type SubmitInput struct {
	SettlementID *uuid.UUID `json:"settlement_id,omitempty"`
	ProviderID   uuid.UUID  `json:"provider_id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	ClaimAmount  float64    `json:"claim_amount"`
}

// SubmitClaim creates a claim in submitted state. The claim number comes from
// a database sequence, so the format is gap-tolerant but collision-free.
func (s *Service) SubmitClaim(ctx context.Context, in SubmitInput) (*Claim, error) {
	if in.ProviderID == uuid.Nil {
		return nil, &ValidationError{Field: "provider_id", Reason: "is required"}
	}
	if in.PatientID == uuid.Nil {
		return nil, &ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if in.ClaimAmount <= 0 {
		return nil, &ValidationError{Field: "claim_amount", Reason: "must be greater than zero"}
	}

	cl := &Claim{
		SettlementID: in.SettlementID,
		ProviderID:   in.ProviderID,
		PatientID:    in.PatientID,
		ClaimAmount:  in.ClaimAmount,
		Status:       ClaimSubmitted,
		SubmittedAt:  s.clock.Now(),
	}
	err := s.tx(ctx, func(ctx context.Context) error {
		seq, err := s.claims.NextClaimNumber(ctx)
		if err != nil {
			return err
		}
		cl.ClaimNumber = FormatClaimNumber(seq)
		return s.claims.Create(ctx, cl)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("claim_id", cl.ID.String()).
		Str("claim_number", cl.ClaimNumber).
		Float64("amount", cl.ClaimAmount).
		Msg("claim submitted")
	return cl, nil
}

// BeginReview moves a submitted claim into under_review.
func (s *Service) BeginReview(ctx context.Context, id uuid.UUID) (*Claim, error) {
	cl, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cl.Status.CanTransitionTo(ClaimUnderReview) || cl.Status == ClaimApproved {
		return nil, &InvalidTransitionError{From: cl.Status, To: ClaimUnderReview}
	}
	cl.Status = ClaimUnderReview
	if err := s.claims.Update(ctx, cl); err != nil {
		return nil, err
	}
	return cl, nil
}

// ApproveClaim adjudicates a claim in the provider's favor. Amount is clamped
// into [0, claim_amount]; the remainder becomes the rejected portion, so the
// two always sum to the original claim. Coverage is recomputed in the same
// transaction.
func (s *Service) ApproveClaim(ctx context.Context, id uuid.UUID, amount float64) (*Claim, error) {
	var out *Claim
	err := s.runWithRetry(ctx, func(ctx context.Context) error {
		cl, err := s.claims.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !cl.Status.CanTransitionTo(ClaimApproved) {
			return &InvalidTransitionError{From: cl.Status, To: ClaimApproved}
		}

		approved := clamp(amount, 0, cl.ClaimAmount)
		if approved != amount {
			s.log.Warn().
				Str("claim_id", id.String()).
				Float64("requested", amount).
				Float64("approved", approved).
				Msg("approval amount clamped to claim bounds")
		}
		now := s.clock.Now()
		cl.ApprovedAmount = approved
		cl.RejectedAmount = cl.ClaimAmount - approved
		cl.Status = ClaimApproved
		cl.ApprovedAt = &now
		cl.RejectionReason = nil
		if err := s.claims.Update(ctx, cl); err != nil {
			return err
		}
		out = cl
		return s.recomputeLocked(ctx, cl.PatientID, cl.ProviderID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RejectClaim adjudicates a claim against the provider. A reason is required
// so the rejection can be disputed later. Coverage is recomputed because the
// claim may have been approved before this correction.
func (s *Service) RejectClaim(ctx context.Context, id uuid.UUID, reason string) (*Claim, error) {
	if reason == "" {
		return nil, &ValidationError{Field: "rejection_reason", Reason: "is required"}
	}

	var out *Claim
	err := s.runWithRetry(ctx, func(ctx context.Context) error {
		cl, err := s.claims.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !cl.Status.CanTransitionTo(ClaimRejected) {
			return &InvalidTransitionError{From: cl.Status, To: ClaimRejected}
		}
		cl.ApprovedAmount = 0
		cl.RejectedAmount = cl.ClaimAmount
		cl.Status = ClaimRejected
		cl.ApprovedAt = nil
		cl.RejectionReason = &reason
		if err := s.claims.Update(ctx, cl); err != nil {
			return err
		}
		out = cl
		return s.recomputeLocked(ctx, cl.PatientID, cl.ProviderID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkClaimPaid records payment of an approved claim. Paid claims stay
// counted, so no recompute is needed.
func (s *Service) MarkClaimPaid(ctx context.Context, id uuid.UUID) (*Claim, error) {
	cl, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cl.Status.CanTransitionTo(ClaimPaid) {
		return nil, &InvalidTransitionError{From: cl.Status, To: ClaimPaid}
	}
	now := s.clock.Now()
	cl.Status = ClaimPaid
	cl.PaidAt = &now
	if err := s.claims.Update(ctx, cl); err != nil {
		return nil, err
	}
	return cl, nil
}

// ReopenClaim pulls a mis-adjudicated approved claim back to under_review,
// zeroing the split and releasing its approved amount from the ledger. Paid
// claims cannot be reopened.
func (s *Service) ReopenClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	var out *Claim
	err := s.runWithRetry(ctx, func(ctx context.Context) error {
		cl, err := s.claims.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cl.Status != ClaimApproved {
			return &InvalidTransitionError{From: cl.Status, To: ClaimUnderReview}
		}
		cl.ApprovedAmount = 0
		cl.RejectedAmount = 0
		cl.Status = ClaimUnderReview
		cl.ApprovedAt = nil
		if err := s.claims.Update(ctx, cl); err != nil {
			return err
		}
		out = cl
		return s.recomputeLocked(ctx, cl.PatientID, cl.ProviderID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("claim_id", id.String()).Msg("claim reopened for review")
	return out, nil
}

func (s *Service) GetClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return s.claims.GetByID(ctx, id)
}

func (s *Service) GetClaimByNumber(ctx context.Context, number string) (*Claim, error) {
	return s.claims.GetByClaimNumber(ctx, number)
}

func (s *Service) ListClaimsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	return s.claims.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListClaimsByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	return s.claims.ListByProvider(ctx, providerID, limit, offset)
}

func (s *Service) GetCoverage(ctx context.Context, patientID, providerID uuid.UUID) (*Coverage, error) {
	return s.coverage.Get(ctx, patientID, providerID)
}

// UpsertCoverage seeds or refreshes an enrollment row for the external
// enrollment system. Usage figures are owned by the recompute path and are
// not writable here.
func (s *Service) UpsertCoverage(ctx context.Context, cov *Coverage) error {
	if cov.PatientID == uuid.Nil {
		return &ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if cov.ProviderID == uuid.Nil {
		return &ValidationError{Field: "provider_id", Reason: "is required"}
	}
	if cov.Status == "" {
		cov.Status = CoverageActive
	}
	if !cov.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", cov.Status)}
	}
	if cov.AnnualLimit != nil && *cov.AnnualLimit < 0 {
		return &ValidationError{Field: "annual_limit", Reason: "must not be negative"}
	}

	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.coverage.Upsert(ctx, cov); err != nil {
			return err
		}
		// A limit change moves the remaining figure even with no new claims.
		return s.recomputeLocked(ctx, cov.PatientID, cov.ProviderID)
	})
	if err != nil {
		return err
	}

	refreshed, err := s.coverage.Get(ctx, cov.PatientID, cov.ProviderID)
	if err != nil {
		return err
	}
	*cov = *refreshed
	return nil
}

// RecomputeCoverage rebuilds the usage figures for one (patient, provider)
// pair from its counted claims. Safe to call at any time; it is the repair
// tool for ledger drift.
func (s *Service) RecomputeCoverage(ctx context.Context, patientID, providerID uuid.UUID) (*Coverage, error) {
	err := s.runWithRetry(ctx, func(ctx context.Context) error {
		return s.recomputeLocked(ctx, patientID, providerID)
	})
	if err != nil {
		return nil, err
	}
	return s.coverage.Get(ctx, patientID, providerID)
}

// recomputeLocked must run inside a transaction. It locks the coverage row,
// sums counted claims and writes used/remaining back. Pairs with no coverage
// row are legal and make the recompute a no-op.
func (s *Service) recomputeLocked(ctx context.Context, patientID, providerID uuid.UUID) error {
	cov, err := s.coverage.GetForUpdate(ctx, patientID, providerID)
	if errors.Is(err, db.ErrNotFound) {
		s.log.Debug().
			Str("patient_id", patientID.String()).
			Str("provider_id", providerID.String()).
			Msg("no coverage row for pair, skipping recompute")
		return nil
	}
	if err != nil {
		return err
	}

	used, err := s.claims.SumApproved(ctx, patientID, providerID)
	if err != nil {
		return err
	}

	var remaining *float64
	if cov.AnnualLimit != nil {
		rem := *cov.AnnualLimit - used
		if rem < 0 {
			rem = 0
		}
		remaining = &rem
	}
	return s.coverage.SetUsage(ctx, cov.ID, used, remaining)
}

// runWithRetry executes fn in a transaction and retries exactly once when the
// transaction loses a row lock or serialization conflict. A second failure
// surfaces as db.ErrConflict.
func (s *Service) runWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	err := s.tx(ctx, fn)
	if err == nil || !db.IsLockConflict(err) {
		return err
	}
	s.log.Warn().Err(err).Msg("coverage transaction lost lock, retrying once")
	if err := s.tx(ctx, fn); err != nil {
		if db.IsLockConflict(err) {
			return fmt.Errorf("coverage recompute: %w", db.ErrConflict)
		}
		return err
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

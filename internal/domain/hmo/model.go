package hmo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClaimStatus is the adjudication state. Rejected and paid are terminal;
// approved can still be reopened for correction until it is paid.
type ClaimStatus string

const (
	ClaimSubmitted   ClaimStatus = "submitted"
	ClaimUnderReview ClaimStatus = "under_review"
	ClaimApproved    ClaimStatus = "approved"
	ClaimRejected    ClaimStatus = "rejected"
	ClaimPaid        ClaimStatus = "paid"
)

func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimSubmitted, ClaimUnderReview, ClaimApproved, ClaimRejected, ClaimPaid:
		return true
	}
	return false
}

// Counted reports whether a claim in this state contributes its approved
// amount to the patient's coverage usage.
func (s ClaimStatus) Counted() bool {
	return s == ClaimApproved || s == ClaimPaid
}

var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimSubmitted:   {ClaimUnderReview, ClaimApproved, ClaimRejected},
	ClaimUnderReview: {ClaimApproved, ClaimRejected},
	ClaimApproved:    {ClaimPaid, ClaimUnderReview},
	ClaimRejected:    {},
	ClaimPaid:        {},
}

func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	for _, allowed := range claimTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FormatClaimNumber renders a sequence value as the human-facing claim
// number.
func FormatClaimNumber(seq int64) string {
	return fmt.Sprintf("CLM-%08d", seq)
}

// Claim is one reimbursement request against a patient's HMO coverage.
// ClaimAmount is fixed at submission; adjudication splits it into approved
// and rejected portions that always sum back to it.
type Claim struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	ClaimNumber     string      `db:"claim_number" json:"claim_number"`
	SettlementID    *uuid.UUID  `db:"settlement_id" json:"settlement_id,omitempty"`
	ProviderID      uuid.UUID   `db:"provider_id" json:"provider_id"`
	PatientID       uuid.UUID   `db:"patient_id" json:"patient_id"`
	ClaimAmount     float64     `db:"claim_amount" json:"claim_amount"`
	ApprovedAmount  float64     `db:"approved_amount" json:"approved_amount"`
	RejectedAmount  float64     `db:"rejected_amount" json:"rejected_amount"`
	Status          ClaimStatus `db:"status" json:"status"`
	SubmittedAt     time.Time   `db:"submitted_at" json:"submitted_at"`
	ApprovedAt      *time.Time  `db:"approved_at" json:"approved_at,omitempty"`
	PaidAt          *time.Time  `db:"paid_at" json:"paid_at,omitempty"`
	RejectionReason *string     `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// CoverageStatus of an enrollment row.
type CoverageStatus string

const (
	CoverageActive    CoverageStatus = "active"
	CoverageSuspended CoverageStatus = "suspended"
	CoverageExpired   CoverageStatus = "expired"
)

func (s CoverageStatus) Valid() bool {
	switch s {
	case CoverageActive, CoverageSuspended, CoverageExpired:
		return true
	}
	return false
}

// Coverage is the per-(patient, provider) ledger row. A nil AnnualLimit means
// unbounded coverage; RemainingAmount stays nil in that case.
type Coverage struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	PatientID       uuid.UUID      `db:"patient_id" json:"patient_id"`
	ProviderID      uuid.UUID      `db:"provider_id" json:"provider_id"`
	AnnualLimit     *float64       `db:"annual_limit" json:"annual_limit,omitempty"`
	UsedAmount      float64        `db:"used_amount" json:"used_amount"`
	RemainingAmount *float64       `db:"remaining_amount" json:"remaining_amount,omitempty"`
	CoverageStart   *time.Time     `db:"coverage_start" json:"coverage_start,omitempty"`
	CoverageEnd     *time.Time     `db:"coverage_end" json:"coverage_end,omitempty"`
	Status          CoverageStatus `db:"status" json:"status"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the coverage can accept claims at the given
// instant. An unset boundary leaves that side of the window open.
func (c *Coverage) IsActive(now time.Time) bool {
	if c.Status != CoverageActive {
		return false
	}
	if c.CoverageStart != nil && now.Before(*c.CoverageStart) {
		return false
	}
	if c.CoverageEnd != nil && now.After(*c.CoverageEnd) {
		return false
	}
	return true
}

// HasRemaining reports whether any benefit is left. Unbounded coverage always
// has remaining benefit.
func (c *Coverage) HasRemaining() bool {
	if c.AnnualLimit == nil {
		return true
	}
	return c.RemainingAmount != nil && *c.RemainingAmount > 0
}

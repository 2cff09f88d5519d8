package billing

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists charges and the settlement aggregate. Implementations
// must honor the unique (appointment_id, settlement_id) constraint.
type Repository interface {
	CreateCharge(ctx context.Context, ch *Charge) error
	GetCharge(ctx context.Context, id uuid.UUID) (*Charge, error)
	GetChargeByLink(ctx context.Context, appointmentID, settlementID uuid.UUID) (*Charge, error)
	UpdateChargeStatus(ctx context.Context, id uuid.UUID, status ChargeStatus) error
	ListBySettlement(ctx context.Context, settlementID uuid.UUID, limit, offset int) ([]*Charge, int, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Charge, error)

	GetSettlement(ctx context.Context, id uuid.UUID) (*Settlement, error)
	// RecomputeSettlementTotal sets appointments_total to the sum of
	// non-cancelled charge prices for the settlement.
	RecomputeSettlementTotal(ctx context.Context, settlementID uuid.UUID) (float64, error)

	// SetAppointmentBillingStatus flips the billing flag on the appointment
	// row without touching its scheduling status.
	SetAppointmentBillingStatus(ctx context.Context, appointmentID uuid.UUID, status string) error
	// CountUnpaidCharges returns the number of non-cancelled charges on an
	// appointment that are not yet paid.
	CountUnpaidCharges(ctx context.Context, appointmentID uuid.UUID) (int, error)
}

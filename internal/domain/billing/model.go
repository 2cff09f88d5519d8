package billing

import (
	"time"

	"github.com/google/uuid"
)

// ChargeStatus tracks a single appointment-settlement link. Paid and
// cancelled are terminal.
type ChargeStatus string

const (
	ChargePending   ChargeStatus = "pending"
	ChargePaid      ChargeStatus = "paid"
	ChargeCancelled ChargeStatus = "cancelled"
)

func (s ChargeStatus) Valid() bool {
	switch s {
	case ChargePending, ChargePaid, ChargeCancelled:
		return true
	}
	return false
}

func (s ChargeStatus) Terminal() bool {
	return s == ChargePaid || s == ChargeCancelled
}

// Charge links an appointment into a settlement. Price is a snapshot taken
// at link time and never changes afterwards, even if the catalog price moves.
type Charge struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	AppointmentID uuid.UUID    `db:"appointment_id" json:"appointment_id"`
	SettlementID  uuid.UUID    `db:"settlement_id" json:"settlement_id"`
	Price         float64      `db:"price" json:"price"`
	Status        ChargeStatus `db:"status" json:"status"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// Settlement is the parent ledger row. This package maintains only the
// appointments aggregate; the rest of the settlement lifecycle belongs to the
// wider billing system.
type Settlement struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	Status            string     `db:"status" json:"status"`
	AppointmentsTotal float64    `db:"appointments_total" json:"appointments_total"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

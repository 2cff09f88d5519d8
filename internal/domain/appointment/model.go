package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies an appointment. Manual entries are ledger-style rows exempt
// from the booking-key uniqueness contract.
type Type string

const (
	TypeConsultation Type = "consultation"
	TypeProcedure    Type = "procedure"
	TypeFollowUp     Type = "followup"
	TypeCheckup      Type = "checkup"
	TypeManual       Type = "manual"
)

var validTypes = map[Type]bool{
	TypeConsultation: true, TypeProcedure: true, TypeFollowUp: true,
	TypeCheckup: true, TypeManual: true,
}

func (t Type) Valid() bool { return validTypes[t] }

// Status is the scheduling state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var validStatuses = map[Status]bool{
	StatusPending: true, StatusConfirmed: true, StatusCompleted: true,
	StatusCancelled: true, StatusNoShow: true,
}

func (s Status) Valid() bool { return validStatuses[s] }

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransitionTo reports whether s -> next is a legal scheduling transition.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// BillingStatus is carried on the appointment independently of scheduling
// state; it flips to paid when every linked charge is paid.
type BillingStatus string

const (
	BillingPending BillingStatus = "pending"
	BillingPaid    BillingStatus = "paid"
)

// Appointment maps to the appointments table.
type Appointment struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	PatientID     *uuid.UUID    `db:"patient_id" json:"patient_id,omitempty"`
	SpecialistID  uuid.UUID     `db:"specialist_id" json:"specialist_id"`
	Type          Type          `db:"type" json:"type"`
	VisitDate     time.Time     `db:"visit_date" json:"visit_date"`
	VisitTime     string        `db:"visit_time" json:"visit_time"`
	Status        Status        `db:"status" json:"status"`
	BookingKey    string        `db:"booking_key" json:"booking_key"`
	BillingStatus BillingStatus `db:"billing_status" json:"billing_status"`
	Notes         *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// SchedulingFieldsChanged reports whether any of the fields feeding the
// booking key (patient, specialist, date, time) differ between a and other.
func (a *Appointment) SchedulingFieldsChanged(other *Appointment) bool {
	if !uuidPtrEqual(a.PatientID, other.PatientID) {
		return true
	}
	if a.SpecialistID != other.SpecialistID {
		return true
	}
	if !a.VisitDate.Equal(other.VisitDate) {
		return true
	}
	return a.VisitTime != other.VisitTime
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/db"
)

// ValidationError reports a rejected billing request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("billing: invalid %s: %s", e.Field, e.Reason)
}

// Service keeps the settlement ledger consistent with its appointment link
// rows. Every mutation that can change the aggregate recomputes it in the
// same transaction.
type Service struct {
	repo Repository
	tx   db.TxRunner
	log  zerolog.Logger
}

func NewService(repo Repository, tx db.TxRunner, log zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, log: log}
}

// LinkAppointment attaches an appointment to a settlement with a price
// snapshot. Linking the same pair twice returns the existing link unchanged.
func (s *Service) LinkAppointment(ctx context.Context, appointmentID, settlementID uuid.UUID, price float64) (*Charge, error) {
	if appointmentID == uuid.Nil {
		return nil, &ValidationError{Field: "appointment_id", Reason: "is required"}
	}
	if settlementID == uuid.Nil {
		return nil, &ValidationError{Field: "settlement_id", Reason: "is required"}
	}
	if price < 0 {
		return nil, &ValidationError{Field: "price", Reason: "must not be negative"}
	}

	ch := &Charge{
		AppointmentID: appointmentID,
		SettlementID:  settlementID,
		Price:         price,
		Status:        ChargePending,
	}
	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateCharge(ctx, ch); err != nil {
			return err
		}
		_, err := s.repo.RecomputeSettlementTotal(ctx, settlementID)
		return err
	})
	if db.IsUniqueViolation(err) {
		existing, getErr := s.repo.GetChargeByLink(ctx, appointmentID, settlementID)
		if getErr != nil {
			return nil, fmt.Errorf("charge link exists but lookup failed: %w", getErr)
		}
		s.log.Warn().
			Str("charge_id", existing.ID.String()).
			Str("appointment_id", appointmentID.String()).
			Str("settlement_id", settlementID.String()).
			Msg("appointment already linked to settlement")
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("charge_id", ch.ID.String()).
		Str("settlement_id", settlementID.String()).
		Float64("price", price).
		Msg("appointment linked to settlement")
	return ch, nil
}

// MarkChargePaid settles a link. An already terminal charge is a no-op so
// reconciliation jobs can replay safely. When the last pending charge on an
// appointment is paid the appointment's billing flag flips to paid.
func (s *Service) MarkChargePaid(ctx context.Context, chargeID uuid.UUID) (*Charge, error) {
	return s.markCharge(ctx, chargeID, ChargePaid)
}

// MarkChargeCancelled voids a link and recomputes the settlement total, which
// drops the cancelled price from the aggregate.
func (s *Service) MarkChargeCancelled(ctx context.Context, chargeID uuid.UUID) (*Charge, error) {
	return s.markCharge(ctx, chargeID, ChargeCancelled)
}

func (s *Service) markCharge(ctx context.Context, chargeID uuid.UUID, target ChargeStatus) (*Charge, error) {
	var out *Charge
	err := s.tx(ctx, func(ctx context.Context) error {
		ch, err := s.repo.GetCharge(ctx, chargeID)
		if err != nil {
			return err
		}
		if ch.Status.Terminal() {
			s.log.Warn().
				Str("charge_id", chargeID.String()).
				Str("status", string(ch.Status)).
				Str("requested", string(target)).
				Msg("charge already terminal, ignoring mark")
			out = ch
			return nil
		}
		if err := s.repo.UpdateChargeStatus(ctx, chargeID, target); err != nil {
			return err
		}
		ch.Status = target
		out = ch

		if target == ChargeCancelled {
			if _, err := s.repo.RecomputeSettlementTotal(ctx, ch.SettlementID); err != nil {
				return err
			}
		}
		if target == ChargePaid {
			return s.settleAppointmentIfDone(ctx, ch.AppointmentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) settleAppointmentIfDone(ctx context.Context, appointmentID uuid.UUID) error {
	unpaid, err := s.repo.CountUnpaidCharges(ctx, appointmentID)
	if err != nil {
		return err
	}
	if unpaid > 0 {
		return nil
	}
	err = s.repo.SetAppointmentBillingStatus(ctx, appointmentID, "paid")
	// The link may point at an appointment billed outside this system.
	if errors.Is(err, db.ErrNotFound) {
		s.log.Warn().
			Str("appointment_id", appointmentID.String()).
			Msg("charge fully paid but appointment row missing")
		return nil
	}
	return err
}

func (s *Service) GetCharge(ctx context.Context, id uuid.UUID) (*Charge, error) {
	return s.repo.GetCharge(ctx, id)
}

func (s *Service) GetSettlement(ctx context.Context, id uuid.UUID) (*Settlement, error) {
	return s.repo.GetSettlement(ctx, id)
}

func (s *Service) ListBySettlement(ctx context.Context, settlementID uuid.UUID, limit, offset int) ([]*Charge, int, error) {
	return s.repo.ListBySettlement(ctx, settlementID, limit, offset)
}

func (s *Service) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Charge, error) {
	return s.repo.ListByAppointment(ctx, appointmentID)
}

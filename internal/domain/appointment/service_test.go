package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/clock"
	"github.com/clinicore/clinicore/internal/platform/db"
)

// -- Mock Repository --

type mockRepo struct {
	appts     map[uuid.UUID]*Appointment
	createErr error
	// conflictSkips makes the next N FindConflict calls miss, simulating a
	// concurrent insert that is not yet visible to the app-level check.
	conflictSkips int
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return db.ErrNotFound
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) GetByBookingKey(_ context.Context, key string) (*Appointment, error) {
	var newest *Appointment
	for _, a := range m.appts {
		if a.BookingKey != key {
			continue
		}
		if newest == nil || a.CreatedAt.After(newest.CreatedAt) {
			newest = a
		}
	}
	if newest == nil {
		return nil, db.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (m *mockRepo) FindConflict(_ context.Context, key string, excludeID uuid.UUID) (*Appointment, error) {
	if m.conflictSkips > 0 {
		m.conflictSkips--
		return nil, nil
	}
	for _, a := range m.appts {
		if a.BookingKey == key && a.Status != StatusCancelled && a.Type != TypeManual && a.ID != excludeID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	a, ok := m.appts[id]
	if !ok {
		return db.ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if a.PatientID != nil && *a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) ListBySpecialist(_ context.Context, specialistID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if a.SpecialistID == specialistID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "uq_appointments_booking_key"}
}

func newTestService(repo *mockRepo) *Service {
	clk := clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	resolver := NewResolver(nil, nil, zerolog.Nop())
	return NewService(repo, passthroughTx, resolver, clk, zerolog.Nop())
}

func validInput() CreateInput {
	pid := uuid.New()
	return CreateInput{
		PatientID:    &pid,
		SpecialistID: uuid.New(),
		Type:         TypeConsultation,
		Date:         "2026-03-14",
		Time:         "09:30:00",
	}
}

// -- Create --

func TestCreate(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	a, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if a.Status != StatusPending {
		t.Errorf("status = %s, want pending", a.Status)
	}
	if a.BillingStatus != BillingPending {
		t.Errorf("billing_status = %s, want pending", a.BillingStatus)
	}
	if a.BookingKey == "" {
		t.Error("expected booking key to be computed")
	}
}

func TestCreate_DuplicateRejected(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	in := validInput()

	first, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}

	_, err = svc.Create(context.Background(), in)
	var de *DuplicateError
	if !errors.As(err, &de) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if de.ConflictingID != first.ID {
		t.Errorf("conflicting id = %s, want %s", de.ConflictingID, first.ID)
	}
	if de.BookingKey != first.BookingKey {
		t.Errorf("conflict key = %q, want %q", de.BookingKey, first.BookingKey)
	}
}

func TestCreate_CancelledSlotRebookable(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	in := validInput()
	ctx := context.Background()

	first, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, first.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	second, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("rebooking a cancelled slot should succeed: %v", err)
	}
	if second.BookingKey != first.BookingKey {
		t.Errorf("rebooked key = %q, want %q", second.BookingKey, first.BookingKey)
	}
}

func TestCreate_ManualExemptFromDedup(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	in := validInput()
	in.Type = TypeManual
	ctx := context.Background()

	first, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("first manual Create: %v", err)
	}
	second, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("second manual Create: %v", err)
	}
	if first.BookingKey == second.BookingKey {
		t.Errorf("manual keys should differ, both %q", first.BookingKey)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(in *CreateInput)
		field  string
	}{
		{"bad date", func(in *CreateInput) { in.Date = "14/03/2026" }, "date"},
		{"year too low", func(in *CreateInput) { in.Date = "1899-12-31" }, "date"},
		{"year too high", func(in *CreateInput) { in.Date = "2101-01-01" }, "date"},
		{"bad time", func(in *CreateInput) { in.Time = "half past nine" }, "time"},
		{"missing specialist", func(in *CreateInput) { in.SpecialistID = uuid.Nil }, "specialist_id"},
		{"unknown type", func(in *CreateInput) { in.Type = "walkin" }, "type"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := validInput()
			c.mutate(&in)
			_, err := svc.Create(ctx, in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != c.field {
				t.Errorf("field = %q, want %q", ve.Field, c.field)
			}
		})
	}
}

func TestCreate_ShortTimeNormalized(t *testing.T) {
	svc := newTestService(newMockRepo())
	in := validInput()
	in.Time = "09:30"

	a, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.VisitTime != "09:30:00" {
		t.Errorf("visit_time = %q, want normalized 09:30:00", a.VisitTime)
	}
}

func TestCreate_AnonymousAllowed(t *testing.T) {
	svc := newTestService(newMockRepo())
	in := validInput()
	in.PatientID = nil

	a, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("anonymous Create: %v", err)
	}
	if a.PatientID != nil {
		t.Error("expected nil patient id")
	}
}

func TestCreate_UniqueViolationMappedToDuplicate(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	in := validInput()

	winner, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("setup Create: %v", err)
	}

	// Simulate a concurrent insert winning the index race: the app-level
	// check misses, the insert trips the unique constraint, and the re-check
	// then finds the winner.
	repo.conflictSkips = 1
	repo.createErr = uniqueViolation()

	_, err = svc.Create(ctx, in)
	var de *DuplicateError
	if !errors.As(err, &de) {
		t.Fatalf("expected DuplicateError from 23505 re-check, got %v", err)
	}
	if de.ConflictingID != winner.ID {
		t.Errorf("conflicting id = %s, want %s", de.ConflictingID, winner.ID)
	}
}

// -- Update --

func TestUpdate_DateChangeRecheckedForDuplicate(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	in := validInput()
	blocker, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("blocker Create: %v", err)
	}

	other := validInput()
	other.PatientID = in.PatientID
	other.SpecialistID = in.SpecialistID
	other.Date = "2026-03-15"
	victim, err := svc.Create(ctx, other)
	if err != nil {
		t.Fatalf("victim Create: %v", err)
	}

	// Move the second appointment onto the first one's slot.
	newDate := "2026-03-14"
	_, err = svc.Update(ctx, victim.ID, UpdateInput{Date: &newDate})
	var de *DuplicateError
	if !errors.As(err, &de) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if de.ConflictingID != blocker.ID {
		t.Errorf("conflicting id = %s, want %s", de.ConflictingID, blocker.ID)
	}
}

func TestUpdate_NotesOnlySkipsRecheck(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	a, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	oldKey := a.BookingKey

	notes := "arrived late last time"
	updated, err := svc.Update(ctx, a.ID, UpdateInput{Notes: &notes})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.BookingKey != oldKey {
		t.Errorf("booking key should not be regenerated: %q != %q", updated.BookingKey, oldKey)
	}
	if updated.Notes == nil || *updated.Notes != notes {
		t.Error("notes not applied")
	}
}

func TestUpdate_RescheduleRegeneratesKey(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	a, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newTime := "14:00:00"
	updated, err := svc.Update(ctx, a.ID, UpdateInput{Time: &newTime})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.BookingKey == a.BookingKey {
		t.Error("expected booking key to change after reschedule")
	}
}

func TestUpdate_ManualSkipsDuplicateCheck(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	in := validInput()
	in.Type = TypeManual
	a, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newTime := "09:30:00"
	if _, err := svc.Update(ctx, a.ID, UpdateInput{Time: &newTime}); err != nil {
		t.Fatalf("manual update should skip dedup: %v", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc := newTestService(newMockRepo())
	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{})
	if !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// -- Status --

func TestUpdateStatus(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	a, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	confirmed, err := svc.UpdateStatus(ctx, a.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}

	if _, err := svc.UpdateStatus(ctx, a.ID, StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err = svc.UpdateStatus(ctx, a.ID, StatusCancelled)
	var te *InvalidTransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected InvalidTransitionError from terminal state, got %v", err)
	}
	if te.From != StatusCompleted || te.To != StatusCancelled {
		t.Errorf("transition = %s -> %s, want completed -> cancelled", te.From, te.To)
	}
}

func TestUpdateStatus_SkipConfirmRejected(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	a, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = svc.UpdateStatus(ctx, a.ID, StatusCompleted)
	var te *InvalidTransitionError
	if !errors.As(err, &te) {
		t.Fatalf("pending -> completed should be rejected, got %v", err)
	}
}

// -- Lookup --

func TestFindByBookingKey(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	a, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := svc.FindByBookingKey(ctx, a.BookingKey)
	if err != nil {
		t.Fatalf("FindByBookingKey: %v", err)
	}
	if found.ID != a.ID {
		t.Errorf("found %s, want %s", found.ID, a.ID)
	}

	if _, err := svc.FindByBookingKey(ctx, "no_such_key"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

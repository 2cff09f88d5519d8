package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/directory"
)

// mockPatientDir records the order strategies were tried in.
type mockPatientDir struct {
	byID     map[uuid.UUID]*directory.Patient
	byRecord map[string]*directory.Patient
	byLegacy map[string]*directory.Patient
	calls    []string
	idErr    error
}

func newMockPatientDir() *mockPatientDir {
	return &mockPatientDir{
		byID:     make(map[uuid.UUID]*directory.Patient),
		byRecord: make(map[string]*directory.Patient),
		byLegacy: make(map[string]*directory.Patient),
	}
}

func (m *mockPatientDir) GetByID(_ context.Context, id uuid.UUID) (*directory.Patient, error) {
	m.calls = append(m.calls, "primary_key")
	if m.idErr != nil {
		return nil, m.idErr
	}
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return nil, directory.ErrNotFound
}

func (m *mockPatientDir) GetByRecordNumber(_ context.Context, rn string) (*directory.Patient, error) {
	m.calls = append(m.calls, "record_number")
	if p, ok := m.byRecord[rn]; ok {
		return p, nil
	}
	return nil, directory.ErrNotFound
}

func (m *mockPatientDir) GetByLegacyRef(_ context.Context, ref string) (*directory.Patient, error) {
	m.calls = append(m.calls, "legacy_ref")
	if p, ok := m.byLegacy[ref]; ok {
		return p, nil
	}
	return nil, directory.ErrNotFound
}

type mockSpecialistDir struct {
	byID map[uuid.UUID]*directory.Specialist
}

func (m *mockSpecialistDir) GetByID(_ context.Context, id uuid.UUID) (*directory.Specialist, error) {
	if s, ok := m.byID[id]; ok {
		return s, nil
	}
	return nil, directory.ErrNotFound
}

func (m *mockSpecialistDir) GetByRecordNumber(_ context.Context, rn string) (*directory.Specialist, error) {
	return nil, directory.ErrNotFound
}

func (m *mockSpecialistDir) GetByLegacyRef(_ context.Context, ref string) (*directory.Specialist, error) {
	return nil, directory.ErrNotFound
}

func apptWithPatient(pid uuid.UUID) *Appointment {
	return &Appointment{ID: uuid.New(), PatientID: &pid, SpecialistID: uuid.New()}
}

func TestResolvePatient_LoadedShortCircuits(t *testing.T) {
	dir := newMockPatientDir()
	r := NewResolver(dir, &mockSpecialistDir{}, zerolog.Nop())

	loaded := &directory.Patient{ID: uuid.New(), FullName: "Ada Osei"}
	got, err := r.ResolvePatient(context.Background(), apptWithPatient(uuid.New()), loaded)
	if err != nil {
		t.Fatalf("ResolvePatient: %v", err)
	}
	if got != loaded {
		t.Error("expected loaded relation to be returned as-is")
	}
	if len(dir.calls) != 0 {
		t.Errorf("no lookups should run when the relation is loaded, got %v", dir.calls)
	}
}

func TestResolvePatient_AnonymousIsAbsence(t *testing.T) {
	dir := newMockPatientDir()
	r := NewResolver(dir, &mockSpecialistDir{}, zerolog.Nop())

	a := &Appointment{ID: uuid.New(), SpecialistID: uuid.New()}
	got, err := r.ResolvePatient(context.Background(), a, nil)
	if err != nil {
		t.Fatalf("ResolvePatient: %v", err)
	}
	if got != nil {
		t.Error("anonymous appointment should resolve to absence")
	}
	if len(dir.calls) != 0 {
		t.Errorf("no lookups expected for anonymous appointment, got %v", dir.calls)
	}
}

func TestResolvePatient_PrimaryKeyFirst(t *testing.T) {
	dir := newMockPatientDir()
	pid := uuid.New()
	want := &directory.Patient{ID: pid, FullName: "Kofi Mensah"}
	dir.byID[pid] = want
	r := NewResolver(dir, &mockSpecialistDir{}, zerolog.Nop())

	got, err := r.ResolvePatient(context.Background(), apptWithPatient(pid), nil)
	if err != nil {
		t.Fatalf("ResolvePatient: %v", err)
	}
	if got != want {
		t.Error("expected primary key hit")
	}
	if len(dir.calls) != 1 || dir.calls[0] != "primary_key" {
		t.Errorf("calls = %v, want [primary_key]", dir.calls)
	}
}

func TestResolvePatient_FallsBackInOrder(t *testing.T) {
	dir := newMockPatientDir()
	pid := uuid.New()
	want := &directory.Patient{ID: uuid.New(), FullName: "Ama Boateng"}
	dir.byLegacy[pid.String()] = want
	r := NewResolver(dir, &mockSpecialistDir{}, zerolog.Nop())

	got, err := r.ResolvePatient(context.Background(), apptWithPatient(pid), nil)
	if err != nil {
		t.Fatalf("ResolvePatient: %v", err)
	}
	if got != want {
		t.Error("expected legacy ref hit")
	}
	wantOrder := []string{"primary_key", "record_number", "legacy_ref"}
	if len(dir.calls) != len(wantOrder) {
		t.Fatalf("calls = %v, want %v", dir.calls, wantOrder)
	}
	for i, c := range wantOrder {
		if dir.calls[i] != c {
			t.Errorf("call %d = %q, want %q", i, dir.calls[i], c)
		}
	}
}

func TestResolvePatient_AllMissIsAbsenceNotError(t *testing.T) {
	dir := newMockPatientDir()
	r := NewResolver(dir, &mockSpecialistDir{}, zerolog.Nop())

	got, err := r.ResolvePatient(context.Background(), apptWithPatient(uuid.New()), nil)
	if err != nil {
		t.Fatalf("all-miss must not return an error, got %v", err)
	}
	if got != nil {
		t.Error("all-miss should resolve to absence")
	}
	if len(dir.calls) != 3 {
		t.Errorf("expected the full chain to run, got %v", dir.calls)
	}
}

func TestResolvePatient_UnexpectedErrorContinuesChain(t *testing.T) {
	dir := newMockPatientDir()
	pid := uuid.New()
	dir.idErr = errors.New("connection reset")
	want := &directory.Patient{ID: uuid.New(), FullName: "Esi Nyarko"}
	dir.byRecord[pid.String()] = want
	r := NewResolver(dir, &mockSpecialistDir{}, zerolog.Nop())

	got, err := r.ResolvePatient(context.Background(), apptWithPatient(pid), nil)
	if err != nil {
		t.Fatalf("ResolvePatient: %v", err)
	}
	if got != want {
		t.Error("a failing strategy should not stop the chain")
	}
}

func TestResolveSpecialist(t *testing.T) {
	sid := uuid.New()
	want := &directory.Specialist{ID: sid, FullName: "Dr. Owusu"}
	sdir := &mockSpecialistDir{byID: map[uuid.UUID]*directory.Specialist{sid: want}}
	r := NewResolver(newMockPatientDir(), sdir, zerolog.Nop())

	a := &Appointment{ID: uuid.New(), SpecialistID: sid}
	got, err := r.ResolveSpecialist(context.Background(), a, nil)
	if err != nil {
		t.Fatalf("ResolveSpecialist: %v", err)
	}
	if got != want {
		t.Error("expected specialist primary key hit")
	}

	// Unknown specialist resolves to absence.
	b := &Appointment{ID: uuid.New(), SpecialistID: uuid.New()}
	got, err = r.ResolveSpecialist(context.Background(), b, nil)
	if err != nil || got != nil {
		t.Errorf("all-miss = (%v, %v), want (nil, nil)", got, err)
	}
}

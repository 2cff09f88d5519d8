package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusNoShow, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusNoShow, StatusConfirmed, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusConfirmed} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range []Type{TypeConsultation, TypeProcedure, TypeFollowUp, TypeCheckup, TypeManual} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("walkin").Valid() {
		t.Error("unknown type should not be valid")
	}
}

func TestSchedulingFieldsChanged(t *testing.T) {
	pid := uuid.New()
	base := &Appointment{
		PatientID:    &pid,
		SpecialistID: uuid.New(),
		VisitDate:    time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		VisitTime:    "10:00:00",
	}

	same := *base
	if same.SchedulingFieldsChanged(base) {
		t.Error("identical scheduling fields should not report a change")
	}

	notes := "edited"
	withNotes := *base
	withNotes.Notes = &notes
	withNotes.Status = StatusConfirmed
	if withNotes.SchedulingFieldsChanged(base) {
		t.Error("notes and status are not scheduling fields")
	}

	newDate := *base
	newDate.VisitDate = base.VisitDate.AddDate(0, 0, 1)
	if !newDate.SchedulingFieldsChanged(base) {
		t.Error("date change should be detected")
	}

	newTime := *base
	newTime.VisitTime = "11:00:00"
	if !newTime.SchedulingFieldsChanged(base) {
		t.Error("time change should be detected")
	}

	anon := *base
	anon.PatientID = nil
	if !anon.SchedulingFieldsChanged(base) {
		t.Error("detaching the patient should be detected")
	}

	otherPid := uuid.New()
	swapped := *base
	swapped.PatientID = &otherPid
	if !swapped.SchedulingFieldsChanged(base) {
		t.Error("patient change should be detected")
	}
}

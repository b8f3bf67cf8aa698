package appointment

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	store map[uuid.UUID][]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID][]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	m.store[a.PatientID] = append(m.store[a.PatientID], a)
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return m.store[patientID], nil
}

func TestService_Book(t *testing.T) {
	svc := NewService(newMockRepo())
	patientID := uuid.New()

	a := &Appointment{
		PatientID:    patientID,
		Provider:     "Dr. Martinez",
		Clinic:       "Northwest Primary Care Associates",
		Date:         "2026-09-08",
		Time:         "10:30 AM",
		Confirmation: "NPC-8547",
	}
	if err := svc.Book(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if a.ID == uuid.Nil {
		t.Error("expected assigned id")
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected created_at set")
	}

	list, err := svc.List(context.Background(), patientID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(list))
	}
}

func TestService_BookValidation(t *testing.T) {
	svc := NewService(newMockRepo())

	cases := []*Appointment{
		{Provider: "Dr. Martinez", Date: "2026-09-08", Time: "10:30 AM"},
		{PatientID: uuid.New(), Date: "2026-09-08", Time: "10:30 AM"},
		{PatientID: uuid.New(), Provider: "Dr. Martinez"},
	}
	for i, a := range cases {
		if err := svc.Book(context.Background(), a); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

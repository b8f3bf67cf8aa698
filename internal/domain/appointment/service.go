package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service provides appointment booking and listing.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Book validates and stores an appointment.
func (s *Service) Book(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient id is required")
	}
	if a.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if a.Date == "" || a.Time == "" {
		return fmt.Errorf("date and time are required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) List(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service provides business logic for the patient domain.
type Service struct {
	patients Repository
}

// NewService creates a new patient domain service.
func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

var validGenders = map[string]bool{
	"Male": true, "Female": true, "Other": true, "Unknown": true,
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.ApplyDefaults()
	if p.Age < 0 || p.Age > 150 {
		return fmt.Errorf("invalid age: %d", p.Age)
	}
	if !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	if mrn == "" {
		return nil, fmt.Errorf("mrn is required")
	}
	return s.patients.GetByMRN(ctx, mrn)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if p.Gender != "" && !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

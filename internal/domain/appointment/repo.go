package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists appointments.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
}

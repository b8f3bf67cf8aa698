package calling

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists clinics and completed calls.
type Repository interface {
	ListClinics(ctx context.Context) ([]Clinic, error)
	GetClinic(ctx context.Context, id string) (*Clinic, error)
	RecordClinicCall(ctx context.Context, clinicID string, booked bool) error

	SaveCall(ctx context.Context, call *Call) error
	GetCall(ctx context.Context, id uuid.UUID) (*Call, error)
	ListCallsByPatient(ctx context.Context, patientID uuid.UUID) ([]Call, error)
}

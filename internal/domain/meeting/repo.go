package meeting

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists completed meeting records.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error)
}

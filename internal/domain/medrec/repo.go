package medrec

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists medication reconciliation analyses.
type Repository interface {
	Create(ctx context.Context, a *Analysis) error
	Latest(ctx context.Context, patientID uuid.UUID) (*Analysis, error)
}

package instructions

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists generated discharge instructions.
type Repository interface {
	Create(ctx context.Context, ins *Instructions) error
	LatestByLanguage(ctx context.Context, patientID uuid.UUID, language string) (*Instructions, error)
	List(ctx context.Context, patientID uuid.UUID) ([]*Instructions, error)
}

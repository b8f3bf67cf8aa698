package chat

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists chat messages.
type Repository interface {
	Create(ctx context.Context, msg *Message) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Message, error)
}

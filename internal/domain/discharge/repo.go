package discharge

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists discharge plans and workflow tasks.
type Repository interface {
	CreatePlan(ctx context.Context, p *Plan) error
	LatestPlan(ctx context.Context, patientID uuid.UUID) (*Plan, error)

	ListTasks(ctx context.Context, patientID uuid.UUID) ([]Task, error)
	SaveTasks(ctx context.Context, tasks []Task) error
	UpdateTaskStatus(ctx context.Context, patientID uuid.UUID, taskID, status string) (*Task, error)
}

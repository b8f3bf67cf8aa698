package emr

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists EMR documents, the merged parsed record, and
// generated visit summaries.
type Repository interface {
	CreateDocument(ctx context.Context, doc *Document) error
	ListDocuments(ctx context.Context, patientID uuid.UUID) ([]*Document, error)

	UpsertRecord(ctx context.Context, rec *ParsedRecord) error
	GetRecord(ctx context.Context, patientID uuid.UUID) (*ParsedRecord, error)

	CreateSummary(ctx context.Context, sum *VisitSummary) error
	LatestSummary(ctx context.Context, patientID uuid.UUID) (*VisitSummary, error)
}

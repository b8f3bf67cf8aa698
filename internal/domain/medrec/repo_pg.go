package medrec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careexit/careexit/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

type analysisPayload struct {
	Interactions     []Finding `json:"interactions"`
	Duplicates       []Finding `json:"duplicates"`
	ClinicalConcerns []Finding `json:"clinical_concerns"`
	Summary          string    `json:"summary"`
}

func (r *repoPG) Create(ctx context.Context, a *Analysis) error {
	a.ID = uuid.New()
	payload, err := json.Marshal(analysisPayload{
		Interactions:     a.Interactions,
		Duplicates:       a.Duplicates,
		ClinicalConcerns: a.ClinicalConcerns,
		Summary:          a.Summary,
	})
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO medrec_analyses (id, patient_id, data, source)
		VALUES ($1,$2,$3,$4)`,
		a.ID, a.PatientID, payload, a.Source)
	return err
}

func (r *repoPG) Latest(ctx context.Context, patientID uuid.UUID) (*Analysis, error) {
	var a Analysis
	var payload []byte
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, data, source, created_at FROM medrec_analyses
		WHERE patient_id = $1 ORDER BY created_at DESC LIMIT 1`,
		patientID).Scan(&a.ID, &a.PatientID, &payload, &a.Source, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var body analysisPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	a.Interactions = body.Interactions
	a.Duplicates = body.Duplicates
	a.ClinicalConcerns = body.ClinicalConcerns
	a.Summary = body.Summary
	return &a, nil
}

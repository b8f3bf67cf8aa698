package meeting

import (
	"context"
	"encoding/json"
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

type recordPayload struct {
	Plan             Plan              `json:"plan"`
	Turns            []Turn            `json:"turns"`
	ExtractedAnswers map[string]string `json:"extracted_answers"`
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	payload, err := json.Marshal(recordPayload{
		Plan:             rec.Plan,
		Turns:            rec.Turns,
		ExtractedAnswers: rec.ExtractedAnswers,
	})
	if err != nil {
		return fmt.Errorf("marshal meeting record: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO meetings (id, patient_id, data, summary, source, started_at, ended_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.PatientID, payload, rec.Summary, rec.Source, rec.StartedAt, rec.EndedAt)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, data, summary, source, started_at, ended_at
		FROM meetings WHERE patient_id = $1 ORDER BY ended_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.PatientID, &payload, &rec.Summary,
			&rec.Source, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, err
		}
		var body recordPayload
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("unmarshal meeting record: %w", err)
		}
		rec.Plan = body.Plan
		rec.Turns = body.Turns
		rec.ExtractedAnswers = body.ExtractedAnswers
		records = append(records, &rec)
	}
	return records, rows.Err()
}

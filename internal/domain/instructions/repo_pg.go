package instructions

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

const instructionCols = `id, patient_id, literacy_level, language, content, sections, source, created_at`

func (r *repoPG) scanInstructions(row pgx.Row) (*Instructions, error) {
	var ins Instructions
	var sections []byte
	err := row.Scan(&ins.ID, &ins.PatientID, &ins.LiteracyLevel, &ins.Language,
		&ins.Content, &sections, &ins.Source, &ins.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sections, &ins.Sections); err != nil {
		return nil, fmt.Errorf("unmarshal sections: %w", err)
	}
	return &ins, nil
}

func (r *repoPG) Create(ctx context.Context, ins *Instructions) error {
	ins.ID = uuid.New()
	sections, err := json.Marshal(ins.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO discharge_instructions (id, patient_id, literacy_level, language, content, sections, source)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ins.ID, ins.PatientID, ins.LiteracyLevel, ins.Language, ins.Content, sections, ins.Source)
	return err
}

func (r *repoPG) LatestByLanguage(ctx context.Context, patientID uuid.UUID, language string) (*Instructions, error) {
	return r.scanInstructions(r.conn(ctx).QueryRow(ctx, `
		SELECT `+instructionCols+` FROM discharge_instructions
		WHERE patient_id = $1 AND language = $2
		ORDER BY created_at DESC LIMIT 1`, patientID, language))
}

func (r *repoPG) List(ctx context.Context, patientID uuid.UUID) ([]*Instructions, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+instructionCols+` FROM discharge_instructions
		WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Instructions
	for rows.Next() {
		ins, err := r.scanInstructions(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, ins)
	}
	return list, rows.Err()
}

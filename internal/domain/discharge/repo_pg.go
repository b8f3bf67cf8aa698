package discharge

import (
	"context"
	"encoding/json"
	"errors"

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

// planPayload holds the list fields as a JSONB document.
type planPayload struct {
	RiskFactors        []string `json:"risk_factors"`
	Interventions      []string `json:"interventions"`
	PrimaryDiagnosis   string   `json:"primary_diagnosis"`
	SecondaryDiagnoses []string `json:"secondary_diagnoses"`
	HomeHealthOrders   []string `json:"home_health_orders"`
	EquipmentNeeds     []string `json:"equipment_needs"`
}

func (r *repoPG) CreatePlan(ctx context.Context, p *Plan) error {
	p.ID = uuid.New()
	data, err := json.Marshal(planPayload{
		RiskFactors:        p.RiskFactors,
		Interventions:      p.Interventions,
		PrimaryDiagnosis:   p.PrimaryDiagnosis,
		SecondaryDiagnoses: p.SecondaryDiagnoses,
		HomeHealthOrders:   p.HomeHealthOrders,
		EquipmentNeeds:     p.EquipmentNeeds,
	})
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO discharge_plans (id, patient_id, complexity_score, disposition, data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.PatientID, p.ComplexityScore, p.Disposition, data, p.CreatedAt)
	return err
}

func (r *repoPG) LatestPlan(ctx context.Context, patientID uuid.UUID) (*Plan, error) {
	var (
		p    Plan
		data []byte
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, complexity_score, disposition, data, created_at
		FROM discharge_plans WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT 1`, patientID).
		Scan(&p.ID, &p.PatientID, &p.ComplexityScore, &p.Disposition, &data, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var payload planPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	p.RiskFactors = payload.RiskFactors
	p.Interventions = payload.Interventions
	p.PrimaryDiagnosis = payload.PrimaryDiagnosis
	p.SecondaryDiagnoses = payload.SecondaryDiagnoses
	p.HomeHealthOrders = payload.HomeHealthOrders
	p.EquipmentNeeds = payload.EquipmentNeeds
	return &p, nil
}

func (r *repoPG) ListTasks(ctx context.Context, patientID uuid.UUID) ([]Task, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, type, description, assigned_to, priority, status, due_at
		FROM discharge_tasks WHERE patient_id = $1 ORDER BY due_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.PatientID, &t.Type, &t.Description,
			&t.AssignedTo, &t.Priority, &t.Status, &t.DueAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *repoPG) SaveTasks(ctx context.Context, tasks []Task) error {
	for i := range tasks {
		t := &tasks[i]
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO discharge_tasks (id, patient_id, type, description, assigned_to, priority, status, due_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id, patient_id) DO UPDATE SET status = EXCLUDED.status`,
			t.ID, t.PatientID, t.Type, t.Description, t.AssignedTo, t.Priority, t.Status, t.DueAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) UpdateTaskStatus(ctx context.Context, patientID uuid.UUID, taskID, status string) (*Task, error) {
	var t Task
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE discharge_tasks SET status = $3
		WHERE patient_id = $1 AND id = $2
		RETURNING id, patient_id, type, description, assigned_to, priority, status, due_at`,
		patientID, taskID, status).
		Scan(&t.ID, &t.PatientID, &t.Type, &t.Description,
			&t.AssignedTo, &t.Priority, &t.Status, &t.DueAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

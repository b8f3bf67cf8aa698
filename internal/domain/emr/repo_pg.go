package emr

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

func (r *repoPG) CreateDocument(ctx context.Context, doc *Document) error {
	doc.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO emr_documents (id, patient_id, kind, filename, content_type, format, text)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		doc.ID, doc.PatientID, doc.Kind, doc.Filename, doc.ContentType, doc.Format, doc.Text)
	return err
}

func (r *repoPG) ListDocuments(ctx context.Context, patientID uuid.UUID) ([]*Document, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, kind, filename, content_type, format, text, created_at
		FROM emr_documents WHERE patient_id = $1 ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.PatientID, &d.Kind, &d.Filename,
			&d.ContentType, &d.Format, &d.Text, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// recordPayload is the JSONB body of a parsed_records row. Identity columns
// stay relational; the clinical lists live in the document.
type recordPayload struct {
	Demographics Demographics `json:"demographics"`
	Medications  []Medication `json:"medications"`
	Problems     []Problem    `json:"problems"`
	Allergies    []Allergy    `json:"allergies"`
	Vitals       []Vital      `json:"vitals"`
	Labs         []Lab        `json:"labs"`
	Notes        []Note       `json:"notes"`
	Sources      []string     `json:"sources"`
}

func (r *repoPG) UpsertRecord(ctx context.Context, rec *ParsedRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	payload, err := json.Marshal(recordPayload{
		Demographics: rec.Demographics,
		Medications:  rec.Medications,
		Problems:     rec.Problems,
		Allergies:    rec.Allergies,
		Vitals:       rec.Vitals,
		Labs:         rec.Labs,
		Notes:        rec.Notes,
		Sources:      rec.Sources,
	})
	if err != nil {
		return fmt.Errorf("marshal parsed record: %w", err)
	}

	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO parsed_records (id, patient_id, data, parsed_at)
		VALUES ($1,$2,$3,NOW())
		ON CONFLICT (patient_id) DO UPDATE SET data = EXCLUDED.data, parsed_at = NOW()`,
		rec.ID, rec.PatientID, payload)
	return err
}

func (r *repoPG) GetRecord(ctx context.Context, patientID uuid.UUID) (*ParsedRecord, error) {
	var rec ParsedRecord
	var payload []byte
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, data, parsed_at FROM parsed_records WHERE patient_id = $1`,
		patientID).Scan(&rec.ID, &rec.PatientID, &payload, &rec.ParsedAt)
	if err != nil {
		return nil, err
	}

	var body recordPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("unmarshal parsed record: %w", err)
	}
	rec.Demographics = body.Demographics
	rec.Medications = body.Medications
	rec.Problems = body.Problems
	rec.Allergies = body.Allergies
	rec.Vitals = body.Vitals
	rec.Labs = body.Labs
	rec.Notes = body.Notes
	rec.Sources = body.Sources
	return &rec, nil
}

type summaryPayload struct {
	ChiefComplaint     string   `json:"chief_complaint"`
	AssessmentAndPlan  string   `json:"assessment_and_plan"`
	KeyFindings        []string `json:"key_findings"`
	DischargeReadiness []string `json:"discharge_readiness"`
	FollowUpItems      []string `json:"follow_up_items"`
	RiskFactors        []string `json:"risk_factors"`
	MedicationChanges  []string `json:"medication_changes"`
}

func (r *repoPG) CreateSummary(ctx context.Context, sum *VisitSummary) error {
	sum.ID = uuid.New()
	payload, err := json.Marshal(summaryPayload{
		ChiefComplaint:     sum.ChiefComplaint,
		AssessmentAndPlan:  sum.AssessmentAndPlan,
		KeyFindings:        sum.KeyFindings,
		DischargeReadiness: sum.DischargeReadiness,
		FollowUpItems:      sum.FollowUpItems,
		RiskFactors:        sum.RiskFactors,
		MedicationChanges:  sum.MedicationChanges,
	})
	if err != nil {
		return fmt.Errorf("marshal visit summary: %w", err)
	}

	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO visit_summaries (id, patient_id, data, source, generated_at)
		VALUES ($1,$2,$3,$4,$5)`,
		sum.ID, sum.PatientID, payload, sum.Source, sum.GeneratedAt)
	return err
}

func (r *repoPG) LatestSummary(ctx context.Context, patientID uuid.UUID) (*VisitSummary, error) {
	var sum VisitSummary
	var payload []byte
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, data, source, generated_at FROM visit_summaries
		WHERE patient_id = $1 ORDER BY generated_at DESC LIMIT 1`,
		patientID).Scan(&sum.ID, &sum.PatientID, &payload, &sum.Source, &sum.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var body summaryPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("unmarshal visit summary: %w", err)
	}
	sum.ChiefComplaint = body.ChiefComplaint
	sum.AssessmentAndPlan = body.AssessmentAndPlan
	sum.KeyFindings = body.KeyFindings
	sum.DischargeReadiness = body.DischargeReadiness
	sum.FollowUpItems = body.FollowUpItems
	sum.RiskFactors = body.RiskFactors
	sum.MedicationChanges = body.MedicationChanges
	return &sum, nil
}

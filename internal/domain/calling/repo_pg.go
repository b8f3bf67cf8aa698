package calling

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

// callPayload holds the transcript and booking details as a JSONB document.
type callPayload struct {
	Transcript  []TranscriptEntry   `json:"transcript"`
	Appointment *AppointmentDetails `json:"appointment,omitempty"`
}

func (r *repoPG) ListClinics(ctx context.Context) ([]Clinic, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, specialty, phone, address, contact_person,
		       avg_wait_days, calls_completed, appointments_booked
		FROM clinics ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Clinic
	for rows.Next() {
		var c Clinic
		if err := rows.Scan(&c.ID, &c.Name, &c.Specialty, &c.Phone, &c.Address,
			&c.ContactPerson, &c.AvgWaitDays, &c.CallsCompleted, &c.AppointmentsBooked); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *repoPG) GetClinic(ctx context.Context, id string) (*Clinic, error) {
	var c Clinic
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, specialty, phone, address, contact_person,
		       avg_wait_days, calls_completed, appointments_booked
		FROM clinics WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Specialty, &c.Phone, &c.Address,
			&c.ContactPerson, &c.AvgWaitDays, &c.CallsCompleted, &c.AppointmentsBooked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) RecordClinicCall(ctx context.Context, clinicID string, booked bool) error {
	booked64 := 0
	if booked {
		booked64 = 1
	}
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinics
		SET calls_completed = calls_completed + 1,
		    appointments_booked = appointments_booked + $2
		WHERE id = $1`, clinicID, booked64)
	return err
}

func (r *repoPG) SaveCall(ctx context.Context, call *Call) error {
	data, err := json.Marshal(callPayload{Transcript: call.Transcript, Appointment: call.Appointment})
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO calls (id, patient_id, clinic_id, status, outcome, reason, data, started_at, ended_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			outcome = EXCLUDED.outcome,
			reason = EXCLUDED.reason,
			data = EXCLUDED.data,
			ended_at = EXCLUDED.ended_at`,
		call.ID, call.PatientID, call.ClinicID, call.Status, call.Outcome,
		call.Reason, data, call.StartedAt, call.EndedAt)
	return err
}

func (r *repoPG) GetCall(ctx context.Context, id uuid.UUID) (*Call, error) {
	var (
		c    Call
		data []byte
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, clinic_id, status, outcome, reason, data, started_at, ended_at
		FROM calls WHERE id = $1`, id).
		Scan(&c.ID, &c.PatientID, &c.ClinicID, &c.Status, &c.Outcome,
			&c.Reason, &data, &c.StartedAt, &c.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var payload callPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	c.Transcript = payload.Transcript
	c.Appointment = payload.Appointment
	return &c, nil
}

func (r *repoPG) ListCallsByPatient(ctx context.Context, patientID uuid.UUID) ([]Call, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, clinic_id, status, outcome, reason, data, started_at, ended_at
		FROM calls WHERE patient_id = $1 ORDER BY started_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Call
	for rows.Next() {
		var (
			c    Call
			data []byte
		)
		if err := rows.Scan(&c.ID, &c.PatientID, &c.ClinicID, &c.Status, &c.Outcome,
			&c.Reason, &data, &c.StartedAt, &c.EndedAt); err != nil {
			return nil, err
		}
		var payload callPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		c.Transcript = payload.Transcript
		c.Appointment = payload.Appointment
		list = append(list, c)
	}
	return list, rows.Err()
}

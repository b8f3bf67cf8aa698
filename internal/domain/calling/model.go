package calling

import (
	"time"

	"github.com/google/uuid"
)

// Call statuses in lifecycle order.
const (
	StatusQueued    = "queued"
	StatusCalling   = "calling"
	StatusConnected = "connected"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Call outcomes.
const (
	OutcomeAppointmentScheduled = "appointment_scheduled"
	OutcomeNoAnswer             = "no_answer"
	OutcomeCanceled             = "canceled"
)

// Transcript speakers.
const (
	SpeakerAgent  = "agent"
	SpeakerClinic = "clinic"
	SpeakerSystem = "system"
)

// Clinic is an outpatient clinic the agent can call.
type Clinic struct {
	ID                 string `db:"id" json:"id"`
	Name               string `db:"name" json:"name"`
	Specialty          string `db:"specialty" json:"specialty"`
	Phone              string `db:"phone" json:"phone"`
	Address            string `db:"address" json:"address"`
	ContactPerson      string `db:"contact_person" json:"contact_person"`
	AvgWaitDays        int    `db:"avg_wait_days" json:"avg_wait_days"`
	CallsCompleted     int    `db:"calls_completed" json:"calls_completed"`
	AppointmentsBooked int    `db:"appointments_booked" json:"appointments_booked"`
}

// TranscriptEntry is one line of a call transcript.
type TranscriptEntry struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// AppointmentDetails captures the booking made during a completed call.
type AppointmentDetails struct {
	Confirmation string `json:"confirmation"`
	Provider     string `json:"provider"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Location     string `json:"location"`
}

// Call is one simulated outbound scheduling call.
type Call struct {
	ID          uuid.UUID           `db:"id" json:"id"`
	PatientID   uuid.UUID           `db:"patient_id" json:"patient_id"`
	ClinicID    string              `db:"clinic_id" json:"clinic_id"`
	Status      string              `db:"status" json:"status"`
	Outcome     string              `db:"outcome" json:"outcome,omitempty"`
	Reason      string              `db:"reason" json:"reason,omitempty"`
	Transcript  []TranscriptEntry   `json:"transcript"`
	Appointment *AppointmentDetails `json:"appointment,omitempty"`
	StartedAt   time.Time           `db:"started_at" json:"started_at"`
	EndedAt     *time.Time          `db:"ended_at" json:"ended_at,omitempty"`
}

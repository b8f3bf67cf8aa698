package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is a booked follow-up visit.
type Appointment struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	Provider     string    `db:"provider" json:"provider"`
	Clinic       string    `db:"clinic" json:"clinic"`
	Date         string    `db:"date" json:"date"`
	Time         string    `db:"time" json:"time"`
	Location     string    `db:"location" json:"location"`
	Confirmation string    `db:"confirmation" json:"confirmation"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

package medrec

import (
	"time"

	"github.com/google/uuid"
)

// Finding severities.
const (
	SeverityHigh     = "high"
	SeverityModerate = "moderate"
	SeverityLow      = "low"
)

// Finding is one flagged issue in a medication analysis.
type Finding struct {
	Severity    string   `json:"severity"`
	Medications []string `json:"medications,omitempty"`
	Detail      string   `json:"detail"`
}

// Analysis is one medication reconciliation run for a patient.
type Analysis struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	Interactions     []Finding `json:"interactions"`
	Duplicates       []Finding `json:"duplicates"`
	ClinicalConcerns []Finding `json:"clinical_concerns"`
	Summary          string    `json:"summary"`
	Source           string    `db:"source" json:"source"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

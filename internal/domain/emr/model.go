package emr

import (
	"time"

	"github.com/google/uuid"
)

// Document kinds accepted by the upload endpoint.
const (
	KindEHR     = "ehr"
	KindNotes   = "notes"
	KindSummary = "summary"
)

// Source formats detected during ingestion.
const (
	FormatFHIR = "fhir_json"
	FormatCCDA = "ccda_xml"
	FormatPDF  = "pdf"
	FormatText = "text"
)

// Document is a single uploaded EMR file after text extraction.
type Document struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	Kind        string    `db:"kind" json:"kind"`
	Filename    string    `db:"filename" json:"filename"`
	ContentType string    `db:"content_type" json:"content_type"`
	Format      string    `db:"format" json:"format"`
	Text        string    `db:"text" json:"text"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Demographics extracted from any of the supported formats.
type Demographics struct {
	Name      string `json:"name"`
	MRN       string `json:"mrn"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birth_date,omitempty"`
	Attending string `json:"attending,omitempty"`
}

// Medication is one entry in the reconciled medication list.
type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Route        string `json:"route"`
	Instructions string `json:"instructions,omitempty"`
	Status       string `json:"status,omitempty"`
}

// Problem is an active condition or diagnosis.
type Problem struct {
	Code    string `json:"code,omitempty"`
	Display string `json:"display"`
	Status  string `json:"status,omitempty"`
}

// Allergy is a documented allergy or intolerance.
type Allergy struct {
	Substance string `json:"substance"`
	Status    string `json:"status,omitempty"`
}

// Vital is a single vital-sign measurement.
type Vital struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
	Date  string `json:"date,omitempty"`
}

// Lab is a single laboratory result.
type Lab struct {
	TestName       string `json:"test_name"`
	Value          string `json:"value"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"reference_range,omitempty"`
	Date           string `json:"date,omitempty"`
}

// Note is a clinical note carried through for the generation prompts.
type Note struct {
	Type    string `json:"type"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

// ParsedRecord is the merged clinical picture for one patient, built from
// every uploaded document plus any Epic import.
type ParsedRecord struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	PatientID    uuid.UUID    `db:"patient_id" json:"patient_id"`
	Demographics Demographics `json:"demographics"`
	Medications  []Medication `json:"medications"`
	Problems     []Problem    `json:"problems"`
	Allergies    []Allergy    `json:"allergies"`
	Vitals       []Vital      `json:"vitals"`
	Labs         []Lab        `json:"labs"`
	Notes        []Note       `json:"notes"`
	Sources      []string     `json:"sources"`
	ParsedAt     time.Time    `db:"parsed_at" json:"parsed_at"`
}

// Merge folds another parsed record into r. Demographics win on a
// first-non-default basis; list fields append.
func (r *ParsedRecord) Merge(other *ParsedRecord) {
	if other == nil {
		return
	}
	d := &r.Demographics
	od := other.Demographics
	if d.Name == "" && od.Name != "" {
		d.Name = od.Name
	}
	if d.MRN == "" && od.MRN != "" {
		d.MRN = od.MRN
	}
	if d.Age == 0 && od.Age != 0 {
		d.Age = od.Age
	}
	if d.Gender == "" && od.Gender != "" {
		d.Gender = od.Gender
	}
	if d.BirthDate == "" && od.BirthDate != "" {
		d.BirthDate = od.BirthDate
	}
	if d.Attending == "" && od.Attending != "" {
		d.Attending = od.Attending
	}
	r.Medications = append(r.Medications, other.Medications...)
	r.Problems = append(r.Problems, other.Problems...)
	r.Allergies = append(r.Allergies, other.Allergies...)
	r.Vitals = append(r.Vitals, other.Vitals...)
	r.Labs = append(r.Labs, other.Labs...)
	r.Notes = append(r.Notes, other.Notes...)
	r.Sources = append(r.Sources, other.Sources...)
}

// Summary generation sources.
const (
	SourceLLM      = "llm"
	SourceTemplate = "template"
)

// VisitSummary is the discharge-oriented summary of the current admission.
// Each list holds at most five bullets.
type VisitSummary struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	PatientID          uuid.UUID `db:"patient_id" json:"patient_id"`
	ChiefComplaint     string    `json:"chief_complaint"`
	AssessmentAndPlan  string    `json:"assessment_and_plan"`
	KeyFindings        []string  `json:"key_findings"`
	DischargeReadiness []string  `json:"discharge_readiness"`
	FollowUpItems      []string  `json:"follow_up_items"`
	RiskFactors        []string  `json:"risk_factors"`
	MedicationChanges  []string  `json:"medication_changes"`
	Source             string    `db:"source" json:"source"`
	GeneratedAt        time.Time `db:"generated_at" json:"generated_at"`
}

package discharge

import (
	"time"

	"github.com/google/uuid"
)

// Discharge dispositions, least to most supported.
const (
	DispositionHome       = "home"
	DispositionHomeHealth = "home_health"
	DispositionSNF        = "skilled_nursing_facility"
)

// Workflow task statuses.
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskDone       = "done"
)

// Plan is the computed discharge plan for a patient.
type Plan struct {
	ID                 uuid.UUID `json:"id"`
	PatientID          uuid.UUID `json:"patient_id"`
	ComplexityScore    int       `json:"complexity_score"`
	Disposition        string    `json:"disposition"`
	RiskFactors        []string  `json:"risk_factors"`
	Interventions      []string  `json:"interventions"`
	PrimaryDiagnosis   string    `json:"primary_diagnosis"`
	SecondaryDiagnoses []string  `json:"secondary_diagnoses"`
	HomeHealthOrders   []string  `json:"home_health_orders"`
	EquipmentNeeds     []string  `json:"equipment_needs"`
	CreatedAt          time.Time `json:"created_at"`
}

// Readiness is the pre-discharge checklist derived from the parsed
// record and the artifacts other services have produced.
type Readiness struct {
	PatientID            uuid.UUID `json:"patient_id"`
	SummaryGenerated     bool      `json:"summary_generated"`
	InstructionsPrepared bool      `json:"instructions_prepared"`
	MedicationReconciled bool      `json:"medication_reconciled"`
	FollowUpScheduled    bool      `json:"follow_up_scheduled"`
	OverallReady         bool      `json:"overall_ready"`
	Barriers             []string  `json:"barriers"`
}

// Task is one step in the discharge workflow.
type Task struct {
	ID          string    `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	AssignedTo  string    `json:"assigned_to"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	DueAt       time.Time `json:"due_at"`
}

// defaultTasks seeds the workflow the first time it is requested.
func defaultTasks(patientID uuid.UUID, now time.Time) []Task {
	return []Task{
		{
			ID:          "task_1",
			PatientID:   patientID,
			Type:        "medication_reconciliation",
			Description: "Complete medication reconciliation with pharmacist",
			AssignedTo:  "pharmacy_team",
			Priority:    "high",
			Status:      TaskPending,
			DueAt:       now.Add(4 * time.Hour),
		},
		{
			ID:          "task_2",
			PatientID:   patientID,
			Type:        "patient_education",
			Description: "Review discharge instructions with the patient",
			AssignedTo:  "nursing_team",
			Priority:    "medium",
			Status:      TaskPending,
			DueAt:       now.Add(8 * time.Hour),
		},
		{
			ID:          "task_3",
			PatientID:   patientID,
			Type:        "followup_scheduling",
			Description: "Schedule follow-up with primary care physician",
			AssignedTo:  "case_manager",
			Priority:    "medium",
			Status:      TaskPending,
			DueAt:       now.Add(12 * time.Hour),
		},
		{
			ID:          "task_4",
			PatientID:   patientID,
			Type:        "transportation",
			Description: "Confirm transportation home",
			AssignedTo:  "case_manager",
			Priority:    "low",
			Status:      TaskPending,
			DueAt:       now.Add(24 * time.Hour),
		},
	}
}

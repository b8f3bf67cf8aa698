package discharge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careexit/careexit/internal/domain/appointment"
	"github.com/careexit/careexit/internal/domain/emr"
	"github.com/careexit/careexit/internal/domain/instructions"
	"github.com/careexit/careexit/internal/domain/medrec"
)

// RecordSource loads the merged parsed record for a patient.
type RecordSource interface {
	GetRecord(ctx context.Context, patientID uuid.UUID) (*emr.ParsedRecord, error)
	LatestSummary(ctx context.Context, patientID uuid.UUID) (*emr.VisitSummary, error)
}

// InstructionsSource reports generated discharge instructions.
type InstructionsSource interface {
	List(ctx context.Context, patientID uuid.UUID) ([]*instructions.Instructions, error)
}

// MedrecSource reports completed medication reconciliation analyses.
type MedrecSource interface {
	Latest(ctx context.Context, patientID uuid.UUID) (*medrec.Analysis, error)
}

// AppointmentSource reports booked follow-up appointments.
type AppointmentSource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*appointment.Appointment, error)
}

// Service computes discharge plans, readiness, and the workflow.
type Service struct {
	repo         Repository
	records      RecordSource
	instructions InstructionsSource
	medrec       MedrecSource
	appointments AppointmentSource
	logger       zerolog.Logger
}

func NewService(repo Repository, records RecordSource, ins InstructionsSource,
	mr MedrecSource, appts AppointmentSource, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		records:      records,
		instructions: ins,
		medrec:       mr,
		appointments: appts,
		logger:       logger.With().Str("component", "discharge").Logger(),
	}
}

// BuildPlan computes a discharge plan from the parsed record and
// persists it.
func (s *Service) BuildPlan(ctx context.Context, patientID uuid.UUID) (*Plan, error) {
	rec, err := s.records.GetRecord(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("no parsed record for patient; upload documents first")
	}

	plan := computePlan(patientID, rec)
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}
	s.logger.Info().
		Str("patient_id", patientID.String()).
		Int("complexity", plan.ComplexityScore).
		Str("disposition", plan.Disposition).
		Msg("discharge plan created")
	return plan, nil
}

func (s *Service) LatestPlan(ctx context.Context, patientID uuid.UUID) (*Plan, error) {
	return s.repo.LatestPlan(ctx, patientID)
}

func computePlan(patientID uuid.UUID, rec *emr.ParsedRecord) *Plan {
	var riskFactors []string
	if len(rec.Medications) >= 5 {
		riskFactors = append(riskFactors, "Polypharmacy (5+ medications)")
	}
	if len(rec.Problems) >= 3 {
		riskFactors = append(riskFactors, "Multiple comorbidities")
	}
	if rec.Demographics.Age > 75 {
		riskFactors = append(riskFactors, "Advanced age (>75)")
	}
	if hasCondition(rec, "diabetes") {
		riskFactors = append(riskFactors, "Diabetes management")
	}
	if hasCondition(rec, "copd") || hasCondition(rec, "asthma") {
		riskFactors = append(riskFactors, "Respiratory condition")
	}

	score := min(len(riskFactors)*15, 100)

	disposition := DispositionHome
	switch {
	case score >= 80:
		disposition = DispositionSNF
	case score >= 60:
		disposition = DispositionHomeHealth
	}

	var interventions []string
	switch {
	case score > 70:
		interventions = []string{
			"Schedule early follow-up within 48 hours",
			"Consider home health services",
			"Medication reconciliation with pharmacist",
		}
	case score > 40:
		interventions = []string{
			"Schedule follow-up within 7 days",
			"Patient education reinforcement",
		}
	default:
		interventions = []string{
			"Standard follow-up within 1-2 weeks",
		}
	}

	var homeHealth []string
	if score >= 60 {
		homeHealth = append(homeHealth, "Skilled nursing visits")
	}
	if len(rec.Medications) >= 5 {
		homeHealth = append(homeHealth, "Medication management")
	}

	var equipment []string
	if hasCondition(rec, "copd") {
		equipment = append(equipment, "Oxygen concentrator")
	}
	if hasCondition(rec, "diabetes") {
		equipment = append(equipment, "Blood glucose monitor")
	}

	primary := "Unknown"
	var secondary []string
	if len(rec.Problems) > 0 {
		primary = rec.Problems[0].Display
		for _, p := range rec.Problems[1:] {
			secondary = append(secondary, p.Display)
		}
	}

	return &Plan{
		PatientID:          patientID,
		ComplexityScore:    score,
		Disposition:        disposition,
		RiskFactors:        riskFactors,
		Interventions:      interventions,
		PrimaryDiagnosis:   primary,
		SecondaryDiagnoses: secondary,
		HomeHealthOrders:   homeHealth,
		EquipmentNeeds:     equipment,
		CreatedAt:          time.Now().UTC(),
	}
}

func hasCondition(rec *emr.ParsedRecord, term string) bool {
	for _, p := range rec.Problems {
		if strings.Contains(strings.ToLower(p.Display), term) {
			return true
		}
	}
	return false
}

// Readiness derives the checklist from what the other services have
// produced so far.
func (s *Service) Readiness(ctx context.Context, patientID uuid.UUID) (*Readiness, error) {
	r := &Readiness{PatientID: patientID}

	sum, err := s.records.LatestSummary(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("check visit summary: %w", err)
	}
	r.SummaryGenerated = sum != nil

	ins, err := s.instructions.List(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("check instructions: %w", err)
	}
	r.InstructionsPrepared = len(ins) > 0

	analysis, err := s.medrec.Latest(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("check medication reconciliation: %w", err)
	}
	r.MedicationReconciled = analysis != nil

	appts, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("check appointments: %w", err)
	}
	r.FollowUpScheduled = len(appts) > 0

	if !r.SummaryGenerated {
		r.Barriers = append(r.Barriers, "Visit summary not generated")
	}
	if !r.InstructionsPrepared {
		r.Barriers = append(r.Barriers, "Discharge instructions not prepared")
	}
	if !r.MedicationReconciled {
		r.Barriers = append(r.Barriers, "Medication reconciliation pending")
	}
	if !r.FollowUpScheduled {
		r.Barriers = append(r.Barriers, "Follow-up appointment not scheduled")
	}
	r.OverallReady = len(r.Barriers) == 0
	return r, nil
}

// Workflow returns the patient's task list, seeding the default tasks
// on first access.
func (s *Service) Workflow(ctx context.Context, patientID uuid.UUID) ([]Task, error) {
	tasks, err := s.repo.ListTasks(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(tasks) > 0 {
		return tasks, nil
	}
	tasks = defaultTasks(patientID, time.Now().UTC())
	if err := s.repo.SaveTasks(ctx, tasks); err != nil {
		return nil, fmt.Errorf("seed workflow: %w", err)
	}
	return tasks, nil
}

var validTaskStatus = map[string]bool{
	TaskPending:    true,
	TaskInProgress: true,
	TaskDone:       true,
}

func (s *Service) SetTaskStatus(ctx context.Context, patientID uuid.UUID, taskID, status string) (*Task, error) {
	if !validTaskStatus[status] {
		return nil, fmt.Errorf("invalid task status %q", status)
	}
	// Seed the workflow if the task list was never requested.
	if _, err := s.Workflow(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.UpdateTaskStatus(ctx, patientID, taskID, status)
}

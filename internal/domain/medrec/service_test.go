package medrec

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careexit/careexit/internal/domain/emr"
	"github.com/careexit/careexit/internal/platform/llm"
)

// =========== Mocks ===========

type mockRepo struct {
	store map[uuid.UUID][]*Analysis
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID][]*Analysis)}
}

func (m *mockRepo) Create(_ context.Context, a *Analysis) error {
	a.ID = uuid.New()
	m.store[a.PatientID] = append(m.store[a.PatientID], a)
	return nil
}

func (m *mockRepo) Latest(_ context.Context, patientID uuid.UUID) (*Analysis, error) {
	list := m.store[patientID]
	if len(list) == 0 {
		return nil, nil
	}
	return list[len(list)-1], nil
}

type stubRecords struct {
	rec *emr.ParsedRecord
	err error
}

func (s *stubRecords) GetRecord(_ context.Context, _ uuid.UUID) (*emr.ParsedRecord, error) {
	return s.rec, s.err
}

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Generate(_ context.Context, _ llm.Request) (string, error) {
	return s.response, s.err
}

func recordWith(meds ...emr.Medication) *emr.ParsedRecord {
	return &emr.ParsedRecord{Medications: meds}
}

// =========== Tests ===========

func TestService_RuleAnalysisFlagsDuplicates(t *testing.T) {
	rec := recordWith(
		emr.Medication{Name: "Metformin", Dosage: "500 mg"},
		emr.Medication{Name: "metformin", Dosage: "850 mg"},
		emr.Medication{Name: "Lisinopril", Dosage: "10 mg"},
	)
	svc := NewService(newMockRepo(), &stubRecords{rec: rec}, nil, zerolog.Nop())

	a, err := svc.Analyze(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if a.Source != emr.SourceTemplate {
		t.Errorf("source = %q", a.Source)
	}
	if len(a.Duplicates) != 1 {
		t.Fatalf("duplicates = %+v", a.Duplicates)
	}
	if len(a.Duplicates[0].Medications) != 2 {
		t.Errorf("duplicate medications = %v", a.Duplicates[0].Medications)
	}
	if !strings.Contains(a.Summary, "issues flagged") {
		t.Errorf("summary = %q", a.Summary)
	}
}

func TestService_RuleAnalysisKnownInteraction(t *testing.T) {
	rec := recordWith(
		emr.Medication{Name: "Warfarin"},
		emr.Medication{Name: "Aspirin"},
	)
	svc := NewService(newMockRepo(), &stubRecords{rec: rec}, nil, zerolog.Nop())

	a, err := svc.Analyze(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Interactions) != 1 {
		t.Fatalf("interactions = %+v", a.Interactions)
	}
	if a.Interactions[0].Severity != SeverityHigh {
		t.Errorf("severity = %q", a.Interactions[0].Severity)
	}
}

func TestService_RuleAnalysisPolypharmacy(t *testing.T) {
	meds := make([]emr.Medication, 6)
	for i := range meds {
		meds[i] = emr.Medication{Name: fmt.Sprintf("Drug%d", i)}
	}
	svc := NewService(newMockRepo(), &stubRecords{rec: recordWith(meds...)}, nil, zerolog.Nop())

	a, err := svc.Analyze(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range a.ClinicalConcerns {
		if strings.Contains(c.Detail, "Polypharmacy") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected polypharmacy concern: %+v", a.ClinicalConcerns)
	}
}

func TestService_CleanListNoIssues(t *testing.T) {
	svc := NewService(newMockRepo(), &stubRecords{rec: recordWith(emr.Medication{Name: "Lisinopril"})}, nil, zerolog.Nop())

	a, err := svc.Analyze(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Interactions) != 0 || len(a.Duplicates) != 0 {
		t.Errorf("expected clean analysis: %+v", a)
	}
	if !strings.Contains(a.Summary, "No interactions") {
		t.Errorf("summary = %q", a.Summary)
	}
}

func TestService_AnalyzeRequiresMedications(t *testing.T) {
	svc := NewService(newMockRepo(), &stubRecords{rec: recordWith()}, nil, zerolog.Nop())
	if _, err := svc.Analyze(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for empty medication list")
	}
}

func TestService_LLMJSONResponse(t *testing.T) {
	client := &stubLLM{response: `{
		"interactions": [{"severity": "high", "medications": ["Warfarin", "Aspirin"], "detail": "Bleeding risk"}],
		"duplicates": [],
		"clinical_concerns": [],
		"summary": "One high-severity interaction identified."
	}`}
	rec := recordWith(emr.Medication{Name: "Warfarin"}, emr.Medication{Name: "Aspirin"})
	svc := NewService(newMockRepo(), &stubRecords{rec: rec}, client, zerolog.Nop())

	a, err := svc.Analyze(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if a.Source != emr.SourceLLM {
		t.Errorf("source = %q", a.Source)
	}
	if len(a.Interactions) != 1 || a.Interactions[0].Detail != "Bleeding risk" {
		t.Errorf("interactions = %+v", a.Interactions)
	}
}

func TestParseAnalysisLines(t *testing.T) {
	resp := `Potential Interactions:
- Warfarin with aspirin increases bleeding risk

Duplicate Therapies:
- Two statins listed

Clinical Concerns:
- Renal dosing check needed
`
	a := parseAnalysisLines(resp)
	if a == nil {
		t.Fatal("expected parsed analysis")
	}
	if len(a.Interactions) != 1 || len(a.Duplicates) != 1 || len(a.ClinicalConcerns) != 1 {
		t.Errorf("analysis = %+v", a)
	}
	if a.Interactions[0].Severity != SeverityModerate {
		t.Errorf("default severity = %q", a.Interactions[0].Severity)
	}
}

func TestService_LLMFailureFallsBackToRules(t *testing.T) {
	rec := recordWith(emr.Medication{Name: "Lisinopril"})
	svc := NewService(newMockRepo(), &stubRecords{rec: rec}, &stubLLM{err: fmt.Errorf("timeout")}, zerolog.Nop())

	a, err := svc.Analyze(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if a.Source != emr.SourceTemplate {
		t.Errorf("source = %q", a.Source)
	}
}

package instructions

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
	store map[uuid.UUID][]*Instructions
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID][]*Instructions)}
}

func (m *mockRepo) Create(_ context.Context, ins *Instructions) error {
	ins.ID = uuid.New()
	m.store[ins.PatientID] = append(m.store[ins.PatientID], ins)
	return nil
}

func (m *mockRepo) LatestByLanguage(_ context.Context, patientID uuid.UUID, language string) (*Instructions, error) {
	list := m.store[patientID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Language == language {
			return list[i], nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) List(_ context.Context, patientID uuid.UUID) ([]*Instructions, error) {
	return m.store[patientID], nil
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

func testRecord() *emr.ParsedRecord {
	return &emr.ParsedRecord{
		Demographics: emr.Demographics{Name: "Robert Chen"},
		Problems:     []emr.Problem{{Display: "COPD"}},
		Medications: []emr.Medication{
			{Name: "Lisinopril", Dosage: "10 mg", Frequency: "daily", Route: "PO"},
		},
	}
}

func newTestService(client llm.Client) (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo, &stubRecords{rec: testRecord()}, client, zerolog.Nop())
	return svc, repo
}

// =========== Tests ===========

func TestService_GenerateTemplate(t *testing.T) {
	svc, _ := newTestService(nil)
	patientID := uuid.New()

	ins, err := svc.Generate(context.Background(), patientID, LiteracyStandard, "en")
	if err != nil {
		t.Fatal(err)
	}
	if ins.Source != emr.SourceTemplate {
		t.Errorf("source = %q", ins.Source)
	}
	if !strings.Contains(ins.Content, "ROBERT CHEN") {
		t.Errorf("content missing patient name: %q", ins.Content)
	}
	if len(ins.Sections["medications"]) != 1 {
		t.Errorf("medication section = %v", ins.Sections["medications"])
	}
	if !strings.Contains(ins.Sections["medications"][0], "Lisinopril 10 mg daily") {
		t.Errorf("medication bullet = %q", ins.Sections["medications"][0])
	}
}

func TestService_LiteracyLevelsChangeDetail(t *testing.T) {
	svc, _ := newTestService(nil)
	patientID := uuid.New()

	simple, err := svc.Generate(context.Background(), patientID, LiteracySimple, "en")
	if err != nil {
		t.Fatal(err)
	}
	detailed, err := svc.Generate(context.Background(), patientID, LiteracyDetailed, "en")
	if err != nil {
		t.Fatal(err)
	}

	simpleMed := simple.Sections["medications"][0]
	detailedMed := detailed.Sections["medications"][0]
	if strings.Contains(simpleMed, "10 mg") {
		t.Errorf("simple bullet should omit dosage: %q", simpleMed)
	}
	if !strings.Contains(detailedMed, "PO route") {
		t.Errorf("detailed bullet should include route: %q", detailedMed)
	}
	if len(detailed.Sections["activity"]) <= len(simple.Sections["activity"]) {
		t.Error("detailed should expand activity guidance")
	}
}

func TestService_GenerateDefaults(t *testing.T) {
	svc, _ := newTestService(nil)
	ins, err := svc.Generate(context.Background(), uuid.New(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if ins.LiteracyLevel != LiteracyStandard {
		t.Errorf("literacy = %q", ins.LiteracyLevel)
	}
	if ins.Language != "en" {
		t.Errorf("language = %q", ins.Language)
	}
}

func TestService_GenerateRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(nil)
	if _, err := svc.Generate(context.Background(), uuid.New(), "college", "en"); err == nil {
		t.Error("expected error for invalid literacy level")
	}
	if _, err := svc.Generate(context.Background(), uuid.New(), LiteracySimple, "fr"); err == nil {
		t.Error("expected error for unsupported language")
	}
}

func TestService_GenerateFromLLM(t *testing.T) {
	client := &stubLLM{response: `{
		"content": "Tome sus medicamentos todos los dias.",
		"sections": {"medications": ["Tome Lisinopril 10 mg cada dia"]}
	}`}
	svc, _ := newTestService(client)

	ins, err := svc.Generate(context.Background(), uuid.New(), LiteracySimple, "es")
	if err != nil {
		t.Fatal(err)
	}
	if ins.Source != emr.SourceLLM {
		t.Errorf("source = %q", ins.Source)
	}
	if !strings.Contains(ins.Content, "medicamentos") {
		t.Errorf("content = %q", ins.Content)
	}
}

func TestService_LatestPerLanguage(t *testing.T) {
	svc, _ := newTestService(nil)
	patientID := uuid.New()

	if _, err := svc.Generate(context.Background(), patientID, LiteracySimple, "en"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Generate(context.Background(), patientID, LiteracySimple, "es"); err != nil {
		t.Fatal(err)
	}

	en, err := svc.Latest(context.Background(), patientID, "en")
	if err != nil {
		t.Fatal(err)
	}
	if en.Language != "en" {
		t.Errorf("language = %q", en.Language)
	}
	if _, err := svc.Latest(context.Background(), patientID, "vi"); err == nil {
		t.Error("expected error for language never generated")
	}
}

func TestLanguageName(t *testing.T) {
	if got := languageName("zh"); got != "Mandarin" {
		t.Errorf("zh = %q", got)
	}
	if got := languageName("Spanish"); got != "Spanish" {
		t.Errorf("Spanish = %q", got)
	}
	if got := languageName("xx"); got != "" {
		t.Errorf("xx = %q", got)
	}
}

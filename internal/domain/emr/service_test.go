package emr

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careexit/careexit/internal/platform/llm"
)

// =========== Mock Repository ===========

type mockRepo struct {
	docs      map[uuid.UUID][]*Document
	records   map[uuid.UUID]*ParsedRecord
	summaries map[uuid.UUID][]*VisitSummary
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		docs:      make(map[uuid.UUID][]*Document),
		records:   make(map[uuid.UUID]*ParsedRecord),
		summaries: make(map[uuid.UUID][]*VisitSummary),
	}
}

func (m *mockRepo) CreateDocument(_ context.Context, doc *Document) error {
	doc.ID = uuid.New()
	m.docs[doc.PatientID] = append(m.docs[doc.PatientID], doc)
	return nil
}

func (m *mockRepo) ListDocuments(_ context.Context, patientID uuid.UUID) ([]*Document, error) {
	return m.docs[patientID], nil
}

func (m *mockRepo) UpsertRecord(_ context.Context, rec *ParsedRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	m.records[rec.PatientID] = rec
	return nil
}

func (m *mockRepo) GetRecord(_ context.Context, patientID uuid.UUID) (*ParsedRecord, error) {
	rec, ok := m.records[patientID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return rec, nil
}

func (m *mockRepo) CreateSummary(_ context.Context, sum *VisitSummary) error {
	sum.ID = uuid.New()
	m.summaries[sum.PatientID] = append(m.summaries[sum.PatientID], sum)
	return nil
}

func (m *mockRepo) LatestSummary(_ context.Context, patientID uuid.UUID) (*VisitSummary, error) {
	sums := m.summaries[patientID]
	if len(sums) == 0 {
		return nil, nil
	}
	return sums[len(sums)-1], nil
}

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Generate(_ context.Context, _ llm.Request) (string, error) {
	return s.response, s.err
}

func newTestService(client llm.Client) (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, client, nil, zerolog.Nop()), repo
}

// =========== Tests ===========

func dataURL(contentType, body string) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString([]byte(body))
}

func TestService_UploadTextFile(t *testing.T) {
	svc, repo := newTestService(nil)
	patientID := uuid.New()

	rec, err := svc.Upload(context.Background(), patientID, []UploadFile{
		{Kind: KindEHR, Filename: "chart.txt", Content: dataURL("text/plain", sampleText)},
	})
	if err != nil {
		t.Fatal(err)
	}

	if rec.Demographics.Name != "Robert Chen" {
		t.Errorf("name = %q", rec.Demographics.Name)
	}
	if len(rec.Medications) != 4 {
		t.Errorf("medications = %d", len(rec.Medications))
	}

	docs := repo.docs[patientID]
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Format != FormatText {
		t.Errorf("format = %q", docs[0].Format)
	}
	if docs[0].ContentType != "text/plain" {
		t.Errorf("content type = %q", docs[0].ContentType)
	}
}

func TestService_UploadMergesMultipleFiles(t *testing.T) {
	svc, _ := newTestService(nil)
	patientID := uuid.New()

	rec, err := svc.Upload(context.Background(), patientID, []UploadFile{
		{Kind: KindEHR, Filename: "bundle.json", Content: sampleBundle},
		{Kind: KindNotes, Filename: "notes.txt", Content: "Name: Override Ignored\nMEDICATIONS:\n1. Aspirin 81 mg PO daily\n"},
	})
	if err != nil {
		t.Fatal(err)
	}

	// FHIR demographics were parsed first and win.
	if rec.Demographics.Name != "John Sample" {
		t.Errorf("name = %q", rec.Demographics.Name)
	}
	if len(rec.Medications) != 2 {
		t.Errorf("medications = %d: %+v", len(rec.Medications), rec.Medications)
	}
	if len(rec.Sources) != 2 {
		t.Errorf("sources = %v", rec.Sources)
	}
}

func TestService_UploadReplacesPriorParse(t *testing.T) {
	svc, _ := newTestService(nil)
	patientID := uuid.New()

	notes := "MEDICATIONS:\n1. Aspirin 81 mg PO daily\n2. Lisinopril 10 mg PO daily\n"
	if _, err := svc.Upload(context.Background(), patientID, []UploadFile{
		{Kind: KindNotes, Filename: "notes.txt", Content: notes},
	}); err != nil {
		t.Fatal(err)
	}
	// Uploading the same chart again must not duplicate its lists.
	rec, err := svc.Upload(context.Background(), patientID, []UploadFile{
		{Kind: KindNotes, Filename: "notes.txt", Content: notes},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Medications) != 2 {
		t.Errorf("expected 2 medications after re-upload, got %d", len(rec.Medications))
	}
}

func TestService_UploadRejectsInvalidKind(t *testing.T) {
	svc, _ := newTestService(nil)
	_, err := svc.Upload(context.Background(), uuid.New(), []UploadFile{
		{Kind: "labs", Filename: "x.txt", Content: "hello"},
	})
	if err == nil {
		t.Fatal("expected error for invalid kind")
	}
}

func TestService_UploadRequiresFiles(t *testing.T) {
	svc, _ := newTestService(nil)
	if _, err := svc.Upload(context.Background(), uuid.New(), nil); err == nil {
		t.Fatal("expected error for empty upload")
	}
}

func TestService_VisitSummaryTemplateFallback(t *testing.T) {
	svc, _ := newTestService(nil)
	patientID := uuid.New()
	if _, err := svc.Upload(context.Background(), patientID, []UploadFile{
		{Kind: KindEHR, Filename: "chart.txt", Content: sampleText},
	}); err != nil {
		t.Fatal(err)
	}

	sum, err := svc.GenerateVisitSummary(context.Background(), patientID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Source != SourceTemplate {
		t.Errorf("source = %q", sum.Source)
	}
	if len(sum.KeyFindings) == 0 || len(sum.KeyFindings) > 5 {
		t.Errorf("key findings = %v", sum.KeyFindings)
	}

	latest, err := svc.LatestVisitSummary(context.Background(), patientID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != sum.ID {
		t.Error("latest summary does not match generated")
	}
}

func TestService_VisitSummaryFromLLMJSON(t *testing.T) {
	client := &stubLLM{response: `{
		"chief_complaint": "Shortness of breath",
		"assessment_and_plan": "COPD exacerbation, improving on steroids.",
		"key_findings": ["Improved air movement", "Afebrile"],
		"discharge_readiness": ["Ambulating independently"],
		"follow_up_items": ["PCP in 7 days"],
		"risk_factors": ["Prior admission within 30 days"],
		"medication_changes": ["Prednisone taper started"]
	}`}
	svc, _ := newTestService(client)
	patientID := uuid.New()
	if _, err := svc.Upload(context.Background(), patientID, []UploadFile{
		{Kind: KindEHR, Filename: "chart.txt", Content: sampleText},
	}); err != nil {
		t.Fatal(err)
	}

	sum, err := svc.GenerateVisitSummary(context.Background(), patientID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Source != SourceLLM {
		t.Errorf("source = %q", sum.Source)
	}
	if sum.ChiefComplaint != "Shortness of breath" {
		t.Errorf("chief complaint = %q", sum.ChiefComplaint)
	}
	if len(sum.FollowUpItems) != 1 || sum.FollowUpItems[0] != "PCP in 7 days" {
		t.Errorf("follow up = %v", sum.FollowUpItems)
	}
}

func TestService_VisitSummaryLLMFailureFallsBack(t *testing.T) {
	svc, _ := newTestService(&stubLLM{err: fmt.Errorf("quota exceeded")})
	patientID := uuid.New()
	if _, err := svc.Upload(context.Background(), patientID, []UploadFile{
		{Kind: KindEHR, Filename: "chart.txt", Content: sampleText},
	}); err != nil {
		t.Fatal(err)
	}

	sum, err := svc.GenerateVisitSummary(context.Background(), patientID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Source != SourceTemplate {
		t.Errorf("source = %q", sum.Source)
	}
}

func TestService_VisitSummaryRequiresRecord(t *testing.T) {
	svc, _ := newTestService(nil)
	if _, err := svc.GenerateVisitSummary(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error without parsed record")
	}
}

func TestParseSummarySections(t *testing.T) {
	resp := `Here is the summary.

Key Findings:
- Stable vitals
- Tolerating oral intake

Discharge Readiness:
- Family support at home

Risk Factors:
- Polypharmacy
`
	sum := parseVisitSummaryResponse(resp)
	if sum == nil {
		t.Fatal("expected parsed summary")
	}
	if len(sum.KeyFindings) != 2 {
		t.Errorf("key findings = %v", sum.KeyFindings)
	}
	if len(sum.DischargeReadiness) != 1 || sum.DischargeReadiness[0] != "Family support at home" {
		t.Errorf("discharge readiness = %v", sum.DischargeReadiness)
	}
	if len(sum.RiskFactors) != 1 {
		t.Errorf("risk factors = %v", sum.RiskFactors)
	}
}

func TestDecodeContent(t *testing.T) {
	data, ct, err := decodeContent(dataURL("application/json", `{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if ct != "application/json" || string(data) != `{"a":1}` {
		t.Errorf("got %q %q", ct, data)
	}

	data, ct, err = decodeContent("plain clinical note")
	if err != nil {
		t.Fatal(err)
	}
	if ct != "text/plain" || string(data) != "plain clinical note" {
		t.Errorf("got %q %q", ct, data)
	}

	if _, _, err := decodeContent(""); err == nil {
		t.Fatal("expected error for empty content")
	}
}

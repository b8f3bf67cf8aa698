package emr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careexit/careexit/internal/platform/epic"
	"github.com/careexit/careexit/internal/platform/llm"
)

// UploadFile is one file of an upload request. Content is either a base64
// data URL or raw text.
type UploadFile struct {
	Kind     string
	Filename string
	Content  string
}

// Service ingests EMR documents, maintains the merged parsed record, and
// generates visit summaries.
type Service struct {
	repo   Repository
	parser *Parser
	llm    llm.Client
	epic   *epic.Client
	logger zerolog.Logger
}

// NewService creates the EMR service. llmClient may be nil; generation then
// always uses the deterministic template.
func NewService(repo Repository, llmClient llm.Client, epicClient *epic.Client, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		parser: NewParser(),
		llm:    llmClient,
		epic:   epicClient,
		logger: logger.With().Str("component", "emr").Logger(),
	}
}

var validKinds = map[string]bool{KindEHR: true, KindNotes: true, KindSummary: true}

// Upload decodes, parses, and stores each file, then combines the parses
// into a record that replaces any previously stored parse. At least one
// file is required.
func (s *Service) Upload(ctx context.Context, patientID uuid.UUID, files []UploadFile) (*ParsedRecord, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}

	merged := &ParsedRecord{PatientID: patientID}
	for _, f := range files {
		if !validKinds[f.Kind] {
			return nil, fmt.Errorf("invalid file kind: %s", f.Kind)
		}
		data, contentType, err := decodeContent(f.Content)
		if err != nil {
			return nil, fmt.Errorf("decode %s file: %w", f.Kind, err)
		}

		rec, text, err := s.parser.Parse(data, f.Filename)
		if err != nil {
			return nil, err
		}
		merged.Merge(rec)

		doc := &Document{
			PatientID:   patientID,
			Kind:        f.Kind,
			Filename:    f.Filename,
			ContentType: contentType,
			Format:      DetectFormat(data, f.Filename),
			Text:        text,
		}
		if err := s.repo.CreateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("store document: %w", err)
		}
		s.logger.Info().Str("kind", f.Kind).Str("format", doc.Format).
			Str("filename", f.Filename).Msg("document ingested")
	}

	if err := s.persistRecord(ctx, patientID, merged); err != nil {
		return nil, err
	}
	return s.repo.GetRecord(ctx, patientID)
}

// ImportFromEpic pulls the patient's chart from Epic and stores it as the
// patient's parsed record the same way an upload would.
func (s *Service) ImportFromEpic(ctx context.Context, patientID uuid.UUID, epicPatientID string) (*ParsedRecord, error) {
	if s.epic == nil {
		return nil, fmt.Errorf("epic integration is not configured")
	}
	if epicPatientID == "" {
		epicPatientID = patientID.String()
	}

	bundle, err := s.epic.FetchAll(ctx, epicPatientID)
	if err != nil {
		return nil, fmt.Errorf("fetch from epic: %w", err)
	}

	rec, err := parseFHIRBundle(bundle)
	if err != nil {
		return nil, fmt.Errorf("parse epic bundle: %w", err)
	}
	rec.PatientID = patientID
	rec.Sources = []string{"Epic FHIR Import"}

	doc := &Document{
		PatientID:   patientID,
		Kind:        KindEHR,
		Filename:    "epic-import.json",
		ContentType: "application/fhir+json",
		Format:      FormatFHIR,
		Text:        string(bundle),
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("store epic document: %w", err)
	}

	if err := s.persistRecord(ctx, patientID, rec); err != nil {
		return nil, err
	}
	return s.repo.GetRecord(ctx, patientID)
}

// persistRecord stores incoming as the patient's current parse. Each upload
// carries the full chart, so the previous parse is replaced, not extended;
// re-uploading the same files must not duplicate medications or problems.
func (s *Service) persistRecord(ctx context.Context, patientID uuid.UUID, incoming *ParsedRecord) error {
	incoming.PatientID = patientID
	return s.repo.UpsertRecord(ctx, incoming)
}

// Record returns the stored documents and merged record for a patient.
func (s *Service) Record(ctx context.Context, patientID uuid.UUID) ([]*Document, *ParsedRecord, error) {
	docs, err := s.repo.ListDocuments(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.repo.GetRecord(ctx, patientID)
	if err != nil {
		// Documents may exist before the first successful parse.
		return docs, nil, nil
	}
	return docs, rec, nil
}

// decodeContent accepts a base64 data URL, bare base64, or plain text and
// returns the raw bytes plus the declared content type.
func decodeContent(content string) ([]byte, string, error) {
	if content == "" {
		return nil, "", fmt.Errorf("content is empty")
	}

	if strings.HasPrefix(content, "data:") {
		comma := strings.Index(content, ",")
		if comma < 0 {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		meta := content[len("data:"):comma]
		contentType := strings.Split(meta, ";")[0]
		data, err := base64.StdEncoding.DecodeString(content[comma+1:])
		if err != nil {
			return nil, "", fmt.Errorf("decode base64: %w", err)
		}
		return data, orDefault(contentType, "application/octet-stream"), nil
	}

	// Bare base64 without a data URL wrapper, PDFs arrive this way.
	if decoded, err := base64.StdEncoding.DecodeString(content); err == nil && len(decoded) > 4 &&
		string(decoded[:4]) == "%PDF" {
		return decoded, "application/pdf", nil
	}
	return []byte(content), "text/plain", nil
}

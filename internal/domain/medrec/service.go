package medrec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careexit/careexit/internal/domain/emr"
	"github.com/careexit/careexit/internal/platform/llm"
)

// RecordSource provides the patient's merged clinical record. The EMR
// repository satisfies it.
type RecordSource interface {
	GetRecord(ctx context.Context, patientID uuid.UUID) (*emr.ParsedRecord, error)
}

// Service runs medication reconciliation analyses.
type Service struct {
	repo    Repository
	records RecordSource
	llm     llm.Client
	logger  zerolog.Logger
}

func NewService(repo Repository, records RecordSource, llmClient llm.Client, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		records: records,
		llm:     llmClient,
		logger:  logger.With().Str("component", "medrec").Logger(),
	}
}

// Analyze reconciles the patient's current medication list and persists the
// result.
func (s *Service) Analyze(ctx context.Context, patientID uuid.UUID) (*Analysis, error) {
	rec, err := s.records.GetRecord(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("no parsed record for patient: %w", err)
	}
	if len(rec.Medications) == 0 {
		return nil, fmt.Errorf("no medications documented for patient")
	}

	analysis := s.analyze(ctx, rec.Medications)
	analysis.PatientID = patientID
	analysis.CreatedAt = time.Now().UTC()
	if err := s.repo.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}
	return analysis, nil
}

// Latest returns the most recent analysis for a patient.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID) (*Analysis, error) {
	return s.repo.Latest(ctx, patientID)
}

func (s *Service) analyze(ctx context.Context, meds []emr.Medication) *Analysis {
	if s.llm != nil {
		resp, err := s.llm.Generate(ctx, llm.Request{
			System: "You are a clinical pharmacist. Analyze the medication list for " +
				"drug interactions, duplicate therapies, and other clinical concerns. " +
				"Respond with valid JSON only.",
			Prompt:      analysisPrompt(meds),
			Temperature: 0.3,
			MaxTokens:   800,
			JSON:        true,
		})
		if err == nil {
			if a := parseAnalysisResponse(resp); a != nil {
				a.Source = emr.SourceLLM
				s.logger.Info().Int("medications", len(meds)).Msg("medication analysis generated")
				return a
			}
		} else {
			s.logger.Warn().Err(err).Msg("medication analysis failed, using rules")
		}
	}
	return ruleAnalysis(meds)
}

func analysisPrompt(meds []emr.Medication) string {
	var b strings.Builder
	b.WriteString("Analyze the following reconciled medication list for potential issues.\n\nMedications:\n")
	for _, m := range meds {
		fmt.Fprintf(&b, "- %s %s %s\n", m.Name, m.Dosage, m.Frequency)
	}
	b.WriteString(`
Return a JSON object with these keys:
- "interactions": list of {"severity": "high|moderate|low", "medications": [names], "detail": "..."}
- "duplicates": same shape
- "clinical_concerns": same shape
- "summary": brief summary string

If no issues are found, return empty lists and a summary saying no issues were identified.
Return ONLY the JSON object.`)
	return b.String()
}

// parseAnalysisResponse accepts the requested JSON shape; when the lists
// come back as plain strings a line-based fallback still salvages them.
func parseAnalysisResponse(resp string) *Analysis {
	cleaned := llm.StripFence(resp)

	var body struct {
		Interactions     []Finding `json:"interactions"`
		Duplicates       []Finding `json:"duplicates"`
		ClinicalConcerns []Finding `json:"clinical_concerns"`
		Summary          string    `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleaned), &body); err == nil && body.Summary != "" {
		return &Analysis{
			Interactions:     body.Interactions,
			Duplicates:       body.Duplicates,
			ClinicalConcerns: body.ClinicalConcerns,
			Summary:          body.Summary,
		}
	}

	// String lists instead of objects.
	var loose struct {
		Interactions     []string `json:"interactions"`
		Duplicates       []string `json:"duplicates"`
		ClinicalConcerns []string `json:"clinical_concerns"`
		Summary          string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleaned), &loose); err == nil && loose.Summary != "" {
		return &Analysis{
			Interactions:     toFindings(loose.Interactions),
			Duplicates:       toFindings(loose.Duplicates),
			ClinicalConcerns: toFindings(loose.ClinicalConcerns),
			Summary:          loose.Summary,
		}
	}
	return parseAnalysisLines(resp)
}

// parseAnalysisLines scans a non-JSON response for section headers and
// bullets.
func parseAnalysisLines(resp string) *Analysis {
	a := &Analysis{Summary: "Analysis completed but response format was not standard JSON."}

	var current *[]Finding
	for _, raw := range strings.Split(resp, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "interaction"):
			current = &a.Interactions
		case strings.Contains(lower, "duplicate"):
			current = &a.Duplicates
		case strings.Contains(lower, "concern"):
			current = &a.ClinicalConcerns
		case strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•"):
			if current != nil {
				*current = append(*current, Finding{
					Severity: SeverityModerate,
					Detail:   strings.TrimSpace(strings.TrimLeft(line, "-• ")),
				})
			}
		}
	}

	if len(a.Interactions) == 0 && len(a.Duplicates) == 0 && len(a.ClinicalConcerns) == 0 {
		return nil
	}
	return a
}

func toFindings(items []string) []Finding {
	findings := make([]Finding, 0, len(items))
	for _, item := range items {
		findings = append(findings, Finding{Severity: SeverityModerate, Detail: item})
	}
	return findings
}

// knownInteractions maps lowercase medication pairs to a flagged finding.
var knownInteractions = []struct {
	a, b     string
	severity string
	detail   string
}{
	{"warfarin", "aspirin", SeverityHigh, "Combined anticoagulant and antiplatelet therapy increases bleeding risk."},
	{"lisinopril", "spironolactone", SeverityModerate, "ACE inhibitor with potassium-sparing diuretic can cause hyperkalemia."},
	{"metformin", "prednisone", SeverityModerate, "Corticosteroids can raise blood glucose and oppose metformin."},
	{"digoxin", "furosemide", SeverityModerate, "Loop diuretic hypokalemia potentiates digoxin toxicity."},
}

// ruleAnalysis is the deterministic fallback: same-name duplicates plus a
// short table of known interaction pairs.
func ruleAnalysis(meds []emr.Medication) *Analysis {
	a := &Analysis{Source: emr.SourceTemplate}

	seen := map[string][]string{}
	for _, m := range meds {
		key := strings.ToLower(strings.TrimSpace(m.Name))
		seen[key] = append(seen[key], m.Name)
	}
	for _, names := range seen {
		if len(names) > 1 {
			a.Duplicates = append(a.Duplicates, Finding{
				Severity:    SeverityModerate,
				Medications: names,
				Detail:      fmt.Sprintf("%s appears %d times in the reconciled list.", names[0], len(names)),
			})
		}
	}

	for _, pair := range knownInteractions {
		if _, okA := seen[pair.a]; !okA {
			continue
		}
		if _, okB := seen[pair.b]; !okB {
			continue
		}
		a.Interactions = append(a.Interactions, Finding{
			Severity:    pair.severity,
			Medications: []string{pair.a, pair.b},
			Detail:      pair.detail,
		})
	}

	if len(meds) >= 5 {
		a.ClinicalConcerns = append(a.ClinicalConcerns, Finding{
			Severity: SeverityModerate,
			Detail:   fmt.Sprintf("Polypharmacy: %d medications on the reconciled list.", len(meds)),
		})
	}
	a.ClinicalConcerns = append(a.ClinicalConcerns, Finding{
		Severity: SeverityLow,
		Detail:   fmt.Sprintf("Review dosing appropriateness for %d reconciled medications.", len(meds)),
	})

	issues := len(a.Interactions) + len(a.Duplicates)
	if issues == 0 {
		a.Summary = fmt.Sprintf("Analyzed %d medications. No interactions or duplicate therapies identified.", len(meds))
	} else {
		a.Summary = fmt.Sprintf("Analyzed %d medications. %d potential issues flagged for pharmacist review.", len(meds), issues)
	}
	return a
}

package emr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careexit/careexit/internal/platform/llm"
)

const summarySystem = "You are a clinical assistant specializing in visit summaries for " +
	"discharge planning. Analyze the patient's record and produce a summary " +
	"focused on discharge readiness."

// GenerateVisitSummary builds a visit summary from the stored parsed record
// and persists it. LLM output is preferred; any failure falls back to the
// deterministic template.
func (s *Service) GenerateVisitSummary(ctx context.Context, patientID uuid.UUID) (*VisitSummary, error) {
	rec, err := s.repo.GetRecord(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("no parsed record for patient: %w", err)
	}

	sum := s.summarize(ctx, rec)
	sum.PatientID = patientID
	sum.GeneratedAt = time.Now().UTC()
	if err := s.repo.CreateSummary(ctx, sum); err != nil {
		return nil, fmt.Errorf("store visit summary: %w", err)
	}
	return sum, nil
}

// LatestVisitSummary returns the most recent generated summary.
func (s *Service) LatestVisitSummary(ctx context.Context, patientID uuid.UUID) (*VisitSummary, error) {
	return s.repo.LatestSummary(ctx, patientID)
}

func (s *Service) summarize(ctx context.Context, rec *ParsedRecord) *VisitSummary {
	if s.llm != nil {
		resp, err := s.llm.Generate(ctx, llm.Request{
			System:      summarySystem,
			Prompt:      visitSummaryPrompt(rec),
			Temperature: 0.3,
			MaxTokens:   1000,
			JSON:        true,
		})
		if err == nil {
			if sum := parseVisitSummaryResponse(resp); sum != nil {
				sum.Source = SourceLLM
				s.logger.Info().Msg("visit summary generated")
				return sum
			}
		} else {
			s.logger.Warn().Err(err).Msg("visit summary generation failed, using template")
		}
	}
	return templateVisitSummary(rec)
}

func visitSummaryPrompt(rec *ParsedRecord) string {
	var b strings.Builder
	d := rec.Demographics
	fmt.Fprintf(&b, "Analyze this record for patient %s (MRN: %s) and create a visit summary for discharge planning.\n\n",
		orDefault(d.Name, "Unknown Patient"), orDefault(d.MRN, "unknown"))
	fmt.Fprintf(&b, "DEMOGRAPHICS: Age %d, Gender %s\n\n", d.Age, orDefault(d.Gender, "Unknown"))

	b.WriteString("CURRENT CONDITIONS:\n")
	writeList(&b, len(rec.Problems), func(i int) string { return rec.Problems[i].Display })

	b.WriteString("\nCURRENT MEDICATIONS:\n")
	writeList(&b, len(rec.Medications), func(i int) string {
		m := rec.Medications[i]
		return fmt.Sprintf("%s (%s)", m.Name, m.Dosage)
	})

	b.WriteString("\nRECENT VITAL SIGNS:\n")
	writeList(&b, len(rec.Vitals), func(i int) string {
		return fmt.Sprintf("%s: %s", rec.Vitals[i].Type, rec.Vitals[i].Value)
	})

	b.WriteString("\nRECENT LAB RESULTS:\n")
	writeList(&b, len(rec.Labs), func(i int) string {
		return fmt.Sprintf("%s: %s", rec.Labs[i].TestName, rec.Labs[i].Value)
	})

	b.WriteString("\nCLINICAL NOTES:\n")
	for _, note := range rec.Notes {
		fmt.Fprintf(&b, "%s (by %s):\n%s\n", note.Type, note.Author, note.Content)
	}
	if len(rec.Notes) == 0 {
		b.WriteString("- None available\n")
	}

	b.WriteString(`
Return a JSON object with these keys, each list holding at most 5 short bullet strings:
{
  "chief_complaint": "...",
  "assessment_and_plan": "...",
  "key_findings": [...],
  "discharge_readiness": [...],
  "follow_up_items": [...],
  "risk_factors": [...],
  "medication_changes": [...]
}
Extract the chief complaint and assessment from the clinical notes when present.`)
	return b.String()
}

func writeList(b *strings.Builder, n int, item func(int) string) {
	if n == 0 {
		b.WriteString("- None documented\n")
		return
	}
	for i := 0; i < n; i++ {
		b.WriteString("- " + item(i) + "\n")
	}
}

// parseVisitSummaryResponse accepts the requested JSON shape and, failing
// that, a markdown-ish response with section headers and bullets.
func parseVisitSummaryResponse(resp string) *VisitSummary {
	cleaned := llm.StripFence(resp)

	var body struct {
		ChiefComplaint     string   `json:"chief_complaint"`
		AssessmentAndPlan  string   `json:"assessment_and_plan"`
		KeyFindings        []string `json:"key_findings"`
		DischargeReadiness []string `json:"discharge_readiness"`
		FollowUpItems      []string `json:"follow_up_items"`
		RiskFactors        []string `json:"risk_factors"`
		MedicationChanges  []string `json:"medication_changes"`
	}
	if err := json.Unmarshal([]byte(cleaned), &body); err == nil &&
		(body.AssessmentAndPlan != "" || len(body.KeyFindings) > 0) {
		return &VisitSummary{
			ChiefComplaint:     orDefault(body.ChiefComplaint, "Analysis of uploaded record"),
			AssessmentAndPlan:  body.AssessmentAndPlan,
			KeyFindings:        capBullets(body.KeyFindings),
			DischargeReadiness: capBullets(body.DischargeReadiness),
			FollowUpItems:      capBullets(body.FollowUpItems),
			RiskFactors:        capBullets(body.RiskFactors),
			MedicationChanges:  capBullets(body.MedicationChanges),
		}
	}
	return parseSummarySections(resp)
}

// parseSummarySections salvages a non-JSON response by scanning for section
// headers and collecting the bullets under each.
func parseSummarySections(resp string) *VisitSummary {
	sum := &VisitSummary{ChiefComplaint: "Analysis of uploaded record"}

	var current *[]string
	for _, raw := range strings.Split(resp, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "key findings"), strings.Contains(lower, "clinical findings"):
			current = &sum.KeyFindings
		case strings.Contains(lower, "discharge readiness"), strings.Contains(lower, "discharge factors"):
			current = &sum.DischargeReadiness
		case strings.Contains(lower, "follow-up"), strings.Contains(lower, "recommendations"):
			current = &sum.FollowUpItems
		case strings.Contains(lower, "risk factors"), strings.Contains(lower, "readmission"):
			current = &sum.RiskFactors
		case strings.Contains(lower, "medication") && (strings.Contains(lower, "changes") || strings.Contains(lower, "new")):
			current = &sum.MedicationChanges
		case strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") || strings.HasPrefix(line, "*"):
			if current != nil && len(*current) < 5 {
				*current = append(*current, strings.TrimSpace(strings.TrimLeft(line, "-•* ")))
			}
		}
	}

	if len(sum.KeyFindings) == 0 && len(sum.DischargeReadiness) == 0 &&
		len(sum.FollowUpItems) == 0 && len(sum.RiskFactors) == 0 {
		return nil
	}
	if len(resp) > 500 {
		sum.AssessmentAndPlan = resp[:500] + "..."
	} else {
		sum.AssessmentAndPlan = resp
	}
	return sum
}

func capBullets(items []string) []string {
	if len(items) > 5 {
		return items[:5]
	}
	return items
}

// templateVisitSummary is the deterministic fallback built directly from
// the parsed record.
func templateVisitSummary(rec *ParsedRecord) *VisitSummary {
	name := orDefault(rec.Demographics.Name, "Unknown Patient")
	return &VisitSummary{
		ChiefComplaint: "Uploaded record analysis for discharge planning",
		AssessmentAndPlan: fmt.Sprintf(
			"Patient %s has %d documented conditions and %d medications. Clinical data successfully parsed from uploaded records.",
			name, len(rec.Problems), len(rec.Medications)),
		KeyFindings: []string{
			fmt.Sprintf("%d active medical conditions", len(rec.Problems)),
			fmt.Sprintf("%d current medications", len(rec.Medications)),
			fmt.Sprintf("%d recent vital sign measurements", len(rec.Vitals)),
			fmt.Sprintf("%d recent laboratory results", len(rec.Labs)),
			"Record data imported and structured",
		},
		DischargeReadiness: []string{
			"Clinical data available for review",
			"Medication list documented",
			"Patient demographics confirmed",
			"Ready for discharge planning workflow",
		},
		FollowUpItems: []string{
			"Review all medications for interactions",
			"Confirm discharge diagnoses with clinical team",
			"Schedule appropriate follow-up appointments",
			"Provide patient education materials",
		},
		RiskFactors: []string{
			"Multiple medications requiring monitoring",
			"Complex medical history requiring careful transition",
			"Need for medication reconciliation",
		},
		MedicationChanges: []string{
			"Review uploaded medication list for accuracy",
			"Confirm current vs discontinued medications",
			"Check for potential drug interactions",
		},
		Source: SourceTemplate,
	}
}

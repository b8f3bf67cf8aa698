package instructions

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

// Service generates patient-facing discharge instructions.
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
		logger:  logger.With().Str("component", "instructions").Logger(),
	}
}

var validLiteracy = map[string]bool{
	LiteracySimple: true, LiteracyStandard: true, LiteracyDetailed: true,
}

func languageName(code string) string {
	for _, l := range Languages {
		if l.Code == code || strings.EqualFold(l.Name, code) {
			return l.Name
		}
	}
	return ""
}

// Generate produces instructions honoring literacy level and language and
// persists the result.
func (s *Service) Generate(ctx context.Context, patientID uuid.UUID, literacy, language string) (*Instructions, error) {
	if literacy == "" {
		literacy = LiteracyStandard
	}
	if !validLiteracy[literacy] {
		return nil, fmt.Errorf("invalid literacy level: %s", literacy)
	}
	if language == "" {
		language = "en"
	}
	langName := languageName(language)
	if langName == "" {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	rec, err := s.records.GetRecord(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("no parsed record for patient: %w", err)
	}

	ins := s.generate(ctx, rec, literacy, langName)
	ins.PatientID = patientID
	ins.LiteracyLevel = literacy
	ins.Language = language
	ins.CreatedAt = time.Now().UTC()
	if err := s.repo.Create(ctx, ins); err != nil {
		return nil, fmt.Errorf("store instructions: %w", err)
	}
	return ins, nil
}

// Latest returns the most recent instructions in the given language.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID, language string) (*Instructions, error) {
	if language == "" {
		language = "en"
	}
	return s.repo.LatestByLanguage(ctx, patientID, language)
}

func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]*Instructions, error) {
	return s.repo.List(ctx, patientID)
}

func (s *Service) generate(ctx context.Context, rec *emr.ParsedRecord, literacy, langName string) *Instructions {
	if s.llm != nil {
		resp, err := s.llm.Generate(ctx, llm.Request{
			System: fmt.Sprintf("You are a patient education specialist. Create clear discharge instructions at a %s reading level in %s.",
				literacy, langName),
			Prompt:      instructionsPrompt(rec, literacy, langName),
			Temperature: 0.3,
			MaxTokens:   1200,
			JSON:        true,
		})
		if err == nil {
			if ins := parseInstructionsResponse(resp); ins != nil {
				ins.Source = emr.SourceLLM
				return ins
			}
		} else {
			s.logger.Warn().Err(err).Msg("instruction generation failed, using template")
		}
	}
	return templateInstructions(rec, literacy)
}

func instructionsPrompt(rec *emr.ParsedRecord, literacy, langName string) string {
	var b strings.Builder
	name := rec.Demographics.Name
	if name == "" {
		name = "the patient"
	}
	fmt.Fprintf(&b, "Create discharge instructions for %s at a %s reading level, written in %s.\n\n", name, literacy, langName)

	b.WriteString("Patient conditions:\n")
	for _, p := range rec.Problems {
		b.WriteString("- " + p.Display + "\n")
	}
	b.WriteString("\nPatient medications:\n")
	for _, m := range rec.Medications {
		fmt.Fprintf(&b, "- %s (%s, %s)\n", m.Name, m.Dosage, m.Frequency)
	}

	b.WriteString(`
Return a JSON object:
{
  "content": "full instructions as plain text",
  "sections": {
    "medications": ["how to take each medication"],
    "warning_signs": ["signs to watch for"],
    "when_to_call": ["when to call the doctor"],
    "activity": ["activity restrictions"],
    "follow_up": ["follow-up appointments"]
  }
}
Use simple, clear language appropriate for the requested reading level.`)
	return b.String()
}

func parseInstructionsResponse(resp string) *Instructions {
	var body struct {
		Content  string              `json:"content"`
		Sections map[string][]string `json:"sections"`
	}
	if err := json.Unmarshal([]byte(llm.StripFence(resp)), &body); err != nil || body.Content == "" {
		return nil
	}
	return &Instructions{Content: body.Content, Sections: body.Sections}
}

// templateInstructions is the deterministic fallback. Literacy level picks
// how much detail each section carries; output is always English.
func templateInstructions(rec *emr.ParsedRecord, literacy string) *Instructions {
	name := rec.Demographics.Name
	if name == "" {
		name = "Patient"
	}

	meds := make([]string, 0, len(rec.Medications))
	for _, m := range rec.Medications {
		switch literacy {
		case LiteracySimple:
			meds = append(meds, fmt.Sprintf("Take %s as your doctor told you.", m.Name))
		case LiteracyDetailed:
			meds = append(meds, fmt.Sprintf("Take %s %s %s by %s route. Do not skip doses or stop without contacting your care team.",
				m.Name, m.Dosage, m.Frequency, m.Route))
		default:
			meds = append(meds, fmt.Sprintf("Take %s %s %s.", m.Name, m.Dosage, m.Frequency))
		}
	}
	if len(meds) == 0 {
		meds = []string{"Take your medicines exactly as prescribed."}
	}

	warning := []string{
		"Fever over 101°F",
		"Trouble breathing",
		"Chest pain",
		"Any worsening symptoms",
	}
	whenToCall := []string{
		"Call your doctor if any warning sign appears.",
		"Call 911 for severe chest pain or trouble breathing.",
	}
	activity := []string{"Take it easy for the first few days at home."}
	if literacy == LiteracyDetailed {
		activity = append(activity,
			"Avoid heavy lifting over 10 pounds until cleared at follow-up.",
			"Resume normal activity gradually as tolerated.")
	}
	followUp := []string{"Follow up with your doctor as scheduled."}

	sections := map[string][]string{
		"medications":   meds,
		"warning_signs": warning,
		"when_to_call":  whenToCall,
		"activity":      activity,
		"follow_up":     followUp,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DISCHARGE INSTRUCTIONS FOR %s\n\n", strings.ToUpper(name))
	b.WriteString("YOUR MEDICINES:\n")
	for _, m := range meds {
		b.WriteString("- " + m + "\n")
	}
	b.WriteString("\nCALL YOUR DOCTOR IF YOU HAVE:\n")
	for _, w := range warning {
		b.WriteString("- " + w + "\n")
	}
	b.WriteString("\nACTIVITY:\n")
	for _, a := range activity {
		b.WriteString("- " + a + "\n")
	}
	b.WriteString("\nFOLLOW-UP:\n")
	for _, f := range followUp {
		b.WriteString("- " + f + "\n")
	}

	return &Instructions{
		Content:  b.String(),
		Sections: sections,
		Source:   emr.SourceTemplate,
	}
}

package meeting

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

// Service plans, steers, and summarizes pre-discharge conversations.
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
		logger:  logger.With().Str("component", "meeting").Logger(),
	}
}

// BuildPlan assembles the conversation script. Custom questions replace the
// defaults when provided.
func (s *Service) BuildPlan(ctx context.Context, patientID uuid.UUID, questions []Question) (*Plan, error) {
	if len(questions) == 0 {
		questions = DefaultQuestions
	}
	rec, _ := s.records.GetRecord(ctx, patientID)

	if s.llm != nil {
		resp, err := s.llm.Generate(ctx, llm.Request{
			System: "You are designing a brief, empathetic pre-discharge conversation for a " +
				"hospital patient. The goal is to confirm understanding and gather key " +
				"information. Return a JSON object with a \"plan\" array.",
			Prompt:      planPrompt(rec, questions),
			Temperature: 0.4,
			MaxTokens:   800,
			JSON:        true,
		})
		if err == nil {
			if plan := parsePlanResponse(resp); plan != nil {
				return plan, nil
			}
		} else {
			s.logger.Warn().Err(err).Msg("plan generation failed, using mock plan")
		}
	}
	return mockPlan(rec, questions), nil
}

func planPrompt(rec *emr.ParsedRecord, questions []Question) string {
	var b strings.Builder
	b.WriteString("Patient Summary:\n")
	b.WriteString(recordSummary(rec))
	b.WriteString("\n\nQuestions to Ask:\n")
	for _, q := range questions {
		fmt.Fprintf(&b, "- (%s) %s (id: %s)\n", q.Category, q.Text, q.ID)
	}
	b.WriteString(`
Create a conversation plan as {"plan": [{"kind": "...", "text": "...", "question_id": "..."}]}.
The flow must be:
1. A warm "intro".
2. A brief "summary" of 1-2 key discharge points.
3. A "question" step for each question, using the exact text provided.
4. A brief "conclusion".
Keep the language simple and empathetic.`)
	return b.String()
}

// recordSummary renders the short clinical context fed into the prompts.
func recordSummary(rec *emr.ParsedRecord) string {
	if rec == nil {
		return "No patient data available. Proceed with generic questions."
	}
	var parts []string
	if rec.Demographics.Name != "" {
		parts = append(parts, "Patient: "+rec.Demographics.Name)
	}
	if len(rec.Problems) > 0 {
		names := make([]string, 0, len(rec.Problems))
		for _, p := range rec.Problems {
			names = append(names, p.Display)
		}
		parts = append(parts, "Conditions: "+strings.Join(names, ", "))
	}
	if len(rec.Medications) > 0 {
		names := make([]string, 0, len(rec.Medications))
		for _, m := range rec.Medications {
			names = append(names, m.Name)
		}
		parts = append(parts, "Medications: "+strings.Join(names, ", "))
	}
	if len(parts) == 0 {
		return "No patient data available. Proceed with generic questions."
	}
	return strings.Join(parts, "\n")
}

func parsePlanResponse(resp string) *Plan {
	var body struct {
		Plan []PlanItem `json:"plan"`
	}
	if err := json.Unmarshal([]byte(llm.StripFence(resp)), &body); err != nil || len(body.Plan) == 0 {
		return nil
	}
	return &Plan{Items: body.Plan}
}

// mockPlan is the deterministic fallback script.
func mockPlan(rec *emr.ParsedRecord, questions []Question) *Plan {
	summary := "I'd like to briefly review your discharge plan and follow-up care."
	if rec != nil && len(rec.Medications) > 0 {
		summary = fmt.Sprintf("I see you have a prescription for %s and a follow-up appointment to schedule.",
			rec.Medications[0].Name)
	}

	items := []PlanItem{
		{Kind: KindIntro, Text: "Hello! I'm calling to briefly go over a few things before your discharge to make sure you're all set."},
		{Kind: KindSummary, Text: summary},
	}
	for _, q := range questions {
		items = append(items, PlanItem{Kind: KindQuestion, Text: q.Text, QuestionID: q.ID})
	}
	items = append(items, PlanItem{Kind: KindConclusion, Text: "That's all my questions. Thank you! We'll be in to see you shortly."})
	return &Plan{Items: items}
}

// React produces the assistant's acknowledgment of a patient utterance.
func (s *Service) React(ctx context.Context, turns []Turn, patientText string) (*Reaction, error) {
	if strings.TrimSpace(patientText) == "" {
		return nil, fmt.Errorf("text is required")
	}

	if s.llm != nil {
		transcript := make([]map[string]string, 0, len(turns))
		start := 0
		if len(turns) > 12 {
			start = len(turns) - 12
		}
		for _, t := range turns[start:] {
			transcript = append(transcript, map[string]string{"role": t.Role, "text": t.Text})
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"transcript":           transcript,
			"last_patient_message": patientText,
		})

		resp, err := s.llm.Generate(ctx, llm.Request{
			System: "You are an empathetic clinician in a pre-discharge conversation. Write a " +
				"brief (1-2 sentence) acknowledgment of the patient's last reply and, only if " +
				"needed, a short clarification or follow-up question. Return JSON with keys: " +
				"reply (string), follow_up_needed (boolean).",
			Prompt:      string(payload),
			Temperature: 0.5,
			MaxTokens:   200,
			JSON:        true,
		})
		if err == nil {
			var r Reaction
			if jerr := json.Unmarshal([]byte(llm.StripFence(resp)), &r); jerr == nil && r.Reply != "" {
				return &r, nil
			}
		} else {
			s.logger.Warn().Err(err).Msg("reactive reply failed, using rules")
		}
	}
	return keywordReaction(patientText), nil
}

// keywordReaction is the rules fallback for reactive replies.
func keywordReaction(patientText string) *Reaction {
	text := strings.ToLower(patientText)
	switch {
	case containsAny(text, "don't understand", "do not understand", "confused", "explain", "not sure", "unclear"):
		return &Reaction{
			Reply: "Thanks for letting me know. Let me explain that in simpler terms. " +
				"It's important because it helps prevent complications after you leave. Does that make more sense now?",
			FollowUpNeeded: true,
		}
	case containsAny(text, "pain", "hurts", "hurting"):
		return &Reaction{
			Reply: "I'm sorry to hear you're in pain. I'll note that for your care team. " +
				"If it gets worse, please let your nurse know right away.",
			FollowUpNeeded: true,
		}
	case containsAny(text, "medication", "medicine", "pill"):
		return &Reaction{
			Reply:          "Good question about your medications. We'll make sure you have clear written instructions for every one before you leave.",
			FollowUpNeeded: false,
		}
	case containsAny(text, "appointment", "schedule", "follow-up", "follow up"):
		return &Reaction{
			Reply:          "Thanks, I'll pass your availability along so the scheduling team can set up your follow-up appointment.",
			FollowUpNeeded: false,
		}
	case containsAny(text, "no ", "not really", "i don't have", "i do not have"):
		return &Reaction{
			Reply:          "Thanks for sharing that. Let's talk through what you might need before you go so you're set up at home.",
			FollowUpNeeded: false,
		}
	default:
		return &Reaction{Reply: "Got it. Thank you. I'll make a quick note of that.", FollowUpNeeded: false}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Summarize produces the meeting summary and extracted answers, then
// persists the record. A transcript with no patient turns never reaches the
// LLM; every answer is "Not discussed".
func (s *Service) Summarize(ctx context.Context, patientID uuid.UUID, plan Plan, turns []Turn, questions []Question) (*Record, error) {
	if len(questions) == 0 {
		questions = DefaultQuestions
	}

	rec := &Record{
		PatientID: patientID,
		Plan:      plan,
		Turns:     turns,
		EndedAt:   time.Now().UTC(),
	}
	if len(turns) > 0 {
		rec.StartedAt = turns[0].At
	} else {
		rec.StartedAt = rec.EndedAt
	}

	if !hasPatientTurn(turns) {
		rec.Summary = "Meeting ended before patient responses were recorded. No answers could be extracted."
		rec.ExtractedAnswers = notDiscussed(questions)
		rec.Source = emr.SourceTemplate
	} else {
		summary, answers, source := s.summarize(ctx, turns, questions)
		rec.Summary = summary
		rec.ExtractedAnswers = answers
		rec.Source = source
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("store meeting record: %w", err)
	}
	return rec, nil
}

// History lists completed meetings for a patient.
func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func hasPatientTurn(turns []Turn) bool {
	for _, t := range turns {
		if t.Role == RolePatient {
			return true
		}
	}
	return false
}

func notDiscussed(questions []Question) map[string]string {
	answers := make(map[string]string, len(questions))
	for _, q := range questions {
		answers[q.ID] = "Not discussed"
	}
	return answers
}

func (s *Service) summarize(ctx context.Context, turns []Turn, questions []Question) (string, map[string]string, string) {
	if s.llm != nil {
		resp, err := s.llm.Generate(ctx, llm.Request{
			System: "You are an expert clinical summarizer. Summarize the patient conversation " +
				"and extract answers to the listed questions. Return a JSON object with " +
				"\"summary\" and \"extracted_answers\" keys.",
			Prompt:      summaryPrompt(turns, questions),
			Temperature: 0.3,
			MaxTokens:   800,
			JSON:        true,
		})
		if err == nil {
			var body struct {
				Summary          string            `json:"summary"`
				ExtractedAnswers map[string]string `json:"extracted_answers"`
			}
			if jerr := json.Unmarshal([]byte(llm.StripFence(resp)), &body); jerr == nil && body.Summary != "" {
				if body.ExtractedAnswers == nil {
					body.ExtractedAnswers = notDiscussed(questions)
				}
				return body.Summary, body.ExtractedAnswers, emr.SourceLLM
			}
		} else {
			s.logger.Warn().Err(err).Msg("meeting summary failed, using mock")
		}
	}

	answers := make(map[string]string, len(questions))
	for _, q := range questions {
		switch q.Category {
		case "teach-back":
			answers[q.ID] = "Patient explained the plan in their own words and demonstrated understanding."
		case "follow-up":
			answers[q.ID] = "Available weekday afternoons - prefers phone calls for scheduling."
		case "medication":
			answers[q.ID] = "Patient confirmed they have all medications and understand the timing."
		default:
			answers[q.ID] = "Patient confirmed understanding and agreement."
		}
	}
	return "Patient was engaged and demonstrated good understanding of discharge instructions. " +
		"No major concerns identified.", answers, emr.SourceTemplate
}

func summaryPrompt(turns []Turn, questions []Question) string {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
	}
	b.WriteString("\nQuestions to Answer:\n")
	for _, q := range questions {
		fmt.Fprintf(&b, "- (%s) %s (id: %s)\n", q.Category, q.Text, q.ID)
	}
	b.WriteString(`
Provide a JSON object with:
1. "summary": 2-3 sentences on key points and patient sentiment.
2. "extracted_answers": object mapping each question id to the patient's answer.

For follow-up questions extract exact days, times, and constraints for the scheduling team.
If an answer is not explicitly found, state 'Not discussed'.`)
	return b.String()
}

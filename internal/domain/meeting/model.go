package meeting

import (
	"time"

	"github.com/google/uuid"
)

// Plan item kinds in conversation order.
const (
	KindIntro      = "intro"
	KindSummary    = "summary"
	KindQuestion   = "question"
	KindConclusion = "conclusion"
)

// Turn roles.
const (
	RoleAssistant = "assistant"
	RolePatient   = "patient"
)

// Question is one structured question to work into the conversation.
// Category is free-form; teach-back, follow-up and medication get special
// handling during summarization.
type Question struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Text     string `json:"text"`
}

// PlanItem is one scripted step of the conversation.
type PlanItem struct {
	Kind       string `json:"kind"`
	Text       string `json:"text"`
	QuestionID string `json:"question_id,omitempty"`
}

// Plan is the ordered conversation script.
type Plan struct {
	Items []PlanItem `json:"items"`
}

// Turn is one utterance in the conversation.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Record is a completed pre-discharge meeting.
type Record struct {
	ID               uuid.UUID         `db:"id" json:"id"`
	PatientID        uuid.UUID         `db:"patient_id" json:"patient_id"`
	Plan             Plan              `json:"plan"`
	Turns            []Turn            `json:"turns"`
	Summary          string            `db:"summary" json:"summary"`
	ExtractedAnswers map[string]string `json:"extracted_answers"`
	Source           string            `db:"source" json:"source"`
	StartedAt        time.Time         `db:"started_at" json:"started_at"`
	EndedAt          time.Time         `db:"ended_at" json:"ended_at"`
}

// Reaction is the assistant's reply to a patient utterance.
type Reaction struct {
	Reply          string `json:"reply"`
	FollowUpNeeded bool   `json:"follow_up_needed"`
}

// DefaultQuestions is used when a plan request carries no custom questions.
var DefaultQuestions = []Question{
	{ID: "q_teachback", Category: "teach-back", Text: "Can you tell me in your own words why you're taking your new medication?"},
	{ID: "q_followup", Category: "follow-up", Text: "What days and times work best for your follow-up appointment?"},
	{ID: "q_medication", Category: "medication", Text: "Do you have all your medications, and do you know when to take them?"},
}

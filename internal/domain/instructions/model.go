package instructions

import (
	"time"

	"github.com/google/uuid"
)

// Literacy levels the generator adapts to.
const (
	LiteracySimple   = "simple"
	LiteracyStandard = "standard"
	LiteracyDetailed = "detailed"
)

// Language describes one supported output language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages lists the supported output languages.
var Languages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "zh", Name: "Mandarin"},
	{Code: "vi", Name: "Vietnamese"},
	{Code: "tl", Name: "Tagalog"},
}

// Instructions is one generated set of discharge instructions.
type Instructions struct {
	ID            uuid.UUID           `db:"id" json:"id"`
	PatientID     uuid.UUID           `db:"patient_id" json:"patient_id"`
	LiteracyLevel string              `db:"literacy_level" json:"literacy_level"`
	Language      string              `db:"language" json:"language"`
	Content       string              `db:"content" json:"content"`
	Sections      map[string][]string `json:"sections"`
	Source        string              `db:"source" json:"source"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
}

package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RolePatient   = "patient"
	RoleDoctor    = "doctor"
	RoleAssistant = "assistant"
)

// Message is one chat message in a patient's room.
type Message struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Role      string    `db:"role" json:"role"`
	Text      string    `db:"text" json:"text"`
	At        time.Time `db:"at" json:"at"`
}

// WireMessage is the JSON frame exchanged over the WebSocket.
type WireMessage struct {
	Type string    `json:"type"`
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

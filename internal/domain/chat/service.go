package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careexit/careexit/internal/platform/llm"
	"github.com/careexit/careexit/internal/platform/websocket"
)

// Service routes chat messages between connected clients, persists them,
// and generates assistant replies to patient messages.
type Service struct {
	repo   Repository
	hub    *websocket.Hub
	llm    llm.Client
	logger zerolog.Logger
}

func NewService(repo Repository, hub *websocket.Hub, llmClient llm.Client, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		hub:    hub,
		llm:    llmClient,
		logger: logger.With().Str("component", "chat").Logger(),
	}
}

// History returns all stored messages for a patient in order.
func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]*Message, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// HandleConnect replays stored history to a newly joined client.
func (s *Service) HandleConnect(client *websocket.Client) {
	patientID, err := uuid.Parse(client.Room)
	if err != nil {
		return
	}
	messages, err := s.repo.ListByPatient(context.Background(), patientID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("history replay failed")
		return
	}
	for _, msg := range messages {
		frame, err := json.Marshal(WireMessage{Type: "message", Role: msg.Role, Text: msg.Text, At: msg.At})
		if err != nil {
			continue
		}
		select {
		case client.Send <- frame:
		default:
			return
		}
	}
}

// HandleMessage persists an inbound frame, broadcasts it to the room, and
// answers patient messages with an assistant reply.
func (s *Service) HandleMessage(client *websocket.Client, data []byte) {
	patientID, err := uuid.Parse(client.Room)
	if err != nil {
		return
	}

	var frame WireMessage
	if err := json.Unmarshal(data, &frame); err != nil || strings.TrimSpace(frame.Text) == "" {
		return
	}

	role := client.Kind
	if role != RolePatient && role != RoleDoctor {
		role = RoleDoctor
	}

	ctx := context.Background()
	msg := &Message{PatientID: patientID, Role: role, Text: frame.Text, At: time.Now().UTC()}
	if err := s.repo.Create(ctx, msg); err != nil {
		s.logger.Error().Err(err).Msg("store chat message failed")
		return
	}
	s.broadcast(msg)

	if role == RolePatient {
		reply := s.assistantReply(ctx, patientID, frame.Text)
		replyMsg := &Message{PatientID: patientID, Role: RoleAssistant, Text: reply, At: time.Now().UTC()}
		if err := s.repo.Create(ctx, replyMsg); err != nil {
			s.logger.Error().Err(err).Msg("store assistant reply failed")
			return
		}
		s.broadcast(replyMsg)
	}
}

func (s *Service) broadcast(msg *Message) {
	frame, err := json.Marshal(WireMessage{Type: "message", Role: msg.Role, Text: msg.Text, At: msg.At})
	if err != nil {
		return
	}
	s.hub.Broadcast(msg.PatientID.String(), frame)
}

const cannedReply = "Thank you for your message. Your care team has been notified and will respond shortly. " +
	"If this is urgent, please use your call button."

func (s *Service) assistantReply(ctx context.Context, patientID uuid.UUID, patientText string) string {
	if s.llm == nil {
		return cannedReply
	}

	history, _ := s.repo.ListByPatient(ctx, patientID)
	var b strings.Builder
	start := 0
	if len(history) > 10 {
		start = len(history) - 10
	}
	for _, m := range history[start:] {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
	}
	fmt.Fprintf(&b, "patient: %s\n\nReply as the assistant in 1-3 short sentences.", patientText)

	resp, err := s.llm.Generate(ctx, llm.Request{
		System: "You are a friendly hospital discharge assistant chatting with a patient. " +
			"Answer questions about their discharge plan simply and empathetically. " +
			"Never give new medical advice; direct clinical questions to the care team.",
		Prompt:      b.String(),
		Temperature: 0.5,
		MaxTokens:   300,
	})
	if err != nil || strings.TrimSpace(resp) == "" {
		s.logger.Warn().Err(err).Msg("assistant reply failed, using canned response")
		return cannedReply
	}
	return strings.TrimSpace(resp)
}

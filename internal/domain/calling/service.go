package calling

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careexit/careexit/internal/domain/appointment"
)

// AppointmentBooker writes the appointment a completed call produced.
type AppointmentBooker interface {
	Book(ctx context.Context, a *appointment.Appointment) error
}

// Service runs simulated outbound scheduling calls. Active calls live
// in memory; finished calls persist through the repository.
type Service struct {
	repo   Repository
	booker AppointmentBooker
	logger zerolog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]*Call

	// sleep is swappable so tests run without real delays.
	sleep func(time.Duration)
}

func NewService(repo Repository, booker AppointmentBooker, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		booker: booker,
		logger: logger.With().Str("component", "calling").Logger(),
		active: make(map[uuid.UUID]*Call),
		sleep:  time.Sleep,
	}
}

func (s *Service) Clinics(ctx context.Context) ([]Clinic, error) {
	return s.repo.ListClinics(ctx)
}

// StartCall queues a simulated call and returns immediately. The
// scripted conversation plays out on a background goroutine.
func (s *Service) StartCall(ctx context.Context, patientID uuid.UUID, clinicID, patientName, reason string) (*Call, error) {
	if clinicID == "" {
		clinicID = "clinic_1"
	}
	clinic, err := s.repo.GetClinic(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic: %w", err)
	}
	if clinic == nil {
		return nil, fmt.Errorf("unknown clinic %q", clinicID)
	}
	if patientName == "" {
		patientName = "the patient"
	}
	if reason == "" {
		reason = "a post-discharge follow-up"
	}

	call := &Call{
		ID:        uuid.New(),
		PatientID: patientID,
		ClinicID:  clinic.ID,
		Status:    StatusQueued,
		Reason:    reason,
		StartedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.active[call.ID] = call
	s.mu.Unlock()

	// Copy before the simulator goroutine starts mutating the call.
	initial := *call
	go s.runCall(call.ID, *clinic, patientName, reason)
	return &initial, nil
}

// GetCall returns the live state of an active call, or the persisted
// record once the call has ended.
func (s *Service) GetCall(ctx context.Context, id uuid.UUID) (*Call, error) {
	if snap := s.snapshot(id); snap != nil {
		return snap, nil
	}
	return s.repo.GetCall(ctx, id)
}

func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]Call, error) {
	calls, err := s.repo.ListCallsByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, c := range s.active {
		if c.PatientID == patientID {
			calls = append([]Call{*c}, calls...)
		}
	}
	s.mu.Unlock()
	return calls, nil
}

// snapshot copies an active call under the lock so callers never see
// a transcript slice the simulator goroutine is still appending to.
func (s *Service) snapshot(id uuid.UUID) *Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.active[id]
	if !ok {
		return nil
	}
	cp := *c
	cp.Transcript = append([]TranscriptEntry(nil), c.Transcript...)
	if c.Appointment != nil {
		appt := *c.Appointment
		cp.Appointment = &appt
	}
	return &cp
}

type scriptStep struct {
	speaker string
	text    string
	delay   time.Duration
}

func callScript(clinic Clinic, patientName, reason, apptDate string) []scriptStep {
	return []scriptStep{
		{SpeakerSystem, "Dialing " + clinic.Phone + "...", 1 * time.Second},
		{SpeakerClinic, "Good morning, " + clinic.Name + ", this is Sarah speaking. How can I help you?", 2 * time.Second},
		{SpeakerAgent, "Hi Sarah, this is the discharge coordination line at City General Hospital. I'm calling to schedule a follow-up appointment for one of our patients, " + patientName + ", who is being discharged today.", 3 * time.Second},
		{SpeakerClinic, "Of course, happy to help. What type of visit does the patient need?", 2 * time.Second},
		{SpeakerAgent, "They need " + reason + " within the next one to two weeks. Their attending recommended a primary care visit to review medications and recovery progress.", 3 * time.Second},
		{SpeakerClinic, "Let me check our schedule... We have an opening next Tuesday at 10:30 AM with Dr. Martinez. Would that work?", 3 * time.Second},
		{SpeakerAgent, "Tuesday at 10:30 AM with Dr. Martinez works well. Could you confirm the date and what the patient should bring?", 2 * time.Second},
		{SpeakerClinic, "That's " + apptDate + " at 10:30 AM. The patient should bring their insurance card, discharge paperwork, and a current medications list.", 3 * time.Second},
		{SpeakerAgent, "Perfect. Can I get a confirmation number for the patient's records?", 2 * time.Second},
		{SpeakerClinic, "The confirmation number is NPC-8547. We'll also send an appointment reminder the day before.", 2 * time.Second},
		{SpeakerAgent, "Thank you, Sarah. Confirmation NPC-8547, Tuesday " + apptDate + " at 10:30 AM with Dr. Martinez. Have a great day.", 2 * time.Second},
		{SpeakerClinic, "You too, goodbye!", 1 * time.Second},
	}
}

func (s *Service) runCall(id uuid.UUID, clinic Clinic, patientName, reason string) {
	ctx := context.Background()

	apptDate := nextWeekday(time.Now().UTC(), time.Tuesday).Format("2006-01-02")
	script := callScript(clinic, patientName, reason, apptDate)

	s.setStatus(id, StatusCalling)
	for i, step := range script {
		s.sleep(step.delay)
		s.appendTranscript(id, step)
		// Connected once the clinic picks up.
		if i == 1 {
			s.setStatus(id, StatusConnected)
		}
	}

	details := &AppointmentDetails{
		Confirmation: "NPC-8547",
		Provider:     "Dr. Martinez",
		Date:         apptDate,
		Time:         "10:30 AM",
		Location:     clinic.Address,
	}

	s.mu.Lock()
	call, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	call.Status = StatusCompleted
	call.Outcome = OutcomeAppointmentScheduled
	call.Appointment = details
	call.EndedAt = &now
	done := *call
	done.Transcript = append([]TranscriptEntry(nil), call.Transcript...)
	s.mu.Unlock()

	if err := s.booker.Book(ctx, &appointment.Appointment{
		PatientID:    done.PatientID,
		Provider:     details.Provider,
		Clinic:       clinic.Name,
		Date:         details.Date,
		Time:         details.Time,
		Location:     details.Location,
		Confirmation: details.Confirmation,
	}); err != nil {
		s.logger.Error().Err(err).Str("call_id", id.String()).Msg("book appointment from call")
	}

	if err := s.repo.SaveCall(ctx, &done); err != nil {
		s.logger.Error().Err(err).Str("call_id", id.String()).Msg("persist completed call")
	}
	if err := s.repo.RecordClinicCall(ctx, clinic.ID, true); err != nil {
		s.logger.Error().Err(err).Str("clinic_id", clinic.ID).Msg("update clinic metrics")
	}

	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// EndCall cancels an in-progress call. The simulator goroutine keeps
// running its script but its final bookkeeping finds the call gone.
func (s *Service) EndCall(ctx context.Context, id uuid.UUID) (*Call, error) {
	s.mu.Lock()
	call, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}
	now := time.Now().UTC()
	call.Status = StatusFailed
	call.Outcome = OutcomeCanceled
	call.EndedAt = &now
	call.Transcript = append(call.Transcript, TranscriptEntry{
		Speaker: SpeakerSystem,
		Text:    "Call ended by staff.",
		At:      now,
	})
	done := *call
	done.Transcript = append([]TranscriptEntry(nil), call.Transcript...)
	delete(s.active, id)
	s.mu.Unlock()

	if err := s.repo.SaveCall(ctx, &done); err != nil {
		return nil, err
	}
	if err := s.repo.RecordClinicCall(ctx, done.ClinicID, false); err != nil {
		return nil, err
	}
	return &done, nil
}

func (s *Service) setStatus(id uuid.UUID, status string) {
	s.mu.Lock()
	if c, ok := s.active[id]; ok {
		c.Status = status
	}
	s.mu.Unlock()
}

func (s *Service) appendTranscript(id uuid.UUID, step scriptStep) {
	s.mu.Lock()
	if c, ok := s.active[id]; ok {
		c.Transcript = append(c.Transcript, TranscriptEntry{
			Speaker: step.speaker,
			Text:    strings.TrimSpace(step.text),
			At:      time.Now().UTC(),
		})
	}
	s.mu.Unlock()
}

func nextWeekday(from time.Time, day time.Weekday) time.Time {
	delta := (int(day) - int(from.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return from.AddDate(0, 0, delta)
}

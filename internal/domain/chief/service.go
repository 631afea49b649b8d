package chief

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/medsoft/medsoft/internal/platform/fhir"
	"github.com/medsoft/medsoft/internal/platform/websocket"
)

const (
	defaultListLimit    = 10
	defaultMessageCount = 5
)

// Options tunes a chief Service.
type Options struct {
	ListLimit   int
	LogMessages bool
	Clock       clockwork.Clock
}

type Service struct {
	repo      Repository
	publisher websocket.EventPublisher
	opts      Options
	logger    zerolog.Logger

	// publishMu orders list reads with their publication so the dashboard
	// never sees an older list after a newer one.
	publishMu sync.Mutex
}

func NewService(repo Repository, publisher websocket.EventPublisher, logger zerolog.Logger, opts Options) *Service {
	if opts.ListLimit <= 0 {
		opts.ListLimit = defaultListLimit
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		opts:      opts,
		logger:    logger.With().Str("component", "chief").Logger(),
	}
}

// RegisterFromReception stores a patient forwarded by reception, replacing an
// earlier copy with the same reception id, and pushes the new list.
func (s *Service) RegisterFromReception(ctx context.Context, reg Registration) (*Patient, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	now := s.opts.Clock.Now().UTC()
	if reg.HL7Raw != "" {
		if err := s.saveMessage(ctx, KindHL7, reg.HL7Raw, now); err != nil {
			return nil, err
		}
	}

	sourceID := reg.PatientID
	p := &Patient{
		SourceID:   &sourceID,
		FirstName:  reg.FirstName,
		LastName:   reg.LastName,
		DOB:        reg.DOB,
		ReceivedAt: now,
	}
	if err := s.repo.UpsertBySource(ctx, p); err != nil {
		return nil, fmt.Errorf("register patient: %w", err)
	}

	s.publish(ctx)
	return p, nil
}

// IngestFHIR stores a FHIR Patient resource and returns its resource id. The
// raw payload is logged before validation so rejected resources stay visible.
func (s *Service) IngestFHIR(ctx context.Context, raw []byte) (string, error) {
	now := s.opts.Clock.Now().UTC()
	if err := s.saveMessage(ctx, KindFHIR, string(raw), now); err != nil {
		return "", err
	}

	fields, err := fhir.DecodePatient(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if fields.ID == "" {
		fields.ID = uuid.New().String()
	}

	p := &Patient{
		FHIRID:     fields.ID,
		FirstName:  fields.Given,
		LastName:   fields.Family,
		DOB:        fields.BirthDate,
		ReceivedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return "", fmt.Errorf("ingest fhir patient: %w", err)
	}

	s.publish(ctx)
	return p.FHIRID, nil
}

// Delete removes a patient and pushes the new list. It returns ErrNotFound
// when the id does not exist.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

// ListRecent returns the newest patients first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Patient, error) {
	if limit <= 0 {
		limit = s.opts.ListLimit
	}
	return s.repo.ListRecent(ctx, limit)
}

// LastMessages returns the newest n inbound messages of a kind.
func (s *Service) LastMessages(ctx context.Context, kind string, n int) ([]*Message, error) {
	if n <= 0 {
		n = defaultMessageCount
	}
	return s.repo.LastMessages(ctx, kind, n)
}

// Snapshot is the current dashboard list, sent to a client when it connects.
func (s *Service) Snapshot(ctx context.Context) (websocket.Event, error) {
	patients, err := s.repo.ListRecent(ctx, s.opts.ListLimit)
	if err != nil {
		return websocket.Event{}, err
	}
	return websocket.PatientsEvent(patients), nil
}

func (s *Service) saveMessage(ctx context.Context, kind, raw string, at time.Time) error {
	if err := s.repo.SaveMessage(ctx, &Message{Kind: kind, CreatedAt: at, Raw: raw}); err != nil {
		return fmt.Errorf("store %s message: %w", kind, err)
	}
	if s.opts.LogMessages {
		s.logger.Info().Str("kind", kind).Str("raw", raw).Msg("inbound message")
	}
	return nil
}

// publish queues the current list for every dashboard. Failures are logged;
// the write that triggered the publish has already succeeded.
func (s *Service) publish(ctx context.Context) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	patients, err := s.repo.ListRecent(ctx, s.opts.ListLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load patients for broadcast")
		return
	}
	if !s.publisher.Publish(websocket.PatientsEvent(patients)) {
		s.logger.Warn().Int("patients", len(patients)).Msg("dashboard update dropped")
	}
}

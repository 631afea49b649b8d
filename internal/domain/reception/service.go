package reception

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/medsoft/medsoft/internal/platform/fhir"
	"github.com/medsoft/medsoft/internal/platform/hl7v2"
)

const (
	defaultListLimit    = 10
	defaultMessageCount = 5
)

// Options tunes a reception Service.
type Options struct {
	Protocol    string // ProtocolHL7 or ProtocolFHIR
	ListLimit   int
	LogMessages bool
	Clock       clockwork.Clock
}

type Service struct {
	repo     Repository
	notifier ChiefNotifier
	hl7      *hl7v2.Generator
	opts     Options
	logger   zerolog.Logger
}

func NewService(repo Repository, notifier ChiefNotifier, logger zerolog.Logger, opts Options) *Service {
	if opts.Protocol == "" {
		opts.Protocol = ProtocolHL7
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = defaultListLimit
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		hl7:      hl7v2.NewGenerator(hl7v2.DefaultHeader(), opts.Clock),
		opts:     opts,
		logger:   logger.With().Str("component", "reception").Logger(),
	}
}

// Register stores a new patient, records the outbound message and forwards
// it to the chief service. A failed notification is logged and does not
// fail the registration.
func (s *Service) Register(ctx context.Context, in PatientInput) (*Patient, error) {
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}

	now := s.opts.Clock.Now().UTC()
	p := &Patient{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		DOB:       in.DOB,
		CreatedAt: now,
	}
	if err := s.repo.CreatePatient(ctx, p); err != nil {
		return nil, fmt.Errorf("register patient: %w", err)
	}

	n := Notification{Patient: p}
	msg := &Message{CreatedAt: now}
	switch s.opts.Protocol {
	case ProtocolFHIR:
		n.FHIR = fhir.NewPatient(p.FirstName, p.LastName, p.DOB)
		raw, err := n.FHIR.Marshal()
		if err != nil {
			return nil, fmt.Errorf("build fhir patient: %w", err)
		}
		msg.Kind, msg.Raw = KindFHIR, string(raw)
	default:
		raw, err := s.hl7.GenerateADTA04(hl7v2.Patient{
			ID:         strconv.FormatInt(p.ID, 10),
			FamilyName: p.LastName,
			GivenName:  p.FirstName,
			BirthDate:  p.DOB,
		})
		if err != nil {
			return nil, fmt.Errorf("build hl7 message: %w", err)
		}
		n.HL7 = raw
		msg.Kind, msg.Raw = KindHL7, raw
	}

	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("register patient: %w", err)
	}
	if s.opts.LogMessages {
		s.logger.Info().Str("kind", msg.Kind).Int64("patient_id", p.ID).Str("raw", msg.Raw).Msg("outbound message")
	}

	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn().Err(err).Int64("patient_id", p.ID).Msg("failed to notify chief server")
	}

	return p, nil
}

// ListRecent returns the newest patients first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Patient, error) {
	if limit <= 0 {
		limit = s.opts.ListLimit
	}
	return s.repo.ListRecent(ctx, limit)
}

// LastMessages returns the newest n outbound messages of a kind.
func (s *Service) LastMessages(ctx context.Context, kind string, n int) ([]*Message, error) {
	if n <= 0 {
		n = defaultMessageCount
	}
	return s.repo.LastMessages(ctx, kind, n)
}

// Package service orchestrates the inspection workflow: session lifecycle,
// photo capture and upload, analysis dispatch, the signature gate and the
// terminal lock.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetgate/internal/ai"
	"fleetgate/internal/events"
	"fleetgate/internal/inspection/domain"
	"fleetgate/internal/inspection/repository"
	"fleetgate/internal/storage"
	"fleetgate/platform/apperr"
	"fleetgate/platform/logger"
	"fleetgate/platform/sanitize"
)

// Store is the persistence contract the workflow depends on. Implemented by
// repository.Repository; faked in tests.
type Store interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	FindOpenSession(ctx context.Context, missionID uuid.UUID, kind domain.Kind) (*domain.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	UpdateState(ctx context.Context, sessionID uuid.UUID, from, to domain.State) error
	UpdateMetadata(ctx context.Context, session *domain.Session) error
	UpdateCursor(ctx context.Context, sessionID uuid.UUID, cursor, highest int) error
	UpdateLocation(ctx context.Context, sessionID uuid.UUID, address string) error
	BeginCapture(ctx context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID, localRef string, takenAt *time.Time) error
	SetStepUploaded(ctx context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID, remoteURL string) error
	ClearStepAsset(ctx context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID) error
	SetStepAnalysis(ctx context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID, description *string, verdict *domain.DamageVerdict) error
	SetStepDescription(ctx context.Context, sessionID uuid.UUID, stepType string, description string, approved bool) error
	InsertSignature(ctx context.Context, sig *domain.Signature) error
	SetLocked(ctx context.Context, sessionID uuid.UUID, lockedAt time.Time) error
	ListByMission(ctx context.Context, missionID uuid.UUID) ([]*domain.Session, error)
}

// Geocoder resolves coordinates to an address. Best-effort: failures never
// block the workflow.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// Buckets names the object storage buckets the workflow writes to.
type Buckets struct {
	Photos     string
	Signatures string
}

type Service struct {
	repo      Store
	storage   storage.Service
	analyzer  ai.Analyzer
	geocoder  Geocoder
	bus       events.Bus
	catalogue domain.Catalogue
	buckets   Buckets
	log       *logger.Logger

	// retryWait is the pause before the single automatic upload retry.
	retryWait time.Duration

	// background tracks in-flight uploads and analyses so shutdown and
	// tests can wait for them.
	background sync.WaitGroup
}

func New(repo Store, storageSvc storage.Service, analyzer ai.Analyzer, geocoder Geocoder, bus events.Bus, catalogue domain.Catalogue, buckets Buckets, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		storage:   storageSvc,
		analyzer:  analyzer,
		geocoder:  geocoder,
		bus:       bus,
		catalogue: catalogue,
		buckets:   buckets,
		log:       log,
		retryWait: 2 * time.Second,
	}
}

// StartInput carries the parameters for starting an inspection.
type StartInput struct {
	MissionID uuid.UUID
	Kind      domain.Kind
	Latitude  *float64
	Longitude *float64
}

// StartResult is the outcome of Start: either a freshly created session or
// the existing open one offered for resumption.
type StartResult struct {
	Session *domain.Session `json:"session"`
	Resumed bool            `json:"resumed"`
}

// Start creates a new session for a mission and kind, or returns the
// existing open one. At most one non-locked session exists per pair; the
// database index enforces this under races.
func (s *Service) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	if !in.Kind.Valid() {
		return nil, apperr.Validation("unknown inspection kind")
	}

	if existing, err := s.repo.FindOpenSession(ctx, in.MissionID, in.Kind); err == nil {
		return &StartResult{Session: existing, Resumed: true}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to check open sessions", err)
	}

	session := &domain.Session{
		ID:        uuid.New(),
		MissionID: in.MissionID,
		Kind:      in.Kind,
		State:     domain.StateDraft,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Steps:     s.catalogue.NewSteps(),
	}
	for _, step := range session.Steps {
		step.ID = uuid.New()
		step.SessionID = session.ID
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost the race to another start; resume that session instead.
			if existing, ferr := s.repo.FindOpenSession(ctx, in.MissionID, in.Kind); ferr == nil {
				return &StartResult{Session: existing, Resumed: true}, nil
			}
			return nil, domain.ErrDuplicateOpenSession("")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create session", err)
	}

	s.bus.Publish(ctx, events.InspectionStarted{
		BaseEvent: events.NewBaseEvent(),
		SessionID: session.ID,
		MissionID: session.MissionID,
		Kind:      string(session.Kind),
	})

	// Geolocation resolution must not block the start.
	if s.geocoder != nil && in.Latitude != nil && in.Longitude != nil {
		go s.resolveLocation(session.ID, *in.Latitude, *in.Longitude)
	}

	return &StartResult{Session: session, Resumed: false}, nil
}

func (s *Service) resolveLocation(sessionID uuid.UUID, lat, lon float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	address, err := s.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		s.log.Warn("reverse geocode failed", "sessionId", sessionID.String(), "error", err)
		return
	}
	if err := s.repo.UpdateLocation(ctx, sessionID, address); err != nil {
		s.log.DatabaseError("update session location", err)
	}
}

// Get loads a session with steps and signatures. This is also the resume
// path: the persisted record is the source of truth, including an
// authoritative lock applied elsewhere.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("inspection session not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load session", err)
	}
	return session, nil
}

// ListByMission returns all sessions recorded for a mission.
func (s *Service) ListByMission(ctx context.Context, missionID uuid.UUID) ([]*domain.Session, error) {
	sessions, err := s.repo.ListByMission(ctx, missionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list sessions", err)
	}
	return sessions, nil
}

// MetadataInput carries the operator-entered session attributes. Nil fields
// are left unchanged.
type MetadataInput struct {
	OverallCondition *domain.Condition
	FuelLevel        *int
	OdometerKm       *int
	Notes            *string
}

// UpdateMetadata records condition, fuel, odometer and notes.
func (s *Service) UpdateMetadata(ctx context.Context, sessionID uuid.UUID, in MetadataInput) (*domain.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.EnsureMutable(); err != nil {
		return nil, err
	}

	if in.OverallCondition != nil {
		if !in.OverallCondition.Valid() {
			return nil, apperr.Validation("unknown overall condition")
		}
		session.OverallCondition = in.OverallCondition
	}
	if in.FuelLevel != nil {
		if *in.FuelLevel < 0 || *in.FuelLevel > 100 {
			return nil, apperr.Validation("fuel level must be between 0 and 100")
		}
		session.FuelLevel = in.FuelLevel
	}
	if in.OdometerKm != nil {
		if *in.OdometerKm < 0 {
			return nil, apperr.Validation("odometer reading must be non-negative")
		}
		session.OdometerKm = in.OdometerKm
	}
	if in.Notes != nil {
		session.Notes = sanitize.Text(*in.Notes)
	}

	if err := s.repo.UpdateMetadata(ctx, session); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, domain.ErrSessionLocked(sessionID.String())
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update metadata", err)
	}
	return session, nil
}

// Navigate moves the sequencer cursor and persists the new position.
type NavigateAction string

const (
	NavigateAdvance NavigateAction = "advance"
	NavigateRetreat NavigateAction = "retreat"
	NavigateJump    NavigateAction = "jump"
)

func (s *Service) Navigate(ctx context.Context, sessionID uuid.UUID, action NavigateAction, index int) (*domain.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch action {
	case NavigateAdvance:
		err = session.Advance()
	case NavigateRetreat:
		err = session.Retreat()
	case NavigateJump:
		err = session.JumpTo(index)
	default:
		return nil, apperr.Validation("unknown navigation action")
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateCursor(ctx, sessionID, session.CursorIndex, session.HighestIndex); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, domain.ErrSessionLocked(sessionID.String())
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to persist cursor", err)
	}
	return session, nil
}

// ApproveDescription accepts the generated description as-is.
func (s *Service) ApproveDescription(ctx context.Context, sessionID uuid.UUID, stepType string) (*domain.Session, error) {
	return s.setDescription(ctx, sessionID, stepType, nil)
}

// EditDescription replaces the description text and approves it.
func (s *Service) EditDescription(ctx context.Context, sessionID uuid.UUID, stepType, text string) (*domain.Session, error) {
	return s.setDescription(ctx, sessionID, stepType, &text)
}

func (s *Service) setDescription(ctx context.Context, sessionID uuid.UUID, stepType string, override *string) (*domain.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.EnsureMutable(); err != nil {
		return nil, err
	}

	step := session.StepByType(stepType)
	if step == nil {
		return nil, apperr.NotFound("unknown step type")
	}

	text := ""
	switch {
	case override != nil:
		text = sanitize.Text(*override)
	case step.AIDescription != nil && !step.AnalysisUnavailable():
		text = *step.AIDescription
	default:
		return nil, apperr.Unprocessable("no description to approve; edit it instead")
	}

	if err := s.repo.SetStepDescription(ctx, sessionID, stepType, text, true); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to store description", err)
	}

	step.AIDescription = &text
	step.DescriptionApproved = true
	return session, nil
}

// SignatureInput carries one signature capture.
type SignatureInput struct {
	Role       domain.SignerRole
	ImageData  []byte
	SignerName string
}

// RecordSignature applies the two-phase signature gate: the operator signs
// only once every required step is complete, the counterparty signs only
// after the operator. The operator signature moves the session to
// awaiting_signatures.
func (s *Service) RecordSignature(ctx context.Context, sessionID uuid.UUID, in SignatureInput) (*domain.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.EnsureMutable(); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("unknown signer role")
	}
	if len(in.ImageData) == 0 {
		return nil, apperr.Validation("signature image is required")
	}

	if in.Role == domain.RoleOperator && !session.ReadyForSignatures() {
		return nil, domain.ErrStepsIncomplete(session.MissingRequired())
	}
	if err := session.ValidateSignature(in.Role); err != nil {
		return nil, err
	}

	fileKey, err := s.uploadSignature(ctx, sessionID, in)
	if err != nil {
		return nil, err
	}

	sig := &domain.Signature{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Role:       in.Role,
		ImageKey:   fileKey,
		SignerName: sanitize.Text(in.SignerName),
		SignedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertSignature(ctx, sig); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to record signature", err)
	}
	session.Signatures = append(session.Signatures, sig)

	if in.Role == domain.RoleOperator && session.State != domain.StateAwaitingSignatures {
		if err := s.repo.UpdateState(ctx, sessionID, session.State, domain.StateAwaitingSignatures); err != nil && !errors.Is(err, repository.ErrStale) {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to advance session state", err)
		}
		session.State = domain.StateAwaitingSignatures
	}

	s.bus.Publish(ctx, events.SignatureRecorded{
		BaseEvent: events.NewBaseEvent(),
		SessionID: sessionID,
		Role:      string(in.Role),
	})

	return session, nil
}

func (s *Service) uploadSignature(ctx context.Context, sessionID uuid.UUID, in SignatureInput) (string, error) {
	fileName := sessionID.String() + "_" + string(in.Role) + ".png"
	fileKey, err := s.storage.PutObject(ctx, s.buckets.Signatures, "signatures", fileName,
		"image/png", bytesReader(in.ImageData), int64(len(in.ImageData)))
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "failed to store signature image", err)
	}
	return fileKey, nil
}

// Lock applies the terminal transition. Permitted exactly once, only with
// both signatures present. The durable write happens first; the locked
// event for report generation is fire-and-forget afterwards, so a report
// failure can never un-lock the session.
func (s *Service) Lock(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Locked() {
		return nil, domain.ErrSessionLocked(sessionID.String())
	}
	if session.SignaturePhase() != domain.PhaseSatisfied {
		return nil, domain.ErrSignatureOrderViolation("both signatures are required before locking")
	}

	lockedAt := time.Now().UTC()
	if err := s.repo.SetLocked(ctx, sessionID, lockedAt); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, domain.ErrSessionLocked(sessionID.String())
		}
		// The session stays in awaiting_signatures; the caller may retry.
		return nil, apperr.Wrap(apperr.KindUnavailable, "failed to persist lock, please retry", err)
	}

	session.State = domain.StateLocked
	session.LockedAt = &lockedAt
	s.log.LockEvent(sessionID.String(), string(session.Kind))

	s.bus.Publish(ctx, events.InspectionLocked{
		BaseEvent: events.NewBaseEvent(),
		SessionID: session.ID,
		MissionID: session.MissionID,
		Kind:      string(session.Kind),
	})

	return session, nil
}

package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fleetgate/internal/ai"
	"fleetgate/internal/events"
	"fleetgate/internal/inspection/domain"
	"fleetgate/internal/inspection/repository"
)

// analyzeCapture runs both analysis capabilities concurrently against one
// uploaded capture and stores whatever succeeded. Analyses for different
// steps are fully independent; within a step the capture token guards
// against a late result landing on a superseded capture.
//
// Outcomes per capability pair:
//   - both succeed: description + verdict stored, description unapproved
//   - one succeeds: the survivor is stored, the other stays null
//   - both unavailable: the degraded-analysis marker is stored, the step
//     stays complete (the upload already succeeded)
func (s *Service) analyzeCapture(ctx context.Context, sessionID uuid.UUID, stepType, stepLabel string, token uuid.UUID, imageData []byte) {
	var (
		description string
		verdict     *ai.Verdict
		descErr     error
		verdictErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		description, descErr = s.analyzer.Describe(gctx, imageData, stepLabel)
		return nil
	})
	g.Go(func() error {
		verdict, verdictErr = s.analyzer.Analyze(gctx, imageData, stepLabel)
		return nil
	})
	_ = g.Wait()

	unavailable := errors.Is(descErr, ai.ErrUnavailable) && errors.Is(verdictErr, ai.ErrUnavailable)

	var storedDescription *string
	switch {
	case descErr == nil:
		storedDescription = &description
	case unavailable:
		marker := domain.DescriptionUnavailable
		storedDescription = &marker
	default:
		s.log.Warn("description generation failed",
			"sessionId", sessionID.String(), "stepType", stepType, "error", descErr)
	}

	var storedVerdict *domain.DamageVerdict
	if verdictErr == nil && verdict != nil {
		storedVerdict = &domain.DamageVerdict{
			HasDamage:   verdict.HasDamage,
			Severity:    verdict.Severity,
			Description: verdict.Description,
			Location:    verdict.Location,
			Suggestions: verdict.Suggestions,
		}
	} else if verdictErr != nil && !errors.Is(verdictErr, ai.ErrUnavailable) {
		s.log.Warn("damage detection failed",
			"sessionId", sessionID.String(), "stepType", stepType, "error", verdictErr)
	}

	if storedDescription == nil && storedVerdict == nil {
		return
	}

	if err := s.repo.SetStepAnalysis(ctx, sessionID, stepType, token, storedDescription, storedVerdict); err != nil {
		if errors.Is(err, repository.ErrStale) {
			// The operator retook the step while analysis was running; the
			// result belongs to the superseded capture and is discarded.
			return
		}
		s.log.DatabaseError("set step analysis", err)
		return
	}

	s.log.AnalysisEvent(sessionID.String(), stepType,
		descErr == nil, storedVerdict != nil && storedVerdict.HasDamage)

	s.bus.Publish(ctx, events.PhotoAnalysisCompleted{
		BaseEvent:   events.NewBaseEvent(),
		SessionID:   sessionID,
		StepType:    stepType,
		Described:   descErr == nil,
		HasVerdict:  storedVerdict != nil,
		Unavailable: unavailable,
	})
}

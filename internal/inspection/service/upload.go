package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"fleetgate/internal/events"
	"fleetgate/internal/imaging"
	"fleetgate/internal/inspection/domain"
	"fleetgate/internal/inspection/repository"
	"fleetgate/internal/storage"
	"fleetgate/platform/apperr"
)

func bytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

// CaptureInput carries one photo capture for a step.
type CaptureInput struct {
	StepType string
	FileName string
	Data     []byte
}

// CaptureResult returns the updated session. The captured step shows its
// local reference immediately; the remote URL appears once the background
// upload succeeds.
type CaptureResult struct {
	Session      *domain.Session `json:"session"`
	CaptureToken uuid.UUID       `json:"captureToken"`
}

// CapturePhoto registers a new capture for a step and starts the upload in
// the background. The call returns as soon as the capture is registered:
// the step displays its local asset optimistically while the upload and
// analysis proceed. A new capture for a step supersedes any outstanding
// one; the fresh capture token makes late results for the old capture
// no-ops (last-capture-wins).
func (s *Service) CapturePhoto(ctx context.Context, sessionID uuid.UUID, in CaptureInput) (*CaptureResult, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.EnsureMutable(); err != nil {
		return nil, err
	}

	step := session.StepByType(in.StepType)
	if step == nil {
		return nil, apperr.NotFound("unknown step type")
	}
	if len(in.Data) == 0 {
		return nil, apperr.Validation("photo data is required")
	}

	processed, err := imaging.Process(bytesReader(in.Data))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "unusable photo", err)
	}

	token := uuid.New()
	takenAt := processed.Meta.TakenAt
	if takenAt == nil {
		now := time.Now().UTC()
		takenAt = &now
	}

	localRef := in.FileName
	if localRef == "" {
		localRef = in.StepType + ".jpg"
	}

	if err := s.repo.BeginCapture(ctx, sessionID, in.StepType, token, localRef, takenAt); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to register capture", err)
	}

	// First capture moves a draft session into progress.
	if session.State == domain.StateDraft {
		if err := s.repo.UpdateState(ctx, sessionID, domain.StateDraft, domain.StateInProgress); err != nil && !errors.Is(err, repository.ErrStale) {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to advance session state", err)
		}
		session.State = domain.StateInProgress
	}

	step.CaptureToken = &token
	step.LocalRef = &localRef
	step.RemoteURL = nil
	step.AIDescription = nil
	step.DescriptionApproved = false
	step.Verdict = nil
	step.TakenAt = takenAt

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.processCapture(context.WithoutCancel(ctx), sessionID, in.StepType, step.Label, token, processed.Data, processed.MIME)
	}()

	return &CaptureResult{Session: session, CaptureToken: token}, nil
}

// RetakePhoto replaces the current capture of a step. Registering the new
// capture clears the previous URL, description, verdict and approval, and
// discards any in-flight results for the prior capture token.
func (s *Service) RetakePhoto(ctx context.Context, sessionID uuid.UUID, in CaptureInput) (*CaptureResult, error) {
	return s.CapturePhoto(ctx, sessionID, in)
}

// Wait blocks until all background uploads and analyses have finished.
// Used on shutdown and in tests.
func (s *Service) Wait() {
	s.background.Wait()
}

// processCapture drives one capture through upload and analysis. Runs in
// the background; every persisted write is guarded by the capture token so
// a superseded capture cannot clobber a newer one.
func (s *Service) processCapture(ctx context.Context, sessionID uuid.UUID, stepType, stepLabel string, token uuid.UUID, data []byte, mime string) {
	remoteURL, err := s.uploadWithRetry(ctx, sessionID, stepType, token, data, mime)
	if err != nil {
		// Terminal failure: roll the step back to empty so it never looks
		// complete, and tell the operator to recapture.
		if clearErr := s.repo.ClearStepAsset(ctx, sessionID, stepType, token); clearErr != nil && !errors.Is(clearErr, repository.ErrStale) {
			s.log.DatabaseError("clear step asset", clearErr)
		}
		s.bus.Publish(ctx, events.PhotoUploadFailed{
			BaseEvent: events.NewBaseEvent(),
			SessionID: sessionID,
			StepType:  stepType,
			Reason:    err.Error(),
		})
		return
	}

	if err := s.repo.SetStepUploaded(ctx, sessionID, stepType, token, remoteURL); err != nil {
		if errors.Is(err, repository.ErrStale) {
			// A newer capture superseded this one while it was uploading.
			return
		}
		s.log.DatabaseError("set step uploaded", err)
		return
	}

	s.bus.Publish(ctx, events.PhotoUploaded{
		BaseEvent:    events.NewBaseEvent(),
		SessionID:    sessionID,
		StepType:     stepType,
		CaptureToken: token,
		RemoteURL:    remoteURL,
	})

	// Upload completion strictly precedes analysis dispatch.
	s.analyzeCapture(ctx, sessionID, stepType, stepLabel, token, data)
}

// uploadWithRetry attempts the remote upload with one automatic retry on a
// transient failure. Terminal failures are returned immediately.
func (s *Service) uploadWithRetry(ctx context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID, data []byte, mime string) (string, error) {
	fileName := stepType + "_" + token.String() + ".jpg"

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		fileKey, err := s.storage.PutObject(ctx, s.buckets.Photos, sessionID.String(), fileName, mime, bytesReader(data), int64(len(data)))
		if err == nil {
			s.log.UploadEvent(sessionID.String(), stepType, attempt, true, "")
			return s.storage.ObjectURL(s.buckets.Photos, fileKey), nil
		}

		lastErr = err
		s.log.UploadEvent(sessionID.String(), stepType, attempt, false, err.Error())
		if !storage.IsTransient(err) {
			break
		}
		if attempt < 2 {
			select {
			case <-time.After(s.retryWait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", lastErr
}

// Package repository persists inspection sessions, steps, signatures and
// reports in PostgreSQL. Every step mutation tied to a capture carries the
// capture token and is applied compare-and-set style so late results for a
// superseded capture never land.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetgate/internal/inspection/domain"
)

var (
	// ErrNotFound is returned when a session, step or report does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStale is returned when a compare-and-set write lost to a newer
	// capture token or a concurrent state change.
	ErrStale = errors.New("stale write")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSession inserts the session with its materialized steps in one
// transaction. The partial unique index on (mission_id, kind) makes the
// one-open-session invariant hold under races; a violation surfaces as
// ErrDuplicate.
func (r *Repository) CreateSession(ctx context.Context, session *domain.Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO inspection_sessions (id, mission_id, kind, state, notes,
			latitude, longitude, location_address, cursor_index, highest_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		session.ID, session.MissionID, session.Kind, session.State, session.Notes,
		session.Latitude, session.Longitude, session.LocationAddress,
		session.CursorIndex, session.HighestIndex,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}

	for _, step := range session.Steps {
		_, err = tx.Exec(ctx, `
			INSERT INTO inspection_photo_steps (id, session_id, step_type, label, required, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			step.ID, session.ID, step.StepType, step.Label, step.Required, step.Position,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %s: %w", step.StepType, err)
		}
	}

	return tx.Commit(ctx)
}

// ErrDuplicate is returned when an open session already exists for the
// mission and kind.
var ErrDuplicate = errors.New("open session already exists")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// FindOpenSession returns the non-locked session for a mission and kind,
// or ErrNotFound.
func (r *Repository) FindOpenSession(ctx context.Context, missionID uuid.UUID, kind domain.Kind) (*domain.Session, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM inspection_sessions
		WHERE mission_id = $1 AND kind = $2 AND state <> 'locked'`,
		missionID, kind,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}
	return r.GetSession(ctx, id)
}

// GetSession loads a session with its steps and signatures.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var s domain.Session
	err := r.pool.QueryRow(ctx, `
		SELECT id, mission_id, kind, state, overall_condition, fuel_level,
			odometer_km, notes, latitude, longitude, location_address,
			cursor_index, highest_index, locked_at, created_at, updated_at
		FROM inspection_sessions WHERE id = $1`, id,
	).Scan(
		&s.ID, &s.MissionID, &s.Kind, &s.State, &s.OverallCondition, &s.FuelLevel,
		&s.OdometerKm, &s.Notes, &s.Latitude, &s.Longitude, &s.LocationAddress,
		&s.CursorIndex, &s.HighestIndex, &s.LockedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	steps, err := r.loadSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Steps = steps

	signatures, err := r.loadSignatures(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Signatures = signatures

	return &s, nil
}

func (r *Repository) loadSteps(ctx context.Context, sessionID uuid.UUID) ([]*domain.PhotoStep, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, step_type, label, required, position,
			capture_token, local_ref, remote_url, ai_description,
			description_approved, verdict, taken_at, created_at, updated_at
		FROM inspection_photo_steps
		WHERE session_id = $1
		ORDER BY position`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	defer rows.Close()

	var steps []*domain.PhotoStep
	for rows.Next() {
		var step domain.PhotoStep
		var verdictJSON []byte
		err := rows.Scan(
			&step.ID, &step.SessionID, &step.StepType, &step.Label, &step.Required,
			&step.Position, &step.CaptureToken, &step.LocalRef, &step.RemoteURL,
			&step.AIDescription, &step.DescriptionApproved, &verdictJSON,
			&step.TakenAt, &step.CreatedAt, &step.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if len(verdictJSON) > 0 {
			var verdict domain.DamageVerdict
			if err := json.Unmarshal(verdictJSON, &verdict); err != nil {
				return nil, fmt.Errorf("failed to decode verdict: %w", err)
			}
			step.Verdict = &verdict
		}
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}

func (r *Repository) loadSignatures(ctx context.Context, sessionID uuid.UUID) ([]*domain.Signature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, role, image_key, signer_name, signed_at
		FROM inspection_signatures
		WHERE session_id = $1
		ORDER BY signed_at`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load signatures: %w", err)
	}
	defer rows.Close()

	var signatures []*domain.Signature
	for rows.Next() {
		var sig domain.Signature
		err := rows.Scan(&sig.ID, &sig.SessionID, &sig.Role, &sig.ImageKey, &sig.SignerName, &sig.SignedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		signatures = append(signatures, &sig)
	}
	return signatures, rows.Err()
}

// UpdateState advances the session state. The previous state is part of the
// predicate so the transition is atomic; a lost race returns ErrStale.
func (r *Repository) UpdateState(ctx context.Context, sessionID uuid.UUID, from, to domain.State) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inspection_sessions SET state = $1, updated_at = now()
		WHERE id = $2 AND state = $3`, to, sessionID, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// UpdateMetadata persists the operator-entered session attributes.
func (r *Repository) UpdateMetadata(ctx context.Context, session *domain.Session) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inspection_sessions
		SET overall_condition = $1, fuel_level = $2, odometer_km = $3,
			notes = $4, updated_at = now()
		WHERE id = $5 AND state <> 'locked'`,
		session.OverallCondition, session.FuelLevel, session.OdometerKm,
		session.Notes, session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// UpdateCursor persists the sequencer position.
func (r *Repository) UpdateCursor(ctx context.Context, sessionID uuid.UUID, cursor, highest int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inspection_sessions
		SET cursor_index = $1, highest_index = $2, updated_at = now()
		WHERE id = $3 AND state <> 'locked'`,
		cursor, highest, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// UpdateLocation persists a resolved geolocation for the session start.
func (r *Repository) UpdateLocation(ctx context.Context, sessionID uuid.UUID, address string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE inspection_sessions SET location_address = $1, updated_at = now()
		WHERE id = $2`, address, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	return nil
}

// BeginCapture registers a new capture for a step: a fresh capture token,
// the local asset reference, and cleared upload/analysis results. It
// supersedes any outstanding capture for the step.
func (r *Repository) BeginCapture(ctx context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID, localRef string, takenAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inspection_photo_steps
		SET capture_token = $1, local_ref = $2, remote_url = NULL,
			ai_description = NULL, description_approved = FALSE, verdict = NULL,
			taken_at = $3, updated_at = now()
		WHERE session_id = $4 AND step_type = $5`,
		token, localRef, takenAt, sessionID, stepType,
	)
	if err != nil {
		return fmt.Errorf("failed to begin capture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStepUploaded records the remote URL for a capture. The token predicate
// drops the write when a newer capture has superseded this one.
func (r *Repository) SetStepUploaded(ctx context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID, remoteURL string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inspection_photo_steps
		SET remote_url = $1, updated_at = now()
		WHERE session_id = $2 AND step_type = $3 AND capture_token = $4`,
		remoteURL, sessionID, stepType, token,
	)
	if err != nil {
		return fmt.Errorf("failed to set step uploaded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// ClearStepAsset rolls a step back to empty after a terminal upload failure.
// Token-guarded like SetStepUploaded.
func (r *Repository) ClearStepAsset(ctx context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inspection_photo_steps
		SET local_ref = NULL, remote_url = NULL, ai_description = NULL,
			description_approved = FALSE, verdict = NULL, taken_at = NULL,
			updated_at = now()
		WHERE session_id = $1 AND step_type = $2 AND capture_token = $3`,
		sessionID, stepType, token,
	)
	if err != nil {
		return fmt.Errorf("failed to clear step asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// SetStepAnalysis stores the analysis outcome for a capture. Either field
// may be nil when its capability failed. Token-guarded.
func (r *Repository) SetStepAnalysis(ctx context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID, description *string, verdict *domain.DamageVerdict) error {
	var verdictJSON []byte
	if verdict != nil {
		encoded, err := json.Marshal(verdict)
		if err != nil {
			return fmt.Errorf("failed to encode verdict: %w", err)
		}
		verdictJSON = encoded
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE inspection_photo_steps
		SET ai_description = $1, verdict = $2, description_approved = FALSE,
			updated_at = now()
		WHERE session_id = $3 AND step_type = $4 AND capture_token = $5`,
		description, verdictJSON, sessionID, stepType, token,
	)
	if err != nil {
		return fmt.Errorf("failed to set step analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// SetStepDescription stores an operator-approved or edited description.
func (r *Repository) SetStepDescription(ctx context.Context, sessionID uuid.UUID, stepType string, description string, approved bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inspection_photo_steps
		SET ai_description = $1, description_approved = $2, updated_at = now()
		WHERE session_id = $3 AND step_type = $4`,
		description, approved, sessionID, stepType,
	)
	if err != nil {
		return fmt.Errorf("failed to set step description: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertSignature records a signature. The unique (session_id, role)
// constraint keeps the operation idempotent under retry.
func (r *Repository) InsertSignature(ctx context.Context, sig *domain.Signature) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inspection_signatures (id, session_id, role, image_key, signer_name, signed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, role) DO NOTHING`,
		sig.ID, sig.SessionID, sig.Role, sig.ImageKey, sig.SignerName, sig.SignedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signature: %w", err)
	}
	return nil
}

// SetLocked applies the terminal lock. The state predicate makes the
// transition exactly-once: a second call affects zero rows and returns
// ErrStale.
func (r *Repository) SetLocked(ctx context.Context, sessionID uuid.UUID, lockedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inspection_sessions
		SET state = 'locked', locked_at = $1, updated_at = now()
		WHERE id = $2 AND state = 'awaiting_signatures'`,
		lockedAt, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// ListByMission returns all sessions for a mission, newest first, without
// their steps.
func (r *Repository) ListByMission(ctx context.Context, missionID uuid.UUID) ([]*domain.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, mission_id, kind, state, overall_condition, fuel_level,
			odometer_km, notes, latitude, longitude, location_address,
			cursor_index, highest_index, locked_at, created_at, updated_at
		FROM inspection_sessions
		WHERE mission_id = $1
		ORDER BY created_at DESC`, missionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*domain.Session, 0)
	for rows.Next() {
		var s domain.Session
		err := rows.Scan(
			&s.ID, &s.MissionID, &s.Kind, &s.State, &s.OverallCondition, &s.FuelLevel,
			&s.OdometerKm, &s.Notes, &s.Latitude, &s.Longitude, &s.LocationAddress,
			&s.CursorIndex, &s.HighestIndex, &s.LockedAt, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

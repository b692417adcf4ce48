package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Report is the generated PDF record for a locked session, reachable by a
// public token.
type Report struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"sessionId"`
	FileKey     string    `json:"fileKey"`
	PublicToken string    `json:"publicToken"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// CreateReport records a generated report. The unique session_id constraint
// makes regeneration idempotent: the first report for a session wins.
func (r *Repository) CreateReport(ctx context.Context, report *Report) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inspection_reports (id, session_id, file_key, public_token, generated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO NOTHING`,
		report.ID, report.SessionID, report.FileKey, report.PublicToken, report.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetReportBySession returns the report for a session, or ErrNotFound.
func (r *Repository) GetReportBySession(ctx context.Context, sessionID uuid.UUID) (*Report, error) {
	return r.scanReport(r.pool.QueryRow(ctx, `
		SELECT id, session_id, file_key, public_token, generated_at
		FROM inspection_reports WHERE session_id = $1`, sessionID))
}

// GetReportByToken resolves a public share token, or ErrNotFound.
func (r *Repository) GetReportByToken(ctx context.Context, token string) (*Report, error) {
	return r.scanReport(r.pool.QueryRow(ctx, `
		SELECT id, session_id, file_key, public_token, generated_at
		FROM inspection_reports WHERE public_token = $1`, token))
}

func (r *Repository) scanReport(row pgx.Row) (*Report, error) {
	var report Report
	err := row.Scan(&report.ID, &report.SessionID, &report.FileKey, &report.PublicToken, &report.GeneratedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}
	return &report, nil
}

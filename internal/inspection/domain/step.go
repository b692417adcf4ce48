package domain

import (
	"time"

	"github.com/google/uuid"
)

// PhotoStep is one slot in the capture sequence. A step is complete iff its
// remote URL is set; description, verdict and approval are independent of
// completion.
type PhotoStep struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"sessionId"`
	StepType  string    `json:"stepType"`
	Label     string    `json:"label"`
	Required  bool      `json:"required"`
	Position  int       `json:"position"`

	// CaptureToken identifies the latest capture of this step. Upload and
	// analysis results carry the token they were started with; results for a
	// superseded token are discarded (last-capture-wins).
	CaptureToken *uuid.UUID `json:"captureToken,omitempty"`

	LocalRef  *string `json:"localRef,omitempty"`
	RemoteURL *string `json:"remoteUrl,omitempty"`

	AIDescription       *string        `json:"aiDescription,omitempty"`
	DescriptionApproved bool           `json:"descriptionApproved"`
	Verdict             *DamageVerdict `json:"verdict,omitempty"`

	TakenAt   *time.Time `json:"takenAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Complete reports whether the step's photo was durably uploaded.
func (p *PhotoStep) Complete() bool {
	return p.RemoteURL != nil && *p.RemoteURL != ""
}

// DamageVerdict is the structured damage-detection result for one photo.
// Immutable once produced; a retake discards it.
type DamageVerdict struct {
	HasDamage   bool     `json:"hasDamage"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// DescriptionUnavailable is the stored description when both analysis
// capabilities were unreachable. It marks a degraded, non-fatal condition;
// the step stays complete and the operator writes a description manually.
const DescriptionUnavailable = "analysis_unavailable"

// AnalysisUnavailable reports whether the step carries the degraded-analysis
// marker instead of a generated description.
func (p *PhotoStep) AnalysisUnavailable() bool {
	return p.AIDescription != nil && *p.AIDescription == DescriptionUnavailable
}

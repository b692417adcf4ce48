// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"fleetgate/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Inspection Domain Events
// =============================================================================

// InspectionStarted is published when a new inspection session is created.
type InspectionStarted struct {
	BaseEvent
	SessionID uuid.UUID `json:"sessionId"`
	MissionID uuid.UUID `json:"missionId"`
	Kind      string    `json:"kind"`
}

func (e InspectionStarted) EventName() string { return "inspection.started" }

// PhotoUploaded is published when a photo step's upload succeeds and its
// remote URL is set. Analysis for the step is dispatched after this point.
type PhotoUploaded struct {
	BaseEvent
	SessionID    uuid.UUID `json:"sessionId"`
	StepType     string    `json:"stepType"`
	CaptureToken uuid.UUID `json:"captureToken"`
	RemoteURL    string    `json:"remoteUrl"`
}

func (e PhotoUploaded) EventName() string { return "inspection.photo.uploaded" }

// PhotoUploadFailed is published when a photo upload fails terminally.
// The step's local asset has been cleared; the operator must recapture.
type PhotoUploadFailed struct {
	BaseEvent
	SessionID uuid.UUID `json:"sessionId"`
	StepType  string    `json:"stepType"`
	Reason    string    `json:"reason"`
}

func (e PhotoUploadFailed) EventName() string { return "inspection.photo.upload_failed" }

// PhotoAnalysisCompleted is published when the AI analysis for a step
// finishes, including degraded (sentinel) outcomes.
type PhotoAnalysisCompleted struct {
	BaseEvent
	SessionID   uuid.UUID `json:"sessionId"`
	StepType    string    `json:"stepType"`
	Described   bool      `json:"described"`
	HasVerdict  bool      `json:"hasVerdict"`
	Unavailable bool      `json:"unavailable"`
}

func (e PhotoAnalysisCompleted) EventName() string { return "inspection.photo.analysis_completed" }

// SignatureRecorded is published when a signature is accepted for a session.
type SignatureRecorded struct {
	BaseEvent
	SessionID uuid.UUID `json:"sessionId"`
	Role      string    `json:"role"`
}

func (e SignatureRecorded) EventName() string { return "inspection.signature.recorded" }

// InspectionLocked is published exactly once when a session transitions to
// locked. Consumed by the report generator; the workflow never awaits it.
type InspectionLocked struct {
	BaseEvent
	SessionID uuid.UUID `json:"sessionId"`
	MissionID uuid.UUID `json:"missionId"`
	Kind      string    `json:"kind"`
}

func (e InspectionLocked) EventName() string { return "inspection.locked" }

// =============================================================================
// Report Domain Events
// =============================================================================

// ReportGenerated is published when the PDF report for a locked session has
// been rendered and stored.
type ReportGenerated struct {
	BaseEvent
	SessionID   uuid.UUID `json:"sessionId"`
	FileKey     string    `json:"fileKey"`
	PublicToken string    `json:"publicToken"`
}

func (e ReportGenerated) EventName() string { return "report.generated" }

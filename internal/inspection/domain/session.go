// Package domain holds the inspection session state machine: session and
// step types, the capture sequencer, the signature gate and the error
// taxonomy. It has no knowledge of HTTP, SQL or storage.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of an inspection session. Transitions only
// move forward; no state is ever revisited.
type State string

const (
	StateDraft              State = "draft"
	StateInProgress         State = "in_progress"
	StateAwaitingSignatures State = "awaiting_signatures"
	StateLocked             State = "locked"
)

// forward defines the only legal transition out of each state.
var forward = map[State]State{
	StateDraft:              StateInProgress,
	StateInProgress:         StateAwaitingSignatures,
	StateAwaitingSignatures: StateLocked,
}

// CanTransition reports whether moving from s to next is a legal forward
// step.
func (s State) CanTransition(next State) bool {
	return forward[s] == next
}

// Kind distinguishes the two inspections bracketing a transfer mission.
type Kind string

const (
	KindDeparture Kind = "departure"
	KindArrival   Kind = "arrival"
)

// Valid reports whether k is a known inspection kind.
func (k Kind) Valid() bool {
	return k == KindDeparture || k == KindArrival
}

// Condition is the operator's overall assessment of the vehicle.
type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Session is the aggregate root for one vehicle condition inspection. It
// owns its photo steps and signatures exclusively; once locked it is
// retained permanently as an audit record.
type Session struct {
	ID        uuid.UUID `json:"id"`
	MissionID uuid.UUID `json:"missionId"`
	Kind      Kind      `json:"kind"`
	State     State     `json:"state"`

	OverallCondition *Condition `json:"overallCondition,omitempty"`
	FuelLevel        *int       `json:"fuelLevel,omitempty"`
	OdometerKm       *int       `json:"odometerKm,omitempty"`
	Notes            string     `json:"notes"`

	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	LocationAddress *string  `json:"locationAddress,omitempty"`

	CursorIndex  int        `json:"cursorIndex"`
	HighestIndex int        `json:"highestIndex"`
	LockedAt     *time.Time `json:"lockedAt,omitempty"`

	Steps      []*PhotoStep `json:"steps"`
	Signatures []*Signature `json:"signatures"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Locked reports whether the session has reached its terminal state.
func (s *Session) Locked() bool {
	return s.State == StateLocked
}

// EnsureMutable rejects any mutation once the session is locked.
func (s *Session) EnsureMutable() error {
	if s.Locked() {
		return ErrSessionLocked(s.ID.String())
	}
	return nil
}

// StepByType returns the step with the given type, or nil.
func (s *Session) StepByType(stepType string) *PhotoStep {
	for _, step := range s.Steps {
		if step.StepType == stepType {
			return step
		}
	}
	return nil
}

// StepAt returns the step at the given position, or nil when out of range.
func (s *Session) StepAt(index int) *PhotoStep {
	if index < 0 || index >= len(s.Steps) {
		return nil
	}
	return s.Steps[index]
}

// SignatureByRole returns the recorded signature for the role, or nil.
func (s *Session) SignatureByRole(role SignerRole) *Signature {
	for _, sig := range s.Signatures {
		if sig.Role == role {
			return sig
		}
	}
	return nil
}

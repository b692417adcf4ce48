package domain

import (
	"time"

	"github.com/google/uuid"
)

// SignerRole identifies who produced a signature.
type SignerRole string

const (
	RoleOperator     SignerRole = "operator"
	RoleCounterparty SignerRole = "counterparty"
)

func (r SignerRole) Valid() bool {
	return r == RoleOperator || r == RoleCounterparty
}

// Signature is one of the two sign-offs closing an inspection.
type Signature struct {
	ID         uuid.UUID  `json:"id"`
	SessionID  uuid.UUID  `json:"sessionId"`
	Role       SignerRole `json:"role"`
	ImageKey   string     `json:"imageKey"`
	SignerName string     `json:"signerName,omitempty"`
	SignedAt   time.Time  `json:"signedAt"`
}

// SignaturePhase tracks progress through the two-phase signature gate.
type SignaturePhase string

const (
	PhaseAwaitingOperator     SignaturePhase = "awaiting_operator"
	PhaseAwaitingCounterparty SignaturePhase = "awaiting_counterparty"
	PhaseSatisfied            SignaturePhase = "satisfied"
)

// SignaturePhase derives the gate phase from the recorded signatures.
func (s *Session) SignaturePhase() SignaturePhase {
	operator := s.SignatureByRole(RoleOperator)
	counterparty := s.SignatureByRole(RoleCounterparty)
	switch {
	case operator != nil && counterparty != nil:
		return PhaseSatisfied
	case operator != nil:
		return PhaseAwaitingCounterparty
	default:
		return PhaseAwaitingOperator
	}
}

// ValidateSignature checks that recording a signature for role is legal in
// the session's current signature phase. The operator signs first; the
// counterparty signs second; neither signs twice.
func (s *Session) ValidateSignature(role SignerRole) error {
	phase := s.SignaturePhase()
	switch role {
	case RoleOperator:
		if phase != PhaseAwaitingOperator {
			return ErrSignatureOrderViolation("operator signature already recorded")
		}
	case RoleCounterparty:
		switch phase {
		case PhaseAwaitingOperator:
			return ErrSignatureOrderViolation("counterparty cannot sign before the operator")
		case PhaseSatisfied:
			return ErrSignatureOrderViolation("counterparty signature already recorded")
		}
	default:
		return ErrSignatureOrderViolation("unknown signer role")
	}
	return nil
}

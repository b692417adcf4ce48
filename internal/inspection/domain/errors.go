package domain

import (
	"fmt"
	"strings"

	"fleetgate/platform/apperr"
)

// Error constructors for the inspection workflow. Services return these and
// the HTTP layer maps them to status codes through apperr.

// ErrSessionLocked rejects any mutation of a locked session.
func ErrSessionLocked(sessionID string) *apperr.Error {
	return apperr.Locked("inspection already validated and locked").
		WithDetails(map[string]string{"sessionId": sessionID})
}

// ErrStepsIncomplete blocks the signature phase while required photo steps
// are missing. The missing step types are named in the details.
func ErrStepsIncomplete(missing []string) *apperr.Error {
	return apperr.Unprocessable(
		fmt.Sprintf("required steps incomplete: %s", strings.Join(missing, ", "))).
		WithDetails(map[string][]string{"missingSteps": missing})
}

// ErrSignatureOrderViolation rejects signatures recorded out of order.
func ErrSignatureOrderViolation(message string) *apperr.Error {
	return apperr.Conflict(message).WithOp("signature")
}

// ErrDuplicateOpenSession rejects starting a second open session for the
// same mission and kind. The existing session is offered for resumption.
func ErrDuplicateOpenSession(existingID string) *apperr.Error {
	return apperr.Conflict("an open inspection already exists for this mission").
		WithDetails(map[string]string{"existingSessionId": existingID})
}

// ErrUploadFailed signals a terminal upload failure; the operator must
// recapture the step.
func ErrUploadFailed(stepType string, cause error) *apperr.Error {
	return apperr.Wrap(apperr.KindUnavailable, "photo upload failed, please retake", cause).
		WithDetails(map[string]string{"stepType": stepType})
}

// IsLocked reports whether err is a session-locked rejection.
func IsLocked(err error) bool {
	return apperr.Is(err, apperr.KindLocked)
}

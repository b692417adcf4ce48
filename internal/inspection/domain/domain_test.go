package domain

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"fleetgate/platform/apperr"
)

func newTestSession() *Session {
	return &Session{
		ID:        uuid.New(),
		MissionID: uuid.New(),
		Kind:      KindDeparture,
		State:     StateDraft,
		Steps:     DefaultCatalogue().NewSteps(),
	}
}

func completeStep(step *PhotoStep) {
	url := "https://storage.local/inspection-photos/" + step.StepType + ".jpg"
	token := uuid.New()
	step.CaptureToken = &token
	step.RemoteURL = &url
}

func TestStateTransitionsOnlyMoveForward(t *testing.T) {
	legal := []struct {
		from, to State
	}{
		{StateDraft, StateInProgress},
		{StateInProgress, StateAwaitingSignatures},
		{StateAwaitingSignatures, StateLocked},
	}
	for _, tr := range legal {
		if !tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be legal", tr.from, tr.to)
		}
	}

	illegal := []struct {
		from, to State
	}{
		{StateInProgress, StateDraft},
		{StateLocked, StateAwaitingSignatures},
		{StateLocked, StateInProgress},
		{StateDraft, StateAwaitingSignatures},
		{StateDraft, StateLocked},
		{StateAwaitingSignatures, StateInProgress},
	}
	for _, tr := range illegal {
		if tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be illegal", tr.from, tr.to)
		}
	}
}

func TestStepCompleteIffRemoteURL(t *testing.T) {
	step := &PhotoStep{StepType: "front", Required: true}
	if step.Complete() {
		t.Fatal("step without remote URL must be incomplete")
	}

	// Description and verdict never imply completion.
	desc := "clean front bumper"
	step.AIDescription = &desc
	step.Verdict = &DamageVerdict{HasDamage: false, Severity: "minor"}
	step.DescriptionApproved = true
	if step.Complete() {
		t.Fatal("description and verdict must not imply completion")
	}

	completeStep(step)
	if !step.Complete() {
		t.Fatal("step with remote URL must be complete")
	}

	empty := ""
	step.RemoteURL = &empty
	if step.Complete() {
		t.Fatal("empty remote URL must not count as complete")
	}
}

func TestAdvanceAndHighestIndex(t *testing.T) {
	s := newTestSession()

	for i := 1; i < len(s.Steps); i++ {
		completeStep(s.Steps[i-1])
		if err := s.Advance(); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if s.CursorIndex != i {
			t.Fatalf("cursor = %d, want %d", s.CursorIndex, i)
		}
	}
	if s.HighestIndex != len(s.Steps)-1 {
		t.Fatalf("highest = %d", s.HighestIndex)
	}
}

func TestAdvancePastEndRejectedWhileRequiredIncomplete(t *testing.T) {
	s := newTestSession()
	s.CursorIndex = len(s.Steps) - 1
	s.HighestIndex = s.CursorIndex

	err := s.Advance()
	if err == nil {
		t.Fatal("expected StepsIncomplete")
	}
	appErr, ok := err.(*apperr.Error)
	if !ok || appErr.Kind != apperr.KindUnprocessable {
		t.Fatalf("unexpected error: %v", err)
	}
	missing, ok := appErr.Details.(map[string][]string)
	if !ok {
		t.Fatalf("details = %#v", appErr.Details)
	}
	want := []string{"front", "back", "left_side", "right_side"}
	got := missing["missingSteps"]
	if len(got) != len(want) {
		t.Fatalf("missing = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("missing = %v, want %v", got, want)
		}
	}

	// Once every required step is complete, advancing off the end is a no-op.
	for _, step := range s.Steps {
		if step.Required {
			completeStep(step)
		}
	}
	if err := s.Advance(); err != nil {
		t.Fatalf("advance at end with required complete: %v", err)
	}
	if s.CursorIndex != len(s.Steps)-1 {
		t.Fatalf("cursor moved past end: %d", s.CursorIndex)
	}
}

func TestRetreat(t *testing.T) {
	s := newTestSession()
	if err := s.Retreat(); err != nil {
		t.Fatalf("retreat at start: %v", err)
	}
	if s.CursorIndex != 0 {
		t.Fatal("retreat at start must be a no-op")
	}

	s.CursorIndex = 2
	s.HighestIndex = 2
	if err := s.Retreat(); err != nil {
		t.Fatalf("retreat: %v", err)
	}
	if s.CursorIndex != 1 {
		t.Fatalf("cursor = %d", s.CursorIndex)
	}
	if s.HighestIndex != 2 {
		t.Fatal("retreat must not lower highest index")
	}
}

func TestJumpToRules(t *testing.T) {
	s := newTestSession()
	s.CursorIndex = 2
	s.HighestIndex = 2

	// Back to reached ground is always allowed.
	if err := s.JumpTo(0); err != nil {
		t.Fatalf("jump back: %v", err)
	}

	// Ahead of highest to an incomplete step is rejected.
	if err := s.JumpTo(4); err == nil {
		t.Fatal("expected rejection jumping ahead to incomplete step")
	}

	// Ahead of highest to a completed step is allowed.
	completeStep(s.Steps[4])
	if err := s.JumpTo(4); err != nil {
		t.Fatalf("jump to completed step: %v", err)
	}
	if s.HighestIndex != 4 {
		t.Fatalf("highest = %d", s.HighestIndex)
	}

	if err := s.JumpTo(99); err == nil {
		t.Fatal("expected rejection for out-of-range index")
	}
}

func TestReadyForSignatures(t *testing.T) {
	s := newTestSession()
	if s.ReadyForSignatures() {
		t.Fatal("fresh session must not be ready")
	}

	// Completing three of four required steps is not enough.
	completeStep(s.Steps[0])
	completeStep(s.Steps[1])
	completeStep(s.Steps[2])
	if s.ReadyForSignatures() {
		t.Fatal("missing required step must block signatures")
	}

	completeStep(s.Steps[3])
	if !s.ReadyForSignatures() {
		t.Fatal("all required steps complete, optional steps empty: must be ready")
	}
}

func TestSignatureGateOrdering(t *testing.T) {
	s := newTestSession()

	if got := s.SignaturePhase(); got != PhaseAwaitingOperator {
		t.Fatalf("phase = %s", got)
	}

	// Counterparty before operator is always a violation.
	if err := s.ValidateSignature(RoleCounterparty); err == nil {
		t.Fatal("expected SignatureOrderViolation")
	}

	if err := s.ValidateSignature(RoleOperator); err != nil {
		t.Fatalf("operator signature should be valid: %v", err)
	}
	s.Signatures = append(s.Signatures, &Signature{Role: RoleOperator, SignedAt: time.Now()})

	if got := s.SignaturePhase(); got != PhaseAwaitingCounterparty {
		t.Fatalf("phase = %s", got)
	}
	if err := s.ValidateSignature(RoleOperator); err == nil {
		t.Fatal("double operator signature must be rejected")
	}

	if err := s.ValidateSignature(RoleCounterparty); err != nil {
		t.Fatalf("counterparty signature should be valid: %v", err)
	}
	s.Signatures = append(s.Signatures, &Signature{Role: RoleCounterparty, SignedAt: time.Now()})

	if got := s.SignaturePhase(); got != PhaseSatisfied {
		t.Fatalf("phase = %s", got)
	}
	if err := s.ValidateSignature(RoleCounterparty); err == nil {
		t.Fatal("double counterparty signature must be rejected")
	}
}

func TestLockedSessionRejectsNavigation(t *testing.T) {
	s := newTestSession()
	s.State = StateLocked
	now := time.Now()
	s.LockedAt = &now

	if err := s.Advance(); !IsLocked(err) {
		t.Fatalf("advance on locked session: %v", err)
	}
	if err := s.Retreat(); !IsLocked(err) {
		t.Fatalf("retreat on locked session: %v", err)
	}
	if err := s.JumpTo(0); !IsLocked(err) {
		t.Fatalf("jump on locked session: %v", err)
	}
}

func TestCatalogueValidate(t *testing.T) {
	if err := DefaultCatalogue().Validate(); err != nil {
		t.Fatalf("default catalogue invalid: %v", err)
	}

	cases := []struct {
		name string
		cat  Catalogue
	}{
		{"empty", Catalogue{}},
		{"duplicate type", Catalogue{
			{Type: "front", Label: "Front", Required: true},
			{Type: "front", Label: "Front again", Required: true},
		}},
		{"no required", Catalogue{
			{Type: "interior", Label: "Interior", Required: false},
		}},
		{"missing label", Catalogue{
			{Type: "front", Required: true},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cat.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadCatalogueDefaultsOnEmptyPath(t *testing.T) {
	cat, err := LoadCatalogue("")
	if err != nil {
		t.Fatalf("LoadCatalogue: %v", err)
	}
	if len(cat) != 6 {
		t.Fatalf("len = %d", len(cat))
	}
	if cat[0].Type != "front" || !cat[0].Required {
		t.Fatalf("first step = %+v", cat[0])
	}
}

func TestLoadCatalogueFromFile(t *testing.T) {
	path := t.TempDir() + "/steps.yaml"
	doc := `steps:
  - type: front
    label: Front view
    required: true
  - type: trunk
    label: Open trunk
    required: false
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cat, err := LoadCatalogue(path)
	if err != nil {
		t.Fatalf("LoadCatalogue: %v", err)
	}
	if len(cat) != 2 {
		t.Fatalf("len = %d", len(cat))
	}
	if cat[1].Type != "trunk" || cat[1].Required {
		t.Fatalf("second step = %+v", cat[1])
	}
}

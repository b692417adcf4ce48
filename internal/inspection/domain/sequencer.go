package domain

import "fleetgate/platform/apperr"

// Sequencer navigation over a session's ordered steps. The cursor moves
// freely over reached ground; jumping ahead of incomplete required work is
// rejected. Cursor movement never mutates step data.

// CurrentStep returns the step at the cursor.
func (s *Session) CurrentStep() *PhotoStep {
	return s.StepAt(s.CursorIndex)
}

// Advance moves the cursor forward one position. At the last step it is
// rejected with a StepsIncomplete error while required steps are missing,
// and is a no-op once they are all complete.
func (s *Session) Advance() error {
	if err := s.EnsureMutable(); err != nil {
		return err
	}

	if s.CursorIndex >= len(s.Steps)-1 {
		if missing := s.MissingRequired(); len(missing) > 0 {
			return ErrStepsIncomplete(missing)
		}
		return nil
	}

	s.CursorIndex++
	if s.CursorIndex > s.HighestIndex {
		s.HighestIndex = s.CursorIndex
	}
	return nil
}

// Retreat moves the cursor back one position. No-op at the first step;
// rejected once the session is locked.
func (s *Session) Retreat() error {
	if err := s.EnsureMutable(); err != nil {
		return err
	}
	if s.CursorIndex > 0 {
		s.CursorIndex--
	}
	return nil
}

// JumpTo moves the cursor to an arbitrary index. Allowed only to a step
// already reached or already completed, so finished work can be reviewed
// freely without skipping ahead of pending required steps.
func (s *Session) JumpTo(index int) error {
	if err := s.EnsureMutable(); err != nil {
		return err
	}

	step := s.StepAt(index)
	if step == nil {
		return apperr.BadRequest("step index out of range")
	}

	if index > s.HighestIndex && !step.Complete() {
		return ErrStepsIncomplete(s.MissingRequired())
	}

	s.CursorIndex = index
	if index > s.HighestIndex {
		s.HighestIndex = index
	}
	return nil
}

// MissingRequired lists the step types of required steps that are not yet
// complete, in catalogue order.
func (s *Session) MissingRequired() []string {
	var missing []string
	for _, step := range s.Steps {
		if step.Required && !step.Complete() {
			missing = append(missing, step.StepType)
		}
	}
	return missing
}

// ReadyForSignatures reports whether every required step is complete.
// Optional steps may remain empty.
func (s *Session) ReadyForSignatures() bool {
	return len(s.MissingRequired()) == 0
}

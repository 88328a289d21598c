package authcore

import (
	"time"

	"github.com/google/uuid"
)

// StepUpProof attests that a user passed a two-factor check recently.
// Sensitive operations on two-factor accounts require a proof no older
// than the configured step-up window.
type StepUpProof struct {
	UserID     uuid.UUID
	VerifiedAt time.Time
}

// StepUpGuard decides whether a sensitive operation may proceed for a
// given user. Accounts without two-factor enabled always pass.
type StepUpGuard struct {
	window time.Duration
}

// NewStepUpGuard returns a guard with the given freshness window.
func NewStepUpGuard(window time.Duration) StepUpGuard {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return StepUpGuard{window: window}
}

// Check returns ErrStepUpRequired when the user has two-factor enabled
// and the proof is missing, belongs to another user, or is stale.
func (g StepUpGuard) Check(user User, proof *StepUpProof) error {
	return g.CheckAt(user, proof, time.Now())
}

// CheckAt is Check with an explicit clock.
func (g StepUpGuard) CheckAt(user User, proof *StepUpProof, now time.Time) error {
	if !user.TwoFactorEnabled {
		return nil
	}
	if proof == nil || proof.UserID != user.ID {
		return ErrStepUpRequired
	}
	if now.Sub(proof.VerifiedAt) > g.window {
		return ErrStepUpRequired
	}
	return nil
}

package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionForward(t *testing.T) {
	cases := []struct {
		from       Step
		wantNext   Step
		wantEffect Effect
	}{
		{StepSelectingSeats, StepSelectingCombos, EffectCreateSession},
		{StepSelectingCombos, StepConfirmingOrder, EffectReplaceCombos},
		{StepConfirmingOrder, StepAwaitingPayment, EffectRedeemPoints},
		{StepAwaitingPayment, StepAwaitingPayment, EffectBeginPayment},
	}
	for _, tc := range cases {
		next, eff := Transition(tc.from, ActionAdvance)
		assert.Equal(t, tc.wantNext, next, "advance from %s", tc.from)
		assert.Equal(t, tc.wantEffect, eff, "advance from %s", tc.from)
	}
}

func TestTransitionBackAlwaysRestartsAndCancels(t *testing.T) {
	for _, from := range []Step{StepSelectingCombos, StepConfirmingOrder, StepAwaitingPayment} {
		next, eff := Transition(from, ActionBack)
		assert.Equal(t, StepSelectingSeats, next, "back from %s", from)
		assert.Equal(t, EffectCancelSession, eff, "back from %s", from)
	}
	// no session on the seat step, nothing to cancel
	next, eff := Transition(StepSelectingSeats, ActionBack)
	assert.Equal(t, StepSelectingSeats, next)
	assert.Equal(t, EffectNone, eff)
}

func TestTransitionExpireMirrorsBack(t *testing.T) {
	for _, from := range []Step{StepSelectingCombos, StepConfirmingOrder, StepAwaitingPayment} {
		next, eff := Transition(from, ActionExpire)
		assert.Equal(t, StepSelectingSeats, next)
		assert.Equal(t, EffectCancelSession, eff)
	}
}

func TestTransitionPaymentOutcomes(t *testing.T) {
	next, eff := Transition(StepAwaitingPayment, ActionPaymentSucceeded)
	assert.Equal(t, StepSucceeded, next)
	assert.Equal(t, EffectFinish, eff)

	next, eff = Transition(StepAwaitingPayment, ActionPaymentFailed)
	assert.Equal(t, StepAwaitingPayment, next, "failed payment keeps the session for retry")
	assert.Equal(t, EffectNone, eff)

	// payment signals outside the payment step are stray events
	next, eff = Transition(StepSelectingCombos, ActionPaymentSucceeded)
	assert.Equal(t, StepSelectingCombos, next)
	assert.Equal(t, EffectNone, eff)
}

func TestTransitionTerminalStepIsInert(t *testing.T) {
	for _, action := range []Action{ActionAdvance, ActionBack, ActionExpire, ActionPaymentFailed} {
		next, eff := Transition(StepSucceeded, action)
		assert.Equal(t, StepSucceeded, next, "action %d", action)
		assert.Equal(t, EffectNone, eff)
	}
}

func TestHasSession(t *testing.T) {
	assert.False(t, HasSession(StepSelectingSeats))
	assert.True(t, HasSession(StepSelectingCombos))
	assert.True(t, HasSession(StepConfirmingOrder))
	assert.True(t, HasSession(StepAwaitingPayment))
	assert.False(t, HasSession(StepSucceeded))
}

func TestClampRestoreNeverEntersPayment(t *testing.T) {
	assert.Equal(t, StepSelectingCombos, ClampRestore(StepSelectingCombos))
	assert.Equal(t, StepConfirmingOrder, ClampRestore(StepConfirmingOrder))
	assert.Equal(t, StepConfirmingOrder, ClampRestore(StepAwaitingPayment))
	assert.Equal(t, StepConfirmingOrder, ClampRestore(StepSucceeded))
	assert.Equal(t, StepSelectingSeats, ClampRestore(Step(0)))
}

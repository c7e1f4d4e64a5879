package checkout

// Step is the position of a booking attempt in the checkout pipeline.
// Steps only move forward through Advance; any backward movement destroys
// the session and restarts from seat selection, because seat holds are
// exclusive and time-bounded and editing a half-expired session in place
// is worse than starting over.
type Step int

const (
	// StepSelectingSeats is the entry step.  No session exists yet.
	StepSelectingSeats Step = iota + 1
	// StepSelectingCombos means a session exists and its seats are held.
	StepSelectingCombos
	// StepConfirmingOrder means combos are committed; points can be
	// applied here.
	StepConfirmingOrder
	// StepAwaitingPayment means totals are final and the customer is
	// headed to, or parked at, the payment provider.
	StepAwaitingPayment
	// StepSucceeded is terminal.  Payment is confirmed.
	StepSucceeded
)

func (s Step) String() string {
	switch s {
	case StepSelectingSeats:
		return "selecting_seats"
	case StepSelectingCombos:
		return "selecting_combos"
	case StepConfirmingOrder:
		return "confirming_order"
	case StepAwaitingPayment:
		return "awaiting_payment"
	case StepSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// Action is an input to the step machine.
type Action int

const (
	// ActionAdvance moves one step forward, committing the current
	// step's selections to the server.
	ActionAdvance Action = iota + 1
	// ActionBack abandons the attempt and returns to seat selection.
	ActionBack
	// ActionExpire is fired by the countdown timer or by a server
	// rejection reporting the hold lapsed.
	ActionExpire
	// ActionPaymentSucceeded is fired by the reconciler after the
	// provider confirmed payment.
	ActionPaymentSucceeded
	// ActionPaymentFailed is fired by the reconciler on a declined or
	// aborted payment.
	ActionPaymentFailed
)

// Effect names the single server operation a transition requires.  The
// machine only decides; the controller performs.
type Effect int

const (
	EffectNone Effect = iota
	// EffectCreateSession posts the seat selection and receives the
	// session id plus its hold deadline.
	EffectCreateSession
	// EffectReplaceCombos commits the full combo list.
	EffectReplaceCombos
	// EffectRedeemPoints commits the point redemption (zero for guests).
	EffectRedeemPoints
	// EffectBeginPayment obtains the provider redirect URL.
	EffectBeginPayment
	// EffectCancelSession releases the held seats server-side.
	EffectCancelSession
	// EffectFinish clears local state after a confirmed payment.
	EffectFinish
)

// Transition is the pure decision function of the checkout flow: given
// where the attempt is and what happened, it returns where the attempt
// goes and which server operation must be issued to get there.  It
// performs no I/O and touches no state, so every transition can be
// checked in isolation.
//
// Unrecognized (step, action) pairs return the current step with
// EffectNone, so a stray event can never derail the flow.
func Transition(step Step, action Action) (Step, Effect) {
	switch action {
	case ActionAdvance:
		switch step {
		case StepSelectingSeats:
			return StepSelectingCombos, EffectCreateSession
		case StepSelectingCombos:
			return StepConfirmingOrder, EffectReplaceCombos
		case StepConfirmingOrder:
			return StepAwaitingPayment, EffectRedeemPoints
		case StepAwaitingPayment:
			// Re-advancing from the payment step retries payment; the
			// step itself does not move until the provider confirms.
			return StepAwaitingPayment, EffectBeginPayment
		}
	case ActionBack:
		switch step {
		case StepSelectingCombos, StepConfirmingOrder, StepAwaitingPayment:
			return StepSelectingSeats, EffectCancelSession
		}
	case ActionExpire:
		switch step {
		case StepSelectingCombos, StepConfirmingOrder, StepAwaitingPayment:
			return StepSelectingSeats, EffectCancelSession
		}
	case ActionPaymentSucceeded:
		if step == StepAwaitingPayment {
			return StepSucceeded, EffectFinish
		}
	case ActionPaymentFailed:
		if step == StepAwaitingPayment {
			return StepAwaitingPayment, EffectNone
		}
	}
	return step, EffectNone
}

// HasSession reports whether a session exists at the given step, which is
// exactly the range of steps whose teardown must cancel server-side.
func HasSession(step Step) bool {
	return step >= StepSelectingCombos && step <= StepAwaitingPayment
}

// MaxRestoreStep caps how far a reloaded attempt may resume.  Payment and
// success are never restored from a mirror: only the provider return leg
// is allowed to assert anything payment-related.
const MaxRestoreStep = StepConfirmingOrder

// ClampRestore bounds a mirrored step to what reload recovery trusts.
func ClampRestore(s Step) Step {
	if s < StepSelectingSeats {
		return StepSelectingSeats
	}
	if s > MaxRestoreStep {
		return MaxRestoreStep
	}
	return s
}

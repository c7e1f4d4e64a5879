package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/minhvu/cinema-booking/internal/booking"
)

// CloseReason distinguishes the two ways a booking attempt leaves the
// screen without finishing.
type CloseReason int

const (
	// CloseTeardown is a permanent exit: tab closed, navigated away.
	// The session, if live, is cancelled best-effort and the mirror
	// cleared.
	CloseTeardown CloseReason = iota
	// CloseRestart is an exit the attempt expects to come back from,
	// the reload case.  The session is left alive and a marker tells
	// the next load to restore instead of starting fresh.
	CloseRestart
)

// Controller runs one booking attempt from seat selection to a settled
// payment.  It owns the attempt's entire mutable state, including the
// guard flags that were easy to get wrong as loose globals: the one-shot
// cancel guard, the skip-cleanup flag armed before a payment redirect,
// and the busy flag that serializes mutating calls.  Construct one per
// attempt and Close it when the attempt leaves the screen.
type Controller struct {
	client *Client
	store  Store
	timer  *Timer
	key    string

	screeningID     uint64
	customerID      *uint64
	pointValueCents uint32

	mu             sync.Mutex
	step           Step
	busy           bool
	closed         bool
	cancelIssued   bool
	skipCleanup    bool
	expireDeferred bool

	bookingID   string
	expiresAt   time.Time
	seats       []uint64
	combos      []ComboLine
	points      uint32
	session     *Session
	redirectURL string

	// OnExpired, when set, is invoked after the countdown lapses and
	// the attempt has been reset to seat selection.  It always runs
	// off the caller's goroutine.
	OnExpired func()
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithCustomer attaches a member identity so points can be redeemed.
func WithCustomer(id uint64) ControllerOption {
	return func(c *Controller) { c.customerID = &id }
}

// WithPointValue overrides the monetary value of one loyalty point used
// for the client-side courtesy clamp.
func WithPointValue(cents uint32) ControllerOption {
	return func(c *Controller) { c.pointValueCents = cents }
}

// NewController builds a Controller for one attempt at the given
// screening.
func NewController(client *Client, store Store, screeningID uint64, opts ...ControllerOption) *Controller {
	c := &Controller{
		client:          client,
		store:           store,
		timer:           NewTimer(),
		key:             MirrorKey(screeningID),
		screeningID:     screeningID,
		pointValueCents: 1000,
		step:            StepSelectingSeats,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Step returns the attempt's current step.
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Session returns the latest authoritative session snapshot, nil before
// one exists.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// BookingID returns the active session's public identifier, empty before
// a session exists.
func (c *Controller) BookingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bookingID
}

// RedirectURL returns the provider redirect URL obtained by the last
// successful entry into payment, empty before one exists.
func (c *Controller) RedirectURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redirectURL
}

// SelectSeats records the seat selection for the next Advance.  Legal
// only on the seat step; a session's seats are immutable once held.
func (c *Controller) SelectSeats(seatIDs []uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepSelectingSeats {
		return flowErr(KindValidation, "seats are fixed once held")
	}
	c.seats = append([]uint64(nil), seatIDs...)
	return nil
}

// SelectCombos records the combo selection for the next Advance.
func (c *Controller) SelectCombos(lines []ComboLine) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepSelectingCombos {
		return flowErr(KindValidation, "combos can only change on the combo step")
	}
	c.combos = append([]ComboLine(nil), lines...)
	return nil
}

// RequestPoints records how many points the customer wants to redeem.
// The value is clamped against the balance and discount caps right
// before sending; the server re-checks and rejects rather than clamps,
// so the clamp here is a courtesy, not the enforcement.
func (c *Controller) RequestPoints(points uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepConfirmingOrder {
		return flowErr(KindValidation, "points can only change on the confirmation step")
	}
	c.points = points
	return nil
}

// Advance commits the current step's selections and moves forward.  Each
// call issues exactly one server operation, decided by the transition
// table.  Errors leave the step where it was, except expiry, which
// resets the attempt.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	if err := c.acquireLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	step := c.step
	c.mu.Unlock()
	defer c.release()

	next, effect := Transition(step, ActionAdvance)
	var err error
	switch effect {
	case EffectCreateSession:
		err = c.createSession(ctx)
	case EffectReplaceCombos:
		err = c.replaceCombos(ctx)
	case EffectRedeemPoints:
		err = c.redeemPoints(ctx)
	case EffectBeginPayment:
		// Same contract as BeginPayment: keep the redirect URL
		// retrievable and arm the skip-cleanup flag, since the caller
		// is about to navigate out to the provider.
		var url string
		url, err = c.beginPayment(ctx)
		if err == nil {
			c.mu.Lock()
			c.redirectURL = url
			c.skipCleanup = true
			c.mu.Unlock()
		}
	default:
		return flowErr(KindValidation, "nothing to advance from "+step.String())
	}
	if err != nil {
		if IsKind(err, KindSessionExpired) {
			c.resetExpired(ctx)
		}
		return err
	}
	c.commit(next)
	return nil
}

// Back abandons the attempt and returns to seat selection.  The session
// is cancelled server-side first; there is no partial rollback of a held
// session, a choice that keeps expiry races out of the edit paths.
func (c *Controller) Back(ctx context.Context) error {
	c.mu.Lock()
	if err := c.acquireLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	step := c.step
	c.mu.Unlock()
	defer c.release()

	next, effect := Transition(step, ActionBack)
	if effect == EffectCancelSession {
		c.cancelOnce(ctx)
	}
	c.resetTo(next)
	return nil
}

// BeginPayment obtains the provider redirect URL and arms the
// skip-cleanup flag, so the teardown the outbound navigation triggers
// does not cancel the very session being paid for.
func (c *Controller) BeginPayment(ctx context.Context) (string, error) {
	c.mu.Lock()
	if err := c.acquireLocked(); err != nil {
		c.mu.Unlock()
		return "", err
	}
	if c.step != StepAwaitingPayment {
		c.mu.Unlock()
		c.release()
		return "", flowErr(KindValidation, "payment starts from the payment step")
	}
	c.mu.Unlock()
	defer c.release()

	url, err := c.beginPayment(ctx)
	if err != nil {
		if IsKind(err, KindSessionExpired) {
			c.resetExpired(ctx)
		}
		return "", err
	}
	c.mu.Lock()
	c.redirectURL = url
	c.skipCleanup = true
	c.mu.Unlock()
	return url, nil
}

// ApplyPaymentOutcome feeds a settled provider result into the attempt.
// On success the attempt finishes: timer stopped, mirror cleared, step
// terminal.  On failure the attempt stays on the payment step with its
// session intact so payment can be retried until the hold runs out.
func (c *Controller) ApplyPaymentOutcome(outcome *PaymentOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Disarm; the attempt is back from the provider either way.
	c.skipCleanup = false
	if outcome.Paid {
		// Adopt the booking id from the outcome when the redirect cost
		// us the in-memory one.
		if c.bookingID == "" {
			c.bookingID = outcome.BookingID
		}
		c.step = StepSucceeded
		c.timer.Stop()
		_ = c.store.Clear(c.key)
		return
	}
	if outcome.Status == "EXPIRED" || outcome.Status == "CANCELLED" {
		c.step = StepSelectingSeats
		c.clearAttemptLocked()
	}
}

// Expire forces the lapsed-hold path, the same one the countdown timer
// takes: cancel best-effort, clear local state, back to seat selection.
// When a mutation is in flight the expiry is deferred: the mutation's
// response lands first, then release re-enters here to cancel and reset,
// so a late success can never resurrect a lapsed attempt.
func (c *Controller) Expire(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.busy {
		c.expireDeferred = true
		c.mu.Unlock()
		return
	}
	_, effect := Transition(c.step, ActionExpire)
	c.mu.Unlock()
	if effect == EffectCancelSession {
		c.cancelOnce(ctx)
	}
	c.resetTo(StepSelectingSeats)
}

// Close tears the attempt down.  CloseTeardown cancels a live session
// unless the skip-cleanup flag is armed for an in-flight payment
// redirect; CloseRestart leaves the session alive and writes the restart
// marker so the next load restores instead of cancelling.  Close is
// idempotent.
func (c *Controller) Close(ctx context.Context, reason CloseReason) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	step := c.step
	skip := c.skipCleanup
	c.mu.Unlock()

	c.timer.Stop()
	switch reason {
	case CloseRestart:
		if HasSession(step) {
			_ = c.store.SetRestartMarker(c.key)
		}
	default:
		if HasSession(step) && !skip {
			c.cancelOnce(ctx)
			_ = c.store.Clear(c.key)
		}
	}
}

// Restore resumes an attempt from the mirror after a restart.  It only
// acts when the restart marker is present, and never trusts the mirror
// alone: the session is re-fetched so the server, not a stale snapshot,
// decides whether the attempt is still alive.  The resumed step is
// capped at confirmation; payment state is only ever entered through the
// provider return leg.
func (c *Controller) Restore(ctx context.Context) (bool, error) {
	if !c.store.TakeRestartMarker(c.key) {
		return false, nil
	}
	snap, err := c.store.Load(c.key)
	if err != nil {
		return false, nil
	}
	sess, err := c.client.GetSummary(ctx, snap.BookingID)
	if err != nil {
		_ = c.store.Clear(c.key)
		if IsKind(err, KindSessionExpired) {
			return false, nil
		}
		return false, err
	}
	if sess.Status != "PENDING" && sess.Status != "AWAITING_PAYMENT" {
		_ = c.store.Clear(c.key)
		return false, nil
	}
	if !sess.ExpiresAt.After(time.Now()) {
		_ = c.store.Clear(c.key)
		return false, nil
	}

	c.mu.Lock()
	c.bookingID = sess.BookingID
	c.expiresAt = sess.ExpiresAt
	c.session = sess
	c.seats = append([]uint64(nil), snap.SeatIDs...)
	c.combos = append([]ComboLine(nil), snap.Combos...)
	c.points = snap.PointsUsed
	c.step = ClampRestore(snap.Step)
	c.mu.Unlock()

	c.timer.Start(sess.ExpiresAt, c.handleTimerExpiry, nil)
	return true, nil
}

// StartCountdown registers a display callback for the countdown.  The
// expiry action itself is wired internally when the session is created.
func (c *Controller) StartCountdown(onTick func(time.Duration)) {
	c.mu.Lock()
	expiresAt := c.expiresAt
	has := HasSession(c.step)
	c.mu.Unlock()
	if has {
		c.timer.Start(expiresAt, c.handleTimerExpiry, onTick)
	}
}

func (c *Controller) handleTimerExpiry() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.Expire(ctx)
	if c.OnExpired != nil {
		c.OnExpired()
	}
}

// acquireLocked takes the busy flag.  Mutating operations on one session
// are strictly sequential; a second call while one is in flight is the
// double-submit bug, reported as such.
func (c *Controller) acquireLocked() error {
	if c.closed {
		return flowErr(KindValidation, "attempt is closed")
	}
	if c.busy {
		return flowErr(KindValidation, "another operation is in flight")
	}
	c.busy = true
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	deferred := c.expireDeferred
	c.expireDeferred = false
	c.mu.Unlock()
	if deferred {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Expire(ctx)
	}
}

func (c *Controller) createSession(ctx context.Context) error {
	c.mu.Lock()
	seats := append([]uint64(nil), c.seats...)
	c.mu.Unlock()
	if len(seats) == 0 {
		return flowErr(KindValidation, "select at least one seat")
	}
	sess, err := c.client.CreateSession(ctx, c.screeningID, seats, c.customerID)
	if err != nil {
		if IsKind(err, KindConflict) {
			// The selection lost the race.  Drop it; the caller must
			// re-fetch the map and pick again, never resubmit as-is.
			c.mu.Lock()
			c.seats = nil
			c.mu.Unlock()
		}
		return err
	}
	c.mu.Lock()
	c.bookingID = sess.BookingID
	c.expiresAt = sess.ExpiresAt
	c.session = sess
	c.cancelIssued = false
	c.mu.Unlock()
	c.timer.Start(sess.ExpiresAt, c.handleTimerExpiry, nil)
	return nil
}

func (c *Controller) replaceCombos(ctx context.Context) error {
	c.mu.Lock()
	id := c.bookingID
	combos := append([]ComboLine(nil), c.combos...)
	c.mu.Unlock()
	sess, err := c.client.ReplaceCombos(ctx, id, combos)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.session = sess
	c.points = 0 // a combo change invalidates any earlier redemption
	c.mu.Unlock()
	return nil
}

func (c *Controller) redeemPoints(ctx context.Context) error {
	c.mu.Lock()
	id := c.bookingID
	requested := c.points
	subtotal := uint32(0)
	if c.session != nil {
		subtotal = c.session.SubtotalCents
	}
	customerID := c.customerID
	c.mu.Unlock()

	send := uint32(0)
	if requested > 0 && customerID != nil {
		balance, err := c.client.FetchPointsBalance(ctx, *customerID)
		if err != nil {
			return err
		}
		send = booking.ClampPoints(requested, subtotal, balance, c.pointValueCents)
	}
	sess, err := c.client.RedeemPoints(ctx, id, send)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.session = sess
	c.points = sess.PointsRedeemed
	c.mu.Unlock()
	return nil
}

func (c *Controller) beginPayment(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.bookingID
	c.mu.Unlock()
	return c.client.Checkout(ctx, id)
}

// cancelOnce issues cancel-session at most once per session, whichever
// of back-navigation, expiry or teardown gets there first.  Best-effort:
// the server's own deadline frees the seats if the request never lands.
func (c *Controller) cancelOnce(ctx context.Context) {
	c.mu.Lock()
	id := c.bookingID
	if id == "" || c.cancelIssued {
		c.mu.Unlock()
		return
	}
	c.cancelIssued = true
	c.mu.Unlock()
	_ = c.client.Cancel(ctx, id)
}

// commit records a completed forward transition and mirrors the attempt
// from the combo step onward.
func (c *Controller) commit(next Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.step = next
	if next >= StepSelectingCombos && next < StepSucceeded {
		discount := uint32(0)
		if c.session != nil {
			discount = c.session.DiscountCents
		}
		_ = c.store.Save(c.key, Snapshot{
			BookingID:           c.bookingID,
			ScreeningID:         c.screeningID,
			Step:                next,
			SeatIDs:             append([]uint64(nil), c.seats...),
			Combos:              append([]ComboLine(nil), c.combos...),
			PointsUsed:          c.points,
			PointsDiscountCents: discount,
			ExpiresAt:           c.expiresAt,
		})
	}
	if next == StepSucceeded {
		c.timer.Stop()
		_ = c.store.Clear(c.key)
	}
}

func (c *Controller) resetExpired(ctx context.Context) {
	c.cancelOnce(ctx)
	c.resetTo(StepSelectingSeats)
}

func (c *Controller) resetTo(step Step) {
	c.timer.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = step
	c.clearAttemptLocked()
}

func (c *Controller) clearAttemptLocked() {
	c.bookingID = ""
	c.expiresAt = time.Time{}
	c.session = nil
	c.redirectURL = ""
	c.seats = nil
	c.combos = nil
	c.points = 0
	c.cancelIssued = false
	c.skipCleanup = false
	_ = c.store.Clear(c.key)
}

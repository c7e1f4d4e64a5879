package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory stand-in for the booking service, just enough
// behavior to drive the flow: one session at a time, a point balance of
// 80, and switches to force conflicts and expiry.
type fakeAPI struct {
	mu sync.Mutex

	createCalls   int
	combosCalls   int
	pointsCalls   int
	checkoutCalls int
	cancelCalls   int
	summaryCalls  int
	verifyCalls   int

	rejectSeats   []uint64 // when set, create fails with a conflict
	status        string
	expiresAt     time.Time
	subtotalCents uint32
	discountCents uint32
	points        uint32
	paid          bool // outcome for verify-return

	// stall hooks: entered receives one element when the handler is
	// reached, gate blocks the response until closed
	combosEntered chan struct{}
	combosGate    chan struct{}
	verifyEntered chan struct{}
	verifyGate    chan struct{}
}

// stall signals arrival on entered and holds the response on gate.  Run
// outside f.mu so parallel requests keep flowing while one is held.
func stall(entered, gate chan struct{}) {
	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
}

const fakeBookingID = "bk-0001"

func newFakeAPI() *fakeAPI {
	return &fakeAPI{status: "", expiresAt: time.Now().Add(5 * time.Minute).UTC()}
}

func (f *fakeAPI) session() map[string]interface{} {
	return map[string]interface{}{
		"booking_id":      fakeBookingID,
		"screening_id":    7,
		"status":          f.status,
		"subtotal_cents":  f.subtotalCents,
		"discount_cents":  f.discountCents,
		"total_cents":     f.subtotalCents - f.discountCents,
		"points_redeemed": f.points,
		"expires_at":      f.expiresAt.Format(time.RFC3339),
	}
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	writeJSON := func(w http.ResponseWriter, status int, body interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/screenings/{id}/sessions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.createCalls++
		if len(f.rejectSeats) > 0 {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error": "some seats are unavailable", "code": "SEAT_UNAVAILABLE", "unavailable": f.rejectSeats,
			})
			return
		}
		f.status = "PENDING"
		f.subtotalCents = 200000
		writeJSON(w, http.StatusCreated, f.session())
	})
	mux.HandleFunc("PUT /v1/sessions/{code}/combos", func(w http.ResponseWriter, r *http.Request) {
		stall(f.combosEntered, f.combosGate)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.combosCalls++
		if f.expired() {
			writeJSON(w, http.StatusGone, map[string]string{"error": "session expired", "code": "SESSION_EXPIRED"})
			return
		}
		var body struct {
			Combos []struct {
				Quantity uint32 `json:"quantity"`
			} `json:"combos"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.subtotalCents = 200000
		for _, l := range body.Combos {
			f.subtotalCents += 50000 * l.Quantity
		}
		f.discountCents, f.points = 0, 0
		writeJSON(w, http.StatusOK, f.session())
	})
	mux.HandleFunc("POST /v1/sessions/{code}/points", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.pointsCalls++
		var body struct {
			Points uint32 `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		// balance is 80; anything above must have slipped past the clamp
		if body.Points > 80 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": "insufficient point balance", "code": "INSUFFICIENT_POINTS",
			})
			return
		}
		f.points = body.Points
		f.discountCents = body.Points * 1000
		writeJSON(w, http.StatusOK, f.session())
	})
	mux.HandleFunc("POST /v1/sessions/{code}/checkout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.checkoutCalls++
		f.status = "AWAITING_PAYMENT"
		writeJSON(w, http.StatusOK, map[string]string{
			"redirect_url": "https://pay.example.com/checkout?vnp_TxnRef=" + fakeBookingID,
		})
	})
	mux.HandleFunc("DELETE /v1/sessions/{code}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancelCalls++
		f.status = "CANCELLED"
		writeJSON(w, http.StatusOK, map[string]string{"status": "CANCELLED"})
	})
	mux.HandleFunc("GET /v1/sessions/{code}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.summaryCalls++
		if f.status == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found", "code": "SESSION_NOT_FOUND"})
			return
		}
		if f.expired() {
			f.status = "EXPIRED"
		}
		writeJSON(w, http.StatusOK, f.session())
	})
	mux.HandleFunc("GET /v1/customers/{id}/points", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"customer_id": 42, "points_balance": 80})
	})
	mux.HandleFunc("GET /v1/payment/return", func(w http.ResponseWriter, r *http.Request) {
		stall(f.verifyEntered, f.verifyGate)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.verifyCalls++
		if f.paid {
			f.status = "PAID"
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"booking_id": fakeBookingID, "status": "PAID", "paid": true, "payment_ref": fakeBookingID,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"booking_id": fakeBookingID, "status": f.status, "paid": false,
			"provider_code": "24", "provider_message": "customer cancelled",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeAPI) expired() bool {
	return f.status == "EXPIRED" || !f.expiresAt.After(time.Now())
}

func newTestController(t *testing.T, api *fakeAPI) (*Controller, *MemStore) {
	t.Helper()
	srv := api.server(t)
	store := NewMemStore()
	ctrl := NewController(NewClient(srv.URL, ""), store, 7, WithCustomer(42))
	t.Cleanup(func() { ctrl.Close(context.Background(), CloseTeardown) })
	return ctrl, store
}

func advanceToConfirm(t *testing.T, ctx context.Context, ctrl *Controller) {
	t.Helper()
	require.NoError(t, ctrl.SelectSeats([]uint64{11, 12}))
	require.NoError(t, ctrl.Advance(ctx))
	require.NoError(t, ctrl.SelectCombos([]ComboLine{{ComboID: 3, Quantity: 2}}))
	require.NoError(t, ctrl.Advance(ctx))
}

func TestFullFlowToPaid(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.paid = true
	ctrl, store := newTestController(t, api)

	advanceToConfirm(t, ctx, ctrl)
	assert.Equal(t, StepConfirmingOrder, ctrl.Step())
	assert.Equal(t, uint32(300000), ctrl.Session().SubtotalCents)

	// requesting more points than the balance gets clamped before the
	// wire; the fake rejects anything over 80, so success proves it
	require.NoError(t, ctrl.RequestPoints(100))
	require.NoError(t, ctrl.Advance(ctx))
	assert.Equal(t, StepAwaitingPayment, ctrl.Step())
	assert.Equal(t, uint32(80), ctrl.Session().PointsRedeemed)
	assert.Equal(t, uint32(80000), ctrl.Session().DiscountCents)

	url, err := ctrl.BeginPayment(ctx)
	require.NoError(t, err)
	assert.Contains(t, url, "vnp_TxnRef")

	outcome := &PaymentOutcome{BookingID: fakeBookingID, Status: "PAID", Paid: true}
	ctrl.ApplyPaymentOutcome(outcome)
	assert.Equal(t, StepSucceeded, ctrl.Step())

	_, err = store.Load(MirrorKey(7))
	assert.ErrorIs(t, err, ErrNoSnapshot, "the mirror is cleared on success")

	ctrl.Close(ctx, CloseTeardown)
	assert.Zero(t, api.cancelCalls, "a paid attempt is never cancelled")
}

func TestSeatConflictClearsSelection(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.rejectSeats = []uint64{12}
	ctrl, store := newTestController(t, api)

	require.NoError(t, ctrl.SelectSeats([]uint64{11, 12}))
	err := ctrl.Advance(ctx)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConflict))
	fe := err.(*FlowError)
	assert.Equal(t, []uint64{12}, fe.Unavailable)

	assert.Equal(t, StepSelectingSeats, ctrl.Step(), "conflict stays on the seat step")
	_, loadErr := store.Load(MirrorKey(7))
	assert.ErrorIs(t, loadErr, ErrNoSnapshot)

	// retrying the same set blindly must fail validation, the stale
	// selection was dropped
	err = ctrl.Advance(ctx)
	assert.True(t, IsKind(err, KindValidation))
	assert.Equal(t, 1, api.createCalls, "no automatic retry of the conflicted set")
}

func TestMirrorWrittenFromComboStepOnward(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	ctrl, store := newTestController(t, api)

	require.NoError(t, ctrl.SelectSeats([]uint64{11}))
	require.NoError(t, ctrl.Advance(ctx))

	snap, err := store.Load(MirrorKey(7))
	require.NoError(t, err)
	assert.Equal(t, fakeBookingID, snap.BookingID)
	assert.Equal(t, StepSelectingCombos, snap.Step)
	assert.Equal(t, []uint64{11}, snap.SeatIDs)
}

func TestBackCancelsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	ctrl, store := newTestController(t, api)

	advanceToConfirm(t, ctx, ctrl)
	require.NoError(t, ctrl.Back(ctx))
	assert.Equal(t, StepSelectingSeats, ctrl.Step())
	assert.Equal(t, 1, api.cancelCalls)
	_, err := store.Load(MirrorKey(7))
	assert.ErrorIs(t, err, ErrNoSnapshot)

	// teardown after an explicit back must not cancel again
	ctrl.Close(ctx, CloseTeardown)
	assert.Equal(t, 1, api.cancelCalls)
}

func TestTeardownCancelsLiveSession(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	ctrl, _ := newTestController(t, api)

	advanceToConfirm(t, ctx, ctrl)
	ctrl.Close(ctx, CloseTeardown)
	assert.Equal(t, 1, api.cancelCalls)

	// Close is idempotent
	ctrl.Close(ctx, CloseTeardown)
	assert.Equal(t, 1, api.cancelCalls)
}

func TestTeardownSkippedDuringPaymentRedirect(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	ctrl, _ := newTestController(t, api)

	advanceToConfirm(t, ctx, ctrl)
	require.NoError(t, ctrl.Advance(ctx)) // commit points, enter payment
	_, err := ctrl.BeginPayment(ctx)
	require.NoError(t, err)

	// the outbound navigation tears the attempt down, but the session
	// must survive for the provider to settle
	ctrl.Close(ctx, CloseTeardown)
	assert.Zero(t, api.cancelCalls)
}

func TestExpireResetsAndCancels(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	ctrl, store := newTestController(t, api)

	advanceToConfirm(t, ctx, ctrl)
	ctrl.Expire(ctx)
	assert.Equal(t, StepSelectingSeats, ctrl.Step())
	assert.Equal(t, 1, api.cancelCalls)
	_, err := store.Load(MirrorKey(7))
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Empty(t, ctrl.BookingID())
}

func TestServerReportedExpiryMatchesLocal(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	ctrl, _ := newTestController(t, api)

	require.NoError(t, ctrl.SelectSeats([]uint64{11}))
	require.NoError(t, ctrl.Advance(ctx))

	// the hold lapses server-side while the attempt idles
	api.mu.Lock()
	api.expiresAt = time.Now().Add(-time.Minute)
	api.mu.Unlock()

	require.NoError(t, ctrl.SelectCombos(nil))
	err := ctrl.Advance(ctx)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSessionExpired))
	assert.Equal(t, StepSelectingSeats, ctrl.Step(), "server expiry forces the restart path")
}

func TestRestoreResumesUpToConfirmation(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	srv := api.server(t)
	store := NewMemStore()

	first := NewController(NewClient(srv.URL, ""), store, 7, WithCustomer(42))
	advanceToConfirm(t, ctx, first)
	first.Close(ctx, CloseRestart)
	assert.Zero(t, api.cancelCalls, "a restart never cancels the session")

	second := NewController(NewClient(srv.URL, ""), store, 7, WithCustomer(42))
	t.Cleanup(func() { second.Close(context.Background(), CloseTeardown) })
	restored, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, StepConfirmingOrder, second.Step())
	assert.Equal(t, fakeBookingID, second.BookingID())
	assert.GreaterOrEqual(t, api.summaryCalls, 1, "restore revalidates against the server")
	assert.Equal(t, 1, api.createCalls, "restore never re-creates the session")
}

func TestRestoreWithoutMarkerDoesNothing(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	ctrl, store := newTestController(t, api)

	// a mirror without the restart marker is a leftover from a
	// teardown that failed to clean up, not a restart
	require.NoError(t, store.Save(MirrorKey(7), Snapshot{BookingID: fakeBookingID, Step: StepSelectingCombos}))
	restored, err := ctrl.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, StepSelectingSeats, ctrl.Step())
	assert.Zero(t, api.summaryCalls)
}

func TestRestoreOfExpiredSessionStartsFresh(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	srv := api.server(t)
	store := NewMemStore()

	first := NewController(NewClient(srv.URL, ""), store, 7, WithCustomer(42))
	advanceToConfirm(t, ctx, first)
	first.Close(ctx, CloseRestart)

	api.mu.Lock()
	api.expiresAt = time.Now().Add(-time.Minute)
	api.mu.Unlock()

	second := NewController(NewClient(srv.URL, ""), store, 7, WithCustomer(42))
	t.Cleanup(func() { second.Close(context.Background(), CloseTeardown) })
	restored, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, restored, "an expired session is never resumed")
	assert.Equal(t, StepSelectingSeats, second.Step())
	_, loadErr := store.Load(MirrorKey(7))
	assert.ErrorIs(t, loadErr, ErrNoSnapshot)
}

func TestPaymentFailureKeepsSessionForRetry(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	ctrl, _ := newTestController(t, api)

	advanceToConfirm(t, ctx, ctrl)
	require.NoError(t, ctrl.Advance(ctx))
	_, err := ctrl.BeginPayment(ctx)
	require.NoError(t, err)

	ctrl.ApplyPaymentOutcome(&PaymentOutcome{
		BookingID: fakeBookingID, Status: "AWAITING_PAYMENT", Paid: false,
		ProviderCode: "24", ProviderMessage: "customer cancelled",
	})
	assert.Equal(t, StepAwaitingPayment, ctrl.Step())
	assert.Equal(t, fakeBookingID, ctrl.BookingID())

	// the retry goes out against the same session
	url, err := ctrl.BeginPayment(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, 1, api.createCalls)
}

func TestExpiryDuringInFlightMutationDefersReset(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.combosEntered = make(chan struct{}, 1)
	api.combosGate = make(chan struct{})
	ctrl, store := newTestController(t, api)

	require.NoError(t, ctrl.SelectSeats([]uint64{11, 12}))
	require.NoError(t, ctrl.Advance(ctx))
	require.NoError(t, ctrl.SelectCombos([]ComboLine{{ComboID: 3, Quantity: 2}}))

	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Advance(ctx) }()
	<-api.combosEntered

	// the hold lapses while the combo update is still on the wire
	ctrl.Expire(ctx)
	close(api.combosGate)

	require.NoError(t, <-errCh, "the in-flight response still lands")
	assert.Equal(t, StepSelectingSeats, ctrl.Step(), "expiry wins over the late success")
	assert.Empty(t, ctrl.BookingID())
	assert.Equal(t, 1, api.cancelCalls)
	_, err := store.Load(MirrorKey(7))
	assert.ErrorIs(t, err, ErrNoSnapshot, "a late commit must not rewrite the mirror")
}

func TestAdvanceIntoPaymentArmsRedirect(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	ctrl, _ := newTestController(t, api)

	advanceToConfirm(t, ctx, ctrl)
	require.NoError(t, ctrl.Advance(ctx))
	assert.Equal(t, StepAwaitingPayment, ctrl.Step())

	// the uniform Advance path obtains the same redirect BeginPayment does
	require.NoError(t, ctrl.Advance(ctx))
	assert.Contains(t, ctrl.RedirectURL(), "vnp_TxnRef")
	assert.Equal(t, StepAwaitingPayment, ctrl.Step())

	ctrl.Close(ctx, CloseTeardown)
	assert.Zero(t, api.cancelCalls, "teardown after the redirect keeps the session alive")
}

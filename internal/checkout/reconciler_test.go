package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPaymentReturn(t *testing.T) {
	assert.True(t, HasPaymentReturn("vnp_TxnRef=bk-1&vnp_ResponseCode=00&vnp_SecureHash=abc"))
	assert.False(t, HasPaymentReturn("vnp_TxnRef=bk-1"), "unsigned parameters are not a return")
	assert.False(t, HasPaymentReturn("tab=combos"))
	assert.False(t, HasPaymentReturn(""))
	assert.False(t, HasPaymentReturn("%zz"))
}

func TestReconcileVerifiesOnce(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.paid = true
	srv := api.server(t)
	rec := NewReconciler(NewClient(srv.URL, ""))

	raw := "vnp_TxnRef=" + fakeBookingID + "&vnp_ResponseCode=00&vnp_SecureHash=sig"
	first, err := rec.Reconcile(ctx, nil, raw)
	require.NoError(t, err)
	assert.True(t, first.Paid)

	// the refresh and the back-button replay the same URL
	second, err := rec.Reconcile(ctx, nil, raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, api.verifyCalls, "one load verifies once")
}

func TestReconcileConcurrentCallsShareOneVerification(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.paid = true
	srv := api.server(t)
	rec := NewReconciler(NewClient(srv.URL, ""))

	raw := "vnp_TxnRef=" + fakeBookingID + "&vnp_ResponseCode=00&vnp_SecureHash=sig"
	outcomes := make([]*PaymentOutcome, 8)
	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = rec.Reconcile(ctx, nil, raw)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, api.verifyCalls)
	for i := range outcomes {
		require.NoError(t, errs[i])
		require.NotNil(t, outcomes[i], "every caller gets the stored outcome")
		assert.True(t, outcomes[i].Paid)
	}
}

func TestReconcileLateCallerWaitsForInFlightVerification(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.paid = true
	api.verifyEntered = make(chan struct{}, 1)
	api.verifyGate = make(chan struct{})
	srv := api.server(t)
	rec := NewReconciler(NewClient(srv.URL, ""))

	raw := "vnp_TxnRef=" + fakeBookingID + "&vnp_ResponseCode=00&vnp_SecureHash=sig"
	firstCh := make(chan *PaymentOutcome, 1)
	go func() {
		outcome, _ := rec.Reconcile(ctx, nil, raw)
		firstCh <- outcome
	}()
	<-api.verifyEntered

	type result struct {
		outcome *PaymentOutcome
		err     error
	}
	secondCh := make(chan result, 1)
	go func() {
		outcome, err := rec.Reconcile(ctx, nil, raw)
		secondCh <- result{outcome, err}
	}()

	// the late caller must block until the verification settles, never
	// hand back a result that has not been stored yet
	select {
	case <-secondCh:
		t.Fatal("second caller returned before the verification settled")
	case <-time.After(50 * time.Millisecond):
	}

	close(api.verifyGate)
	first := <-firstCh
	second := <-secondCh
	require.NoError(t, second.err)
	require.NotNil(t, second.outcome)
	assert.Equal(t, first, second.outcome)
	assert.Equal(t, 1, api.verifyCalls)
}

func TestReconcileDrivesControllerToSucceeded(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.paid = true
	srv := api.server(t)
	store := NewMemStore()
	client := NewClient(srv.URL, "")

	ctrl := NewController(client, store, 7, WithCustomer(42))
	t.Cleanup(func() { ctrl.Close(context.Background(), CloseTeardown) })
	advanceToConfirm(t, ctx, ctrl)
	require.NoError(t, ctrl.Advance(ctx))
	_, err := ctrl.BeginPayment(ctx)
	require.NoError(t, err)

	rec := NewReconciler(client)
	outcome, err := rec.Reconcile(ctx, ctrl, "vnp_TxnRef="+fakeBookingID+"&vnp_ResponseCode=00&vnp_SecureHash=sig")
	require.NoError(t, err)
	assert.True(t, outcome.Paid)
	assert.Equal(t, StepSucceeded, ctrl.Step())
	_, loadErr := store.Load(MirrorKey(7))
	assert.ErrorIs(t, loadErr, ErrNoSnapshot)
}

func TestReconcileFailureLeavesSessionAlive(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	srv := api.server(t)
	store := NewMemStore()
	client := NewClient(srv.URL, "")

	ctrl := NewController(client, store, 7, WithCustomer(42))
	t.Cleanup(func() { ctrl.Close(context.Background(), CloseTeardown) })
	advanceToConfirm(t, ctx, ctrl)
	require.NoError(t, ctrl.Advance(ctx))
	_, err := ctrl.BeginPayment(ctx)
	require.NoError(t, err)

	rec := NewReconciler(client)
	outcome, err := rec.Reconcile(ctx, ctrl, "vnp_TxnRef="+fakeBookingID+"&vnp_ResponseCode=24&vnp_SecureHash=sig")
	require.NoError(t, err)
	assert.False(t, outcome.Paid)
	assert.Equal(t, "24", outcome.ProviderCode)
	assert.Equal(t, StepAwaitingPayment, ctrl.Step(), "a declined payment keeps the step for retry")
	assert.Zero(t, api.cancelCalls)
}

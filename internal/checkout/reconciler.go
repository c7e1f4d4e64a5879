package checkout

import (
	"context"
	"net/url"
	"sync"
)

// HasPaymentReturn reports whether a raw query string carries the
// provider's return parameters.  It is the cheap detection check run
// once per load; verification is the server's job.
func HasPaymentReturn(rawQuery string) bool {
	vals, err := url.ParseQuery(rawQuery)
	if err != nil {
		return false
	}
	return vals.Get("vnp_TxnRef") != "" && vals.Get("vnp_SecureHash") != ""
}

// Reconciler resolves the return leg of a payment redirect exactly once.
// Browsers refresh and back-button their way onto the same return URL
// repeatedly; the server's verify endpoint is idempotent, but the
// reconciler still guards locally so one load produces one verification
// and every repeat observer gets the cached outcome.
type Reconciler struct {
	client *Client

	mu      sync.Mutex
	started bool
	ready   chan struct{}
	outcome *PaymentOutcome
	err     error
}

// NewReconciler returns a Reconciler bound to the given API client.
func NewReconciler(client *Client) *Reconciler {
	return &Reconciler{client: client, ready: make(chan struct{})}
}

// Reconcile verifies the provider return once and feeds the settled
// outcome into the controller.  Subsequent calls return the first call's
// result without another verification; a call arriving while the first
// verification is still in flight blocks until it settles, so no caller
// ever sees a result that has not been stored.
func (r *Reconciler) Reconcile(ctx context.Context, ctrl *Controller, rawQuery string) (*PaymentOutcome, error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		select {
		case <-r.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		r.mu.Lock()
		outcome, err := r.outcome, r.err
		r.mu.Unlock()
		return outcome, err
	}
	r.started = true
	r.mu.Unlock()

	outcome, err := r.client.VerifyReturn(ctx, rawQuery)
	if err == nil && ctrl != nil {
		ctrl.ApplyPaymentOutcome(outcome)
	}
	r.mu.Lock()
	r.outcome, r.err = outcome, err
	r.mu.Unlock()
	close(r.ready)

	if err != nil {
		return nil, err
	}
	return outcome, nil
}

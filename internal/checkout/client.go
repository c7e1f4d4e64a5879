package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Session is the booking snapshot the API returns from every session
// endpoint.
type Session struct {
	BookingID      string      `json:"booking_id"`
	ScreeningID    uint64      `json:"screening_id"`
	CustomerID     *uint64     `json:"customer_id,omitempty"`
	Status         string      `json:"status"`
	Seats          []SeatLine  `json:"seats,omitempty"`
	Combos         []ComboLine `json:"combos,omitempty"`
	SubtotalCents  uint32      `json:"subtotal_cents"`
	DiscountCents  uint32      `json:"discount_cents"`
	TotalCents     uint32      `json:"total_cents"`
	PointsRedeemed uint32      `json:"points_redeemed"`
	ExpiresAt      time.Time   `json:"expires_at"`
}

// SeatLine is one held seat in a session snapshot.
type SeatLine struct {
	SeatID     uint64 `json:"seat_id"`
	RowLabel   string `json:"row_label"`
	SeatNumber uint32 `json:"seat_number"`
	PriceCents uint32 `json:"price_cents"`
}

// ComboLine is one concession line on a session.
type ComboLine struct {
	ComboID        uint64 `json:"combo_id"`
	Name           string `json:"name,omitempty"`
	Quantity       uint32 `json:"quantity"`
	UnitPriceCents uint32 `json:"unit_price_cents,omitempty"`
}

// SeatMapEntry is one seat of a screening's availability map.
type SeatMapEntry struct {
	SeatID     uint64 `json:"seat_id"`
	RowLabel   string `json:"row_label"`
	SeatNumber uint32 `json:"seat_number"`
	SeatType   string `json:"seat_type"`
	Status     string `json:"status"`
	PriceCents uint32 `json:"price_cents"`
}

// SeatMap is a screening's full availability map.
type SeatMap struct {
	ScreeningID uint64         `json:"screening_id"`
	MovieTitle  string         `json:"movie_title"`
	StartsAt    string         `json:"starts_at"`
	Seats       []SeatMapEntry `json:"seats"`
}

// Combo is one entry of the concession menu.
type Combo struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	PriceCents uint32 `json:"price_cents"`
}

// PaymentOutcome is the settled result of a provider return leg.
type PaymentOutcome struct {
	BookingID       string  `json:"booking_id"`
	Status          string  `json:"status"`
	Paid            bool    `json:"paid"`
	PaymentRef      *string `json:"payment_ref,omitempty"`
	TotalCents      uint32  `json:"total_cents,omitempty"`
	ProviderCode    string  `json:"provider_code,omitempty"`
	ProviderMessage string  `json:"provider_message,omitempty"`
}

// Client is a thin HTTP client for the booking API.  It performs no
// retries: a failed mutation is reported and left for the caller to
// re-issue deliberately, because blind retry of create-session can
// double-hold seats.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a Client for the API at baseURL.  token, when
// non-empty, is sent as a Bearer token so the server can attach the
// member identity to created sessions.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateSession holds the given seats for a screening and returns the new
// session with its expiry deadline.
func (c *Client) CreateSession(ctx context.Context, screeningID uint64, seatIDs []uint64, customerID *uint64) (*Session, error) {
	body := map[string]interface{}{"seat_ids": seatIDs}
	if customerID != nil {
		body["customer_id"] = *customerID
	}
	var out Session
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/v1/screenings/%d/sessions", screeningID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplaceCombos commits the full combo list for a session.
func (c *Client) ReplaceCombos(ctx context.Context, bookingID string, combos []ComboLine) (*Session, error) {
	lines := make([]map[string]interface{}, 0, len(combos))
	for _, l := range combos {
		lines = append(lines, map[string]interface{}{"combo_id": l.ComboID, "quantity": l.Quantity})
	}
	var out Session
	if err := c.call(ctx, http.MethodPut, "/v1/sessions/"+bookingID+"/combos", map[string]interface{}{"combos": lines}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RedeemPoints applies a point redemption to a session.  Zero points
// clears any previous redemption.
func (c *Client) RedeemPoints(ctx context.Context, bookingID string, points uint32) (*Session, error) {
	var out Session
	if err := c.call(ctx, http.MethodPost, "/v1/sessions/"+bookingID+"/points", map[string]interface{}{"points": points}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Checkout moves the session to AWAITING_PAYMENT and returns the signed
// provider redirect URL.
func (c *Client) Checkout(ctx context.Context, bookingID string) (string, error) {
	var out struct {
		RedirectURL string `json:"redirect_url"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/sessions/"+bookingID+"/checkout", map[string]interface{}{}, &out); err != nil {
		return "", err
	}
	return out.RedirectURL, nil
}

// Cancel releases the session's seat holds.  Cancelling an already
// cancelled or expired session is acknowledged, not an error.
func (c *Client) Cancel(ctx context.Context, bookingID string) error {
	return c.call(ctx, http.MethodDelete, "/v1/sessions/"+bookingID, nil, nil)
}

// GetSummary fetches the authoritative session snapshot.
func (c *Client) GetSummary(ctx context.Context, bookingID string) (*Session, error) {
	var out Session
	if err := c.call(ctx, http.MethodGet, "/v1/sessions/"+bookingID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyReturn passes the raw provider query string to the server, which
// alone decides whether the payment settled.
func (c *Client) VerifyReturn(ctx context.Context, rawQuery string) (*PaymentOutcome, error) {
	var out PaymentOutcome
	if err := c.call(ctx, http.MethodGet, "/v1/payment/return?"+rawQuery, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchSeatMap loads the current availability map for a screening.
func (c *Client) FetchSeatMap(ctx context.Context, screeningID uint64) (*SeatMap, error) {
	var out SeatMap
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/v1/screenings/%d/seats", screeningID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchComboMenu loads the active concession combos.
func (c *Client) FetchComboMenu(ctx context.Context) ([]Combo, error) {
	var out struct {
		Combos []Combo `json:"combos"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/combos", nil, &out); err != nil {
		return nil, err
	}
	return out.Combos, nil
}

// FetchPointsBalance loads a member's loyalty balance.
func (c *Client) FetchPointsBalance(ctx context.Context, customerID uint64) (uint32, error) {
	var out struct {
		PointsBalance uint32 `json:"points_balance"`
	}
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/v1/customers/%d/points", customerID), nil, &out); err != nil {
		return 0, err
	}
	return out.PointsBalance, nil
}

// apiError is the structured error payload the API returns.
type apiError struct {
	Error       string   `json:"error"`
	Code        string   `json:"code"`
	Unavailable []uint64 `json:"unavailable"`
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return flowErr(KindTransport, "encode request: "+err.Error())
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return flowErr(KindTransport, err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return flowErr(KindTransport, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return flowErr(KindTransport, "read response: "+err.Error())
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return flowErr(KindTransport, "decode response: "+err.Error())
		}
		return nil
	}

	var ae apiError
	_ = json.Unmarshal(raw, &ae)
	return classify(resp.StatusCode, ae)
}

// classify maps a structured API error onto the flow taxonomy.  The
// machine-readable code wins; the HTTP status is only a fallback for
// responses without one.
func classify(status int, ae apiError) *FlowError {
	msg := ae.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch ae.Code {
	case "SEAT_UNAVAILABLE":
		return &FlowError{Kind: KindConflict, Message: msg, Unavailable: ae.Unavailable}
	case "SESSION_NOT_FOUND", "SESSION_EXPIRED":
		return flowErr(KindSessionExpired, msg)
	case "INVALID_STATE":
		return flowErr(KindConflict, msg)
	case "VALIDATION", "CAP_EXCEEDED", "INSUFFICIENT_POINTS":
		return flowErr(KindValidation, msg)
	case "PAYMENT_FAILED":
		return flowErr(KindPaymentFailure, msg)
	}
	switch {
	case status == http.StatusConflict:
		return flowErr(KindConflict, msg)
	case status == http.StatusGone || status == http.StatusNotFound:
		return flowErr(KindSessionExpired, msg)
	case status >= 400 && status < 500:
		return flowErr(KindValidation, msg)
	}
	return flowErr(KindTransport, msg)
}

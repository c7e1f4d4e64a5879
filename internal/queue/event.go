// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records confirmed bookings.
package queue

// BookingConfirmedEvent is published when a booking session is paid.  It
// contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
    SessionCode    string   `json:"session_code"`
    CustomerID     *uint64  `json:"customer_id,omitempty"`
    ScreeningID    uint64   `json:"screening_id"`
    MovieTitle     string   `json:"movie_title"`
    SeatLabels     []string `json:"seats"`
    SubtotalCents  uint32   `json:"subtotal_cents"`
    DiscountCents  uint32   `json:"discount_cents"`
    TotalCents     uint32   `json:"total_cents"`
    PointsRedeemed uint32   `json:"points_redeemed"`
    PaymentRef     string   `json:"payment_ref"`
    PaidAt         string   `json:"paid_at"`
}

// SeatsReleasedEvent is published when a session is cancelled or expires,
// so interested consumers (waitlist notifiers, dashboards) learn that the
// seats are sellable again without polling the seat map.
type SeatsReleasedEvent struct {
    SessionCode string   `json:"session_code"`
    ScreeningID uint64   `json:"screening_id"`
    SeatIDs     []uint64 `json:"seat_ids"`
    Reason      string   `json:"reason"` // "cancelled" or "expired"
    ReleasedAt  string   `json:"released_at"`
}

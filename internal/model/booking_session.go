package model

import "time"

// Booking session statuses.  Transitions are strictly forward: a session
// that leaves PENDING never returns to it; a terminal status (PAID,
// CANCELLED, EXPIRED) is never reverted.  A customer who backs out simply
// starts a fresh session.
const (
    SessionPending         = "PENDING"
    SessionAwaitingPayment = "AWAITING_PAYMENT"
    SessionPaid            = "PAID"
    SessionCancelled       = "CANCELLED"
    SessionExpired         = "EXPIRED"
)

// BookingSession is the server-side record of an in-flight booking: the
// seats it holds exclusively, the combos and loyalty points attached to it,
// and the deadline after which the hold lapses.  This struct corresponds to
// a row in the `booking_sessions` table.
//
// Fields:
//  ID             – primary key identifier.
//  PublicCode     – opaque identifier handed to clients; immutable.
//  CustomerID     – owning customer; nil for guest checkout.
//  ScreeningID    – screening the seats are reserved against; immutable.
//  Status         – one of the Session* constants above.
//  SubtotalCents  – seats plus combos, before any discount.
//  DiscountCents  – value of redeemed points.
//  TotalCents     – subtotal minus discount.
//  PointsRedeemed – loyalty points converted into the discount.
//  ExpiresAt      – when the server unilaterally expires the session.
//  PaymentRef     – provider transaction reference once paid.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type BookingSession struct {
    ID             uint64     // booking_sessions.id
    PublicCode     string     // booking_sessions.public_code
    CustomerID     *uint64    // booking_sessions.customer_id (nullable)
    ScreeningID    uint64     // booking_sessions.screening_id
    Status         string     // booking_sessions.status
    SubtotalCents  uint32     // booking_sessions.subtotal_cents
    DiscountCents  uint32     // booking_sessions.discount_cents
    TotalCents     uint32     // booking_sessions.total_cents
    PointsRedeemed uint32     // booking_sessions.points_redeemed
    ExpiresAt      time.Time  // booking_sessions.expires_at
    PaymentRef     *string    // booking_sessions.payment_ref (nullable)
    CreatedAt      time.Time  // booking_sessions.created_at
    UpdatedAt      time.Time  // booking_sessions.updated_at
}

// SessionCombo is one combo line item on a booking session.  Lines keep
// their insertion order via Position so a replace round-trips losslessly.
//
// Fields:
//  ID             – primary key identifier.
//  SessionID      – owning booking session.
//  ComboID        – combo from the menu.
//  Quantity       – number of units, always >= 1.
//  UnitPriceCents – menu price captured at selection time.
//  Position       – zero-based order within the session.
type SessionCombo struct {
    ID             uint64 // session_combos.id
    SessionID      uint64 // session_combos.session_id
    ComboID        uint64 // session_combos.combo_id
    Quantity       uint32 // session_combos.quantity
    UnitPriceCents uint32 // session_combos.unit_price_cents
    Position       uint32 // session_combos.position
}

package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/minhvu/cinema-booking/internal/model"
)

// SessionRepo provides data access to booking_sessions and its child
// tables (session_seats, session_combos).  All methods operate in UTC.
// Mutating methods are transactional building blocks; handlers own the
// transaction so that the sweep of stale sessions, the availability check
// and the insert all commit or roll back together.
type SessionRepo struct {
    db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the provided database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying handle so handlers can begin transactions.
func (r *SessionRepo) DB() *sql.DB { return r.db }

// ExpireStaleTx transitions every PENDING or AWAITING_PAYMENT session for
// the given screening whose expires_at has passed to EXPIRED and returns
// the seat IDs those sessions were holding.  Callers must flip the
// returned seats back to FREE on screening_seats within the same
// transaction.  When nothing is stale it returns an empty slice and nil.
func (r *SessionRepo) ExpireStaleTx(ctx context.Context, tx *sql.Tx, screeningID uint64) ([]uint64, error) {
    rows, err := tx.QueryContext(ctx,
        `SELECT ss.seat_id
         FROM session_seats ss
         JOIN booking_sessions b ON b.id = ss.session_id
         WHERE b.screening_id = ? AND b.status IN ('PENDING','AWAITING_PAYMENT')
           AND b.expires_at <= UTC_TIMESTAMP()`,
        screeningID,
    )
    if err != nil {
        return nil, err
    }
    var seatIDs []uint64
    for rows.Next() {
        var sid uint64
        if scanErr := rows.Scan(&sid); scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        seatIDs = append(seatIDs, sid)
    }
    if err = rows.Close(); err != nil {
        return nil, err
    }
    if len(seatIDs) == 0 {
        return []uint64{}, nil
    }
    _, err = tx.ExecContext(ctx,
        `UPDATE booking_sessions SET status = 'EXPIRED'
         WHERE screening_id = ? AND status IN ('PENDING','AWAITING_PAYMENT')
           AND expires_at <= UTC_TIMESTAMP()`,
        screeningID,
    )
    if err != nil {
        return nil, err
    }
    return seatIDs, nil
}

// CreateTx inserts a new booking session and its seat rows within the
// scope of an existing transaction.  It populates the generated ID and
// timestamps on the provided record.  Seat prices must already have been
// resolved by the caller (FilterFreeSeatsTx).  Status should be PENDING.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec *model.BookingSession, seatPrices map[uint64]uint32, seatIDs []uint64) error {
    const q = `INSERT INTO booking_sessions
               (public_code, customer_id, screening_id, status, subtotal_cents, discount_cents, total_cents, points_redeemed, expires_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
    var customerID interface{}
    if rec.CustomerID != nil {
        customerID = *rec.CustomerID
    }
    result, err := tx.ExecContext(ctx, q,
        rec.PublicCode, customerID, rec.ScreeningID, rec.Status,
        rec.SubtotalCents, rec.DiscountCents, rec.TotalCents, rec.PointsRedeemed,
        rec.ExpiresAt.UTC().Format("2006-01-02 15:04:05"),
    )
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    rec.ID = uint64(id)
    if len(seatIDs) == 0 {
        return nil
    }
    query := `INSERT INTO session_seats (session_id, screening_id, seat_id, price_cents) VALUES `
    args := make([]interface{}, 0, len(seatIDs)*4)
    for i, sid := range seatIDs {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?)"
        args = append(args, rec.ID, rec.ScreeningID, sid, seatPrices[sid])
    }
    _, err = tx.ExecContext(ctx, query, args...)
    return err
}

// GetByCodeTx loads a session by public code with a row lock so that
// concurrent mutations against the same session serialize.  It returns
// ErrSessionNotFound when no row matches.  Expiry is NOT evaluated here;
// use CheckLive for that.
func (r *SessionRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.BookingSession, error) {
    const q = `SELECT id, public_code, customer_id, screening_id, status,
                      subtotal_cents, discount_cents, total_cents, points_redeemed,
                      expires_at, payment_ref, created_at, updated_at
               FROM booking_sessions WHERE public_code = ? FOR UPDATE`
    return r.scanOne(tx.QueryRowContext(ctx, q, code))
}

// GetByCode loads a session by public code without locking.  Used by the
// read-only summary endpoint.
func (r *SessionRepo) GetByCode(ctx context.Context, code string) (*model.BookingSession, error) {
    const q = `SELECT id, public_code, customer_id, screening_id, status,
                      subtotal_cents, discount_cents, total_cents, points_redeemed,
                      expires_at, payment_ref, created_at, updated_at
               FROM booking_sessions WHERE public_code = ?`
    return r.scanOne(r.db.QueryRowContext(ctx, q, code))
}

func (r *SessionRepo) scanOne(row *sql.Row) (*model.BookingSession, error) {
    var rec model.BookingSession
    var customerID sql.NullInt64
    var paymentRef sql.NullString
    err := row.Scan(
        &rec.ID, &rec.PublicCode, &customerID, &rec.ScreeningID, &rec.Status,
        &rec.SubtotalCents, &rec.DiscountCents, &rec.TotalCents, &rec.PointsRedeemed,
        &rec.ExpiresAt, &paymentRef, &rec.CreatedAt, &rec.UpdatedAt,
    )
    if err == sql.ErrNoRows {
        return nil, ErrSessionNotFound
    }
    if err != nil {
        return nil, err
    }
    if customerID.Valid {
        cid := uint64(customerID.Int64)
        rec.CustomerID = &cid
    }
    if paymentRef.Valid {
        ref := paymentRef.String
        rec.PaymentRef = &ref
    }
    return &rec, nil
}

// CheckLive reports whether a locked session can still be mutated.  A
// session past its deadline, or already CANCELLED/EXPIRED, answers with
// ErrSessionExpired regardless of how the client got here: the server is
// the authority, local timers are advisory.  A PAID session answers with
// ErrInvalidState.
func CheckLive(rec *model.BookingSession, now time.Time) error {
    switch rec.Status {
    case model.SessionCancelled, model.SessionExpired:
        return ErrSessionExpired
    case model.SessionPaid:
        return ErrInvalidState
    }
    if !rec.ExpiresAt.After(now.UTC()) {
        return ErrSessionExpired
    }
    return nil
}

// SeatIDsTx returns the seat IDs held by a session.
func (r *SessionRepo) SeatIDsTx(ctx context.Context, tx *sql.Tx, sessionID uint64) ([]uint64, error) {
    rows, err := tx.QueryContext(ctx, `SELECT seat_id FROM session_seats WHERE session_id = ?`, sessionID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var seatIDs []uint64
    for rows.Next() {
        var sid uint64
        if err := rows.Scan(&sid); err != nil {
            return nil, err
        }
        seatIDs = append(seatIDs, sid)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seatIDs, nil
}

// SeatSubtotalTx returns the sum of the prices of the seats a session
// holds.  Combo replacement recomputes the subtotal from this plus the new
// combo lines.
func (r *SessionRepo) SeatSubtotalTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (uint32, error) {
    var subtotal uint32
    err := tx.QueryRowContext(ctx,
        `SELECT COALESCE(SUM(price_cents), 0) FROM session_seats WHERE session_id = ?`,
        sessionID,
    ).Scan(&subtotal)
    return subtotal, err
}

// ReplaceCombosTx deletes the session's combo lines and inserts the given
// ones in order.  Replace semantics keep the client contract simple: the
// client always sends the full desired list, never a delta.
func (r *SessionRepo) ReplaceCombosTx(ctx context.Context, tx *sql.Tx, sessionID uint64, lines []model.SessionCombo) error {
    if _, err := tx.ExecContext(ctx, `DELETE FROM session_combos WHERE session_id = ?`, sessionID); err != nil {
        return err
    }
    if len(lines) == 0 {
        return nil
    }
    query := `INSERT INTO session_combos (session_id, combo_id, quantity, unit_price_cents, position) VALUES `
    args := make([]interface{}, 0, len(lines)*5)
    for i, l := range lines {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?)"
        args = append(args, sessionID, l.ComboID, l.Quantity, l.UnitPriceCents, i)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// UpdateTotalsTx writes recomputed money fields back to the session row.
func (r *SessionRepo) UpdateTotalsTx(ctx context.Context, tx *sql.Tx, sessionID uint64, subtotal, discount, total, points uint32) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE booking_sessions
         SET subtotal_cents = ?, discount_cents = ?, total_cents = ?, points_redeemed = ?
         WHERE id = ?`,
        subtotal, discount, total, points, sessionID,
    )
    return err
}

// UpdateStatusTx advances the session status.  Callers must have verified
// the transition is legal; the repository does not re-check.
func (r *SessionRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, sessionID uint64, status string) error {
    _, err := tx.ExecContext(ctx, `UPDATE booking_sessions SET status = ? WHERE id = ?`, status, sessionID)
    return err
}

// SetPaidTx marks the session PAID and records the provider transaction
// reference in one statement.
func (r *SessionRepo) SetPaidTx(ctx context.Context, tx *sql.Tx, sessionID uint64, paymentRef string) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE booking_sessions SET status = 'PAID', payment_ref = ? WHERE id = ?`,
        paymentRef, sessionID,
    )
    return err
}

// ComboLine pairs a combo line with its menu name for summary responses.
type ComboLine struct {
    ComboID        uint64 `json:"combo_id"`
    Name           string `json:"name"`
    Quantity       uint32 `json:"quantity"`
    UnitPriceCents uint32 `json:"unit_price_cents"`
}

// CombosBySession returns the session's combo lines in position order.
func (r *SessionRepo) CombosBySession(ctx context.Context, sessionID uint64) ([]ComboLine, error) {
    const q = `SELECT sc.combo_id, c.name, sc.quantity, sc.unit_price_cents
               FROM session_combos sc
               JOIN combos c ON c.id = sc.combo_id
               WHERE sc.session_id = ?
               ORDER BY sc.position`
    rows, err := r.db.QueryContext(ctx, q, sessionID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    lines := make([]ComboLine, 0)
    for rows.Next() {
        var l ComboLine
        if err := rows.Scan(&l.ComboID, &l.Name, &l.Quantity, &l.UnitPriceCents); err != nil {
            return nil, err
        }
        lines = append(lines, l)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return lines, nil
}

// SeatLine pairs a held seat with its label for summary responses.
type SeatLine struct {
    SeatID     uint64 `json:"seat_id"`
    RowLabel   string `json:"row_label"`
    SeatNumber uint32 `json:"seat_number"`
    PriceCents uint32 `json:"price_cents"`
}

// SeatsBySession returns the seats a session holds, ordered by row and
// number for deterministic output.
func (r *SessionRepo) SeatsBySession(ctx context.Context, sessionID uint64) ([]SeatLine, error) {
    const q = `SELECT ss.seat_id, se.row_label, se.seat_number, ss.price_cents
               FROM session_seats ss
               JOIN seats se ON se.id = ss.seat_id
               WHERE ss.session_id = ?
               ORDER BY se.row_label, se.seat_number`
    rows, err := r.db.QueryContext(ctx, q, sessionID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    seats := make([]SeatLine, 0)
    for rows.Next() {
        var s SeatLine
        if err := rows.Scan(&s.SeatID, &s.RowLabel, &s.SeatNumber, &s.PriceCents); err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seats, nil
}

package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/minhvu/cinema-booking/internal/model"
)

// ScreeningRepo encapsulates database operations for screenings and their
// per-screening seat inventory (screening_seats).
type ScreeningRepo struct {
    db *sql.DB
}

// NewScreeningRepo constructs a ScreeningRepo given a DB handle.
func NewScreeningRepo(db *sql.DB) *ScreeningRepo { return &ScreeningRepo{db: db} }

// DB exposes the underlying handle so handlers can begin transactions.
func (r *ScreeningRepo) DB() *sql.DB { return r.db }

// GetByID returns a single screening.  It returns ErrScreeningNotFound
// when the row does not exist.
func (r *ScreeningRepo) GetByID(ctx context.Context, id uint64) (*model.Screening, error) {
    const q = `SELECT id, movie_title, starts_at, base_price_cents, status FROM screenings WHERE id = ?`
    var s model.Screening
    err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.MovieTitle, &s.StartsAt, &s.BasePriceCents, &s.Status)
    if err == sql.ErrNoRows {
        return nil, ErrScreeningNotFound
    }
    if err != nil {
        return nil, err
    }
    return &s, nil
}

// SeatStatus is one seat in the public seat map for a screening.
type SeatStatus struct {
    SeatID     uint64 `json:"seat_id"`
    RowLabel   string `json:"row_label"`
    SeatNumber uint32 `json:"seat_number"`
    SeatType   string `json:"seat_type"`
    Status     string `json:"status"`
    PriceCents uint32 `json:"price_cents"`
}

// SeatMap returns the full seat map for a screening, ordered by row and
// seat number.  Callers should sweep expired holds first so HELD reflects
// only live sessions.
func (r *ScreeningRepo) SeatMap(ctx context.Context, screeningID uint64) ([]SeatStatus, error) {
    const q = `SELECT ss.seat_id, se.row_label, se.seat_number, se.seat_type, ss.status, ss.price_cents
               FROM screening_seats ss
               JOIN seats se ON se.id = ss.seat_id
               WHERE ss.screening_id = ? AND se.is_active = 1
               ORDER BY se.row_label, se.seat_number`
    rows, err := r.db.QueryContext(ctx, q, screeningID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    seats := make([]SeatStatus, 0)
    for rows.Next() {
        var s SeatStatus
        if err := rows.Scan(&s.SeatID, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.Status, &s.PriceCents); err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seats, nil
}

// FilterFreeSeatsTx returns, among the requested seat IDs, those whose
// screening_seats row is FREE, together with their prices.  The rows are
// locked FOR UPDATE so two concurrent create-session calls for overlapping
// seats serialize and the loser sees HELD.
func (r *ScreeningRepo) FilterFreeSeatsTx(ctx context.Context, tx *sql.Tx, screeningID uint64, seatIDs []uint64) ([]uint64, map[uint64]uint32, error) {
    if len(seatIDs) == 0 {
        return []uint64{}, map[uint64]uint32{}, nil
    }
    placeholders := make([]string, 0, len(seatIDs))
    args := make([]interface{}, 0, len(seatIDs)+1)
    args = append(args, screeningID)
    for _, sid := range seatIDs {
        placeholders = append(placeholders, "?")
        args = append(args, sid)
    }
    q := `SELECT seat_id, price_cents FROM screening_seats
          WHERE screening_id = ? AND seat_id IN (` + strings.Join(placeholders, ",") + `)
            AND status = 'FREE'
          FOR UPDATE`
    rows, err := tx.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, nil, err
    }
    defer rows.Close()
    free := make([]uint64, 0, len(seatIDs))
    prices := make(map[uint64]uint32, len(seatIDs))
    for rows.Next() {
        var sid uint64
        var price uint32
        if err := rows.Scan(&sid, &price); err != nil {
            return nil, nil, err
        }
        free = append(free, sid)
        prices[sid] = price
    }
    if err := rows.Err(); err != nil {
        return nil, nil, err
    }
    return free, prices, nil
}

// BulkUpdateSeatStatusTx sets the status of the given seats for a
// screening.  Used to flip seats HELD on session create, back to FREE on
// cancel/expiry, and SOLD on payment.  Passing no seats is a no-op.
func (r *ScreeningRepo) BulkUpdateSeatStatusTx(ctx context.Context, tx *sql.Tx, screeningID uint64, seatIDs []uint64, status string) error {
    if len(seatIDs) == 0 {
        return nil
    }
    placeholders := make([]string, 0, len(seatIDs))
    args := make([]interface{}, 0, len(seatIDs)+2)
    args = append(args, status, screeningID)
    for _, sid := range seatIDs {
        placeholders = append(placeholders, "?")
        args = append(args, sid)
    }
    q := `UPDATE screening_seats SET status = ?, version = version + 1
          WHERE screening_id = ? AND seat_id IN (` + strings.Join(placeholders, ",") + `)`
    _, err := tx.ExecContext(ctx, q, args...)
    return err
}

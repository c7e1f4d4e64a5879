package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/minhvu/cinema-booking/internal/model"
)

// ComboRepo encapsulates database operations for the concession combo menu.
type ComboRepo struct {
    db *sql.DB
}

// NewComboRepo constructs a ComboRepo given a DB handle.
func NewComboRepo(db *sql.DB) *ComboRepo { return &ComboRepo{db: db} }

// ListActive returns the combos currently on the menu.
func (r *ComboRepo) ListActive(ctx context.Context) ([]model.Combo, error) {
    const q = `SELECT id, name, price_cents FROM combos WHERE is_active = 1 ORDER BY id`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    combos := make([]model.Combo, 0)
    for rows.Next() {
        var c model.Combo
        if err := rows.Scan(&c.ID, &c.Name, &c.PriceCents); err != nil {
            return nil, err
        }
        combos = append(combos, c)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return combos, nil
}

// PricesByIDsTx returns the unit prices for the given combo IDs, active
// combos only.  A requested ID missing from the result means the combo is
// unknown or has been retired; callers reject the line.
func (r *ComboRepo) PricesByIDsTx(ctx context.Context, tx *sql.Tx, comboIDs []uint64) (map[uint64]uint32, error) {
    if len(comboIDs) == 0 {
        return map[uint64]uint32{}, nil
    }
    placeholders := make([]string, 0, len(comboIDs))
    args := make([]interface{}, 0, len(comboIDs))
    for _, id := range comboIDs {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    q := `SELECT id, price_cents FROM combos
          WHERE is_active = 1 AND id IN (` + strings.Join(placeholders, ",") + `)`
    rows, err := tx.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    prices := make(map[uint64]uint32, len(comboIDs))
    for rows.Next() {
        var id uint64
        var price uint32
        if err := rows.Scan(&id, &price); err != nil {
            return nil, err
        }
        prices[id] = price
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return prices, nil
}

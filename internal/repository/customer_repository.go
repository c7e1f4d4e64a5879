package repository

import (
    "context"
    "database/sql"

    "github.com/minhvu/cinema-booking/internal/model"
)

// CustomerRepo encapsulates database operations for registered members and
// their loyalty point balances.
type CustomerRepo struct {
    db *sql.DB
}

// NewCustomerRepo constructs a CustomerRepo given a DB handle.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

// GetByID returns a single customer.  It returns ErrCustomerNotFound when
// the row does not exist.
func (r *CustomerRepo) GetByID(ctx context.Context, id uint64) (*model.Customer, error) {
    const q = `SELECT id, full_name, email, points_balance FROM customers WHERE id = ?`
    var c model.Customer
    err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.FullName, &c.Email, &c.PointsBalance)
    if err == sql.ErrNoRows {
        return nil, ErrCustomerNotFound
    }
    if err != nil {
        return nil, err
    }
    return &c, nil
}

// BalanceTx reads a customer's point balance with a row lock so a
// concurrent redemption cannot double-spend the same points.
func (r *CustomerRepo) BalanceTx(ctx context.Context, tx *sql.Tx, id uint64) (uint32, error) {
    var balance uint32
    err := tx.QueryRowContext(ctx, `SELECT points_balance FROM customers WHERE id = ? FOR UPDATE`, id).Scan(&balance)
    if err == sql.ErrNoRows {
        return 0, ErrCustomerNotFound
    }
    if err != nil {
        return 0, err
    }
    return balance, nil
}

// DeductPointsTx subtracts redeemed points from a customer's balance.  The
// WHERE guard keeps the balance from going negative even if a concurrent
// writer slipped past the row lock.
func (r *CustomerRepo) DeductPointsTx(ctx context.Context, tx *sql.Tx, id uint64, points uint32) error {
    if points == 0 {
        return nil
    }
    res, err := tx.ExecContext(ctx,
        `UPDATE customers SET points_balance = points_balance - ? WHERE id = ? AND points_balance >= ?`,
        points, id, points,
    )
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrInsufficientPoints
    }
    return nil
}

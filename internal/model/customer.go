package model

import "time"

// Customer is a registered member with a loyalty point balance.  Guests
// book without a customer record and cannot redeem points.  Corresponds to
// a row in the `customers` table.
//
// Fields:
//  ID            – primary key identifier.
//  FullName      – display name.
//  Email         – unique email address.
//  PointsBalance – current loyalty points available to redeem.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Customer struct {
    ID            uint64    // customers.id
    FullName      string    // customers.full_name
    Email         string    // customers.email
    PointsBalance uint32    // customers.points_balance
    CreatedAt     time.Time // customers.created_at
    UpdatedAt     time.Time // customers.updated_at
}

package model

// Combo is a concession menu item (popcorn, drinks, bundles) that can be
// attached to a booking session in any quantity.  Corresponds to a row in
// the `combos` table.
//
// Fields:
//  ID         – primary key identifier.
//  Name       – display name.
//  PriceCents – unit price in cents.
//  IsActive   – whether the combo is currently on the menu.
type Combo struct {
    ID         uint64 // combos.id
    Name       string // combos.name
    PriceCents uint32 // combos.price_cents
    IsActive   bool   // combos.is_active
}

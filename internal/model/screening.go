package model

import "time"

// Seat availability statuses on screening_seats.
const (
    SeatFree = "FREE"
    SeatHeld = "HELD"
    SeatSold = "SOLD"
)

// Screening represents a scheduled showing of a movie.  Seat inventory for
// a screening lives in the screening_seats table.  This struct corresponds
// to a row in the `screenings` table.
//
// Fields:
//  ID             – primary key identifier.
//  MovieTitle     – title shown to customers.
//  StartsAt       – when the screening begins.
//  BasePriceCents – default seat price in cents.
//  Status         – current state (SCHEDULED, CANCELLED, FINISHED).
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Screening struct {
    ID             uint64    // screenings.id
    MovieTitle     string    // screenings.movie_title
    StartsAt       time.Time // screenings.starts_at
    BasePriceCents uint32    // screenings.base_price_cents
    Status         string    // screenings.status
    CreatedAt      time.Time // screenings.created_at
    UpdatedAt      time.Time // screenings.updated_at
}

// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrInsufficientPoints indicates that a redemption asks for
// more than the balance holds, while ErrSessionExpired signals that the
// booking session's hold window has lapsed and its seats were released.
package repository

import "errors"

// ErrScreeningNotFound is returned when the referenced screening does not
// exist. Handlers should translate this into an HTTP 404 response.
var ErrScreeningNotFound = errors.New("screening not found")

// ErrSessionNotFound is returned when no booking session matches the given
// public code. Handlers should translate this into an HTTP 404 response.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is returned when an operation targets a session whose
// hold window has passed or that was already cancelled. The client treats
// this identically to a local timer expiry: back to seat selection.
var ErrSessionExpired = errors.New("session expired")

// ErrCustomerNotFound is returned when the referenced customer does not
// exist.
var ErrCustomerNotFound = errors.New("customer not found")

// ErrInsufficientPoints is returned when a redemption asks for more points
// than the customer's balance holds.
var ErrInsufficientPoints = errors.New("insufficient points")

// ErrInvalidState is returned when an operation is not legal for the
// session's current status, such as mutating combos after checkout or
// cancelling a paid session. Handlers should translate this into 409.
var ErrInvalidState = errors.New("invalid session state")

package handler // handler defines http handlers

import (
    "strconv" // strconv converts context values to numeric types

    "github.com/labstack/echo/v4" // echo defines request context types
)

// customerIDFromContext extracts the optional customer_id placed in the
// context by the identity middleware.  A nil result means guest checkout;
// it is never an error, because booking does not require an account.
func customerIDFromContext(c echo.Context) *uint64 {
    v := c.Get("customer_id")
    switch t := v.(type) {
    case uint64:
        return &t
    case int:
        id := uint64(t)
        return &id
    case int64:
        id := uint64(t)
        return &id
    case float64:
        id := uint64(t)
        return &id
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return &n
        }
    }
    return nil
}

// dedupeIDs removes zeros and duplicates from a list of identifiers while
// preserving order.
func dedupeIDs(ids []uint64) []uint64 {
    unique := make([]uint64, 0, len(ids))
    seen := make(map[uint64]struct{})
    for _, id := range ids {
        if id == 0 {
            continue
        }
        if _, ok := seen[id]; !ok {
            seen[id] = struct{}{}
            unique = append(unique, id)
        }
    }
    return unique
}

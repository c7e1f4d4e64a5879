package handler

import (
    "context"
    "database/sql"
    "errors"
    "log"
    "net/http"
    "strconv"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/minhvu/cinema-booking/internal/booking"
    "github.com/minhvu/cinema-booking/internal/model"
    "github.com/minhvu/cinema-booking/internal/payment"
    "github.com/minhvu/cinema-booking/internal/queue"
    "github.com/minhvu/cinema-booking/internal/repository"
)

// Machine-readable error codes included alongside the human message so the
// checkout client can classify failures without parsing prose.
const (
    CodeSeatUnavailable    = "SEAT_UNAVAILABLE"
    CodeSessionNotFound    = "SESSION_NOT_FOUND"
    CodeSessionExpired     = "SESSION_EXPIRED"
    CodeInvalidState       = "INVALID_STATE"
    CodeValidation         = "VALIDATION"
    CodeCapExceeded        = "CAP_EXCEEDED"
    CodeInsufficientPoints = "INSUFFICIENT_POINTS"
    CodePaymentFailed      = "PAYMENT_FAILED"
)

// BookingConfig carries the booking policy knobs the handlers need.
type BookingConfig struct {
    HoldTTL         time.Duration // seat hold window granted at session creation
    PointValueCents uint32        // monetary value of one loyalty point
}

// BookingHandler groups the repositories and collaborators required to run
// the booking session lifecycle: create with seat holds, mutate combos and
// points, cancel, and finalize after payment.  Critical DB operations run
// inside a transaction to guarantee atomicity; every mutating operation
// first sweeps expired sessions for the screening so stale holds never
// block live customers.
type BookingHandler struct {
    Cfg           BookingConfig
    SessionRepo   *repository.SessionRepo
    ScreeningRepo *repository.ScreeningRepo
    ComboRepo     *repository.ComboRepo
    CustomerRepo  *repository.CustomerRepo
    Gateway       *payment.Gateway
    Publisher     *queue.Publisher
}

// NewBookingHandler constructs a new BookingHandler with the provided
// dependencies.  All repositories must be non-nil.
func NewBookingHandler(cfg BookingConfig, sessionRepo *repository.SessionRepo, screeningRepo *repository.ScreeningRepo, comboRepo *repository.ComboRepo, customerRepo *repository.CustomerRepo, gateway *payment.Gateway, publisher *queue.Publisher) *BookingHandler {
    if sessionRepo == nil || screeningRepo == nil || comboRepo == nil || customerRepo == nil {
        panic("nil repository passed to NewBookingHandler")
    }
    return &BookingHandler{
        Cfg:           cfg,
        SessionRepo:   sessionRepo,
        ScreeningRepo: screeningRepo,
        ComboRepo:     comboRepo,
        CustomerRepo:  customerRepo,
        Gateway:       gateway,
        Publisher:     publisher,
    }
}

// sessionResponse is the summary shape shared by every session endpoint.
type sessionResponse struct {
    BookingID      string                   `json:"booking_id"`
    ScreeningID    uint64                   `json:"screening_id"`
    CustomerID     *uint64                  `json:"customer_id,omitempty"`
    Status         string                   `json:"status"`
    Seats          []repository.SeatLine    `json:"seats,omitempty"`
    Combos         []repository.ComboLine   `json:"combos,omitempty"`
    SubtotalCents  uint32                   `json:"subtotal_cents"`
    DiscountCents  uint32                   `json:"discount_cents"`
    TotalCents     uint32                   `json:"total_cents"`
    PointsRedeemed uint32                   `json:"points_redeemed"`
    ExpiresAt      string                   `json:"expires_at"`
    PaymentRef     *string                  `json:"payment_ref,omitempty"`
}

func sessionToResponse(rec *model.BookingSession) sessionResponse {
    return sessionResponse{
        BookingID:      rec.PublicCode,
        ScreeningID:    rec.ScreeningID,
        CustomerID:     rec.CustomerID,
        Status:         rec.Status,
        SubtotalCents:  rec.SubtotalCents,
        DiscountCents:  rec.DiscountCents,
        TotalCents:     rec.TotalCents,
        PointsRedeemed: rec.PointsRedeemed,
        ExpiresAt:      rec.ExpiresAt.UTC().Format(time.RFC3339),
        PaymentRef:     rec.PaymentRef,
    }
}

// CreateSession handles POST /v1/screenings/:id/sessions.  It creates a
// booking session holding the requested seats for the configured TTL.  The
// request body must contain a "seat_ids" array of positive integers and an
// optional "customer_id" for member checkout.  On success it returns 201
// with the session summary including the expiry timestamp.  If any
// requested seat is already held or sold it returns 409 with the list of
// unavailable seat IDs; the client must re-fetch the seat map rather than
// retry the same set.
func (h *BookingHandler) CreateSession(c echo.Context) error {
    screeningID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || screeningID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id", "code": CodeValidation})
    }
    // ensure screening exists
    if _, err := h.ScreeningRepo.GetByID(c.Request().Context(), screeningID); err != nil {
        if errors.Is(err, repository.ErrScreeningNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found", "code": CodeValidation})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    var body struct {
        SeatIDs    []uint64 `json:"seat_ids"`
        CustomerID *uint64  `json:"customer_id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": CodeValidation})
    }
    unique := dedupeIDs(body.SeatIDs)
    if len(unique) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "select at least one seat", "code": CodeValidation})
    }
    // Token from the identity middleware wins over the request body; the
    // body field exists for staff-assisted booking on behalf of a member.
    customerID := customerIDFromContext(c)
    if customerID == nil {
        customerID = body.CustomerID
    }
    if customerID != nil {
        if _, err := h.CustomerRepo.GetByID(c.Request().Context(), *customerID); err != nil {
            if errors.Is(err, repository.ErrCustomerNotFound) {
                return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer not found", "code": CodeValidation})
            }
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
        }
    }

    ctx := c.Request().Context()
    tx, err := h.SessionRepo.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    // release holds of any session that has quietly expired before
    // checking availability
    if err := h.sweepTx(ctx, tx, screeningID); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cleanup expired sessions"})
    }
    free, prices, err := h.ScreeningRepo.FilterFreeSeatsTx(ctx, tx, screeningID, unique)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check seat availability"})
    }
    if len(free) != len(unique) {
        unavailable := make([]uint64, 0, len(unique)-len(free))
        allowed := make(map[uint64]struct{})
        for _, id := range free {
            allowed[id] = struct{}{}
        }
        for _, id := range unique {
            if _, ok := allowed[id]; !ok {
                unavailable = append(unavailable, id)
            }
        }
        return c.JSON(http.StatusConflict, echo.Map{
            "error":       "some seats are unavailable",
            "code":        CodeSeatUnavailable,
            "unavailable": unavailable,
        })
    }
    var subtotal uint32
    for _, sid := range free {
        subtotal += prices[sid]
    }
    rec := &model.BookingSession{
        PublicCode:    uuid.NewString(),
        CustomerID:    customerID,
        ScreeningID:   screeningID,
        Status:        model.SessionPending,
        SubtotalCents: subtotal,
        TotalCents:    subtotal,
        ExpiresAt:     time.Now().UTC().Add(h.Cfg.HoldTTL),
    }
    if err := h.SessionRepo.CreateTx(ctx, tx, rec, prices, free); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create session"})
    }
    if err := h.ScreeningRepo.BulkUpdateSeatStatusTx(ctx, tx, screeningID, free, model.SeatHeld); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update seat status"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true
    return c.JSON(http.StatusCreated, sessionToResponse(rec))
}

// ReplaceCombos handles PUT /v1/sessions/:code/combos.  The body carries
// the full desired combo list (replace semantics, not a delta).  Combos are
// mutable only while the session is PENDING.  A combo change invalidates
// any previously computed point discount, so points are reset to zero and
// must be redeemed again on the confirmation step.
func (h *BookingHandler) ReplaceCombos(c echo.Context) error {
    code := c.Param("code")
    var body struct {
        Combos []struct {
            ComboID  uint64 `json:"combo_id"`
            Quantity uint32 `json:"quantity"`
        } `json:"combos"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": CodeValidation})
    }
    for _, l := range body.Combos {
        if l.ComboID == 0 || l.Quantity == 0 || l.Quantity > booking.MaxComboQuantity {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "combo lines need combo_id and a quantity between 1 and " + strconv.Itoa(booking.MaxComboQuantity), "code": CodeValidation})
        }
    }

    ctx := c.Request().Context()
    tx, err := h.SessionRepo.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    rec, err := h.lockLiveSessionTx(c, ctx, tx, code)
    if rec == nil {
        return err
    }
    if rec.Status != model.SessionPending {
        return c.JSON(http.StatusConflict, echo.Map{"error": "combos can only change before checkout", "code": CodeInvalidState})
    }
    comboIDs := make([]uint64, 0, len(body.Combos))
    for _, l := range body.Combos {
        comboIDs = append(comboIDs, l.ComboID)
    }
    prices, err := h.ComboRepo.PricesByIDsTx(ctx, tx, dedupeIDs(comboIDs))
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch combo prices"})
    }
    lines := make([]model.SessionCombo, 0, len(body.Combos))
    var comboTotal uint32
    for _, l := range body.Combos {
        price, ok := prices[l.ComboID]
        if !ok {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown or inactive combo", "code": CodeValidation})
        }
        lineTotal, ok := booking.LineTotalCents(price, l.Quantity)
        if !ok {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "combo line total out of range", "code": CodeValidation})
        }
        lines = append(lines, model.SessionCombo{ComboID: l.ComboID, Quantity: l.Quantity, UnitPriceCents: price})
        if comboTotal, ok = booking.AddCents(comboTotal, lineTotal); !ok {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "order total out of range", "code": CodeValidation})
        }
    }
    if err := h.SessionRepo.ReplaceCombosTx(ctx, tx, rec.ID, lines); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update combos"})
    }
    seatSubtotal, err := h.SessionRepo.SeatSubtotalTx(ctx, tx, rec.ID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to recompute totals"})
    }
    subtotal, ok := booking.AddCents(seatSubtotal, comboTotal)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order total out of range", "code": CodeValidation})
    }
    if err := h.SessionRepo.UpdateTotalsTx(ctx, tx, rec.ID, subtotal, 0, subtotal, 0); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to recompute totals"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true
    rec.SubtotalCents = subtotal
    rec.DiscountCents = 0
    rec.TotalCents = subtotal
    rec.PointsRedeemed = 0
    return c.JSON(http.StatusOK, sessionToResponse(rec))
}

// RedeemPoints handles POST /v1/sessions/:code/points.  The server is the
// trust boundary here: the client clamps as a courtesy, but the caps are
// re-checked and violations rejected rather than silently clamped, so the
// two sides can never disagree about the discount.  Points are reserved on
// the session now and deducted from the balance only when payment lands.
func (h *BookingHandler) RedeemPoints(c echo.Context) error {
    code := c.Param("code")
    var body struct {
        Points uint32 `json:"points"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": CodeValidation})
    }

    ctx := c.Request().Context()
    tx, err := h.SessionRepo.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    rec, err := h.lockLiveSessionTx(c, ctx, tx, code)
    if rec == nil {
        return err
    }
    if rec.Status != model.SessionPending {
        return c.JSON(http.StatusConflict, echo.Map{"error": "points can only change before checkout", "code": CodeInvalidState})
    }
    discount := uint32(0)
    if body.Points > 0 {
        if rec.CustomerID == nil {
            return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "guest sessions cannot redeem points", "code": CodeValidation})
        }
        balance, err := h.CustomerRepo.BalanceTx(ctx, tx, *rec.CustomerID)
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load point balance"})
        }
        if body.Points > balance {
            return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "insufficient point balance", "code": CodeInsufficientPoints})
        }
        if body.Points > booking.MaxRedeemablePoints(rec.SubtotalCents, balance, h.Cfg.PointValueCents) {
            return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "points exceed the redeemable cap", "code": CodeCapExceeded})
        }
        discount = booking.Discount(body.Points, h.Cfg.PointValueCents)
    }
    total := booking.Total(rec.SubtotalCents, discount)
    if err := h.SessionRepo.UpdateTotalsTx(ctx, tx, rec.ID, rec.SubtotalCents, discount, total, body.Points); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to apply discount"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true
    rec.DiscountCents = discount
    rec.TotalCents = total
    rec.PointsRedeemed = body.Points
    return c.JSON(http.StatusOK, sessionToResponse(rec))
}

// Checkout handles POST /v1/sessions/:code/checkout.  It moves the session
// from PENDING to AWAITING_PAYMENT and returns the signed provider redirect
// URL.  The transaction reference on the redirect is the session's public
// code, which is how the return leg finds the session again even after a
// full page reload on the client.
func (h *BookingHandler) Checkout(c echo.Context) error {
    code := c.Param("code")
    ctx := c.Request().Context()
    tx, err := h.SessionRepo.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    rec, err := h.lockLiveSessionTx(c, ctx, tx, code)
    if rec == nil {
        return err
    }
    if rec.Status != model.SessionPending && rec.Status != model.SessionAwaitingPayment {
        return c.JSON(http.StatusConflict, echo.Map{"error": "session is not awaiting checkout", "code": CodeInvalidState})
    }
    // Re-entering checkout (payment retry) is legal; the status write is
    // a no-op the second time.
    if rec.Status == model.SessionPending {
        if err := h.SessionRepo.UpdateStatusTx(ctx, tx, rec.ID, model.SessionAwaitingPayment); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update session"})
        }
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true
    redirect := h.Gateway.BuildRedirect(rec.PublicCode, rec.TotalCents, "cinema booking "+rec.PublicCode)
    return c.JSON(http.StatusOK, echo.Map{
        "redirect_url": redirect,
        "booking_id":   rec.PublicCode,
        "expires_at":   rec.ExpiresAt.UTC().Format(time.RFC3339),
    })
}

// CancelSession handles DELETE /v1/sessions/:code.  Cancellation releases
// the held seats and is idempotent: cancelling an already cancelled or
// expired session acknowledges with 200 rather than erroring, because the
// client fires this best-effort from teardown paths and may race its own
// earlier attempt.  A paid session cannot be cancelled here.
func (h *BookingHandler) CancelSession(c echo.Context) error {
    code := c.Param("code")
    ctx := c.Request().Context()
    tx, err := h.SessionRepo.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    rec, err := h.SessionRepo.GetByCodeTx(ctx, tx, code)
    if err != nil {
        if errors.Is(err, repository.ErrSessionNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found", "code": CodeSessionNotFound})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    switch rec.Status {
    case model.SessionCancelled, model.SessionExpired:
        committed = true // nothing to write
        return c.JSON(http.StatusOK, echo.Map{"status": rec.Status})
    case model.SessionPaid:
        return c.JSON(http.StatusConflict, echo.Map{"error": "paid sessions cannot be cancelled", "code": CodeInvalidState})
    }
    seatIDs, err := h.SessionRepo.SeatIDsTx(ctx, tx, rec.ID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load held seats"})
    }
    if err := h.SessionRepo.UpdateStatusTx(ctx, tx, rec.ID, model.SessionCancelled); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel session"})
    }
    if err := h.ScreeningRepo.BulkUpdateSeatStatusTx(ctx, tx, rec.ScreeningID, seatIDs, model.SeatFree); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release seats"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true
    if h.Publisher != nil {
        if err := h.Publisher.PublishSeatsReleased(ctx, queue.SeatsReleasedEvent{
            SessionCode: rec.PublicCode,
            ScreeningID: rec.ScreeningID,
            SeatIDs:     seatIDs,
            Reason:      "cancelled",
            ReleasedAt:  time.Now().UTC().Format(time.RFC3339),
        }); err != nil {
            log.Printf("seats-released event dropped: %v", err)
        }
    }
    return c.JSON(http.StatusOK, echo.Map{"status": model.SessionCancelled, "released": len(seatIDs)})
}

// GetSummary handles GET /v1/sessions/:code.  It returns the full session
// snapshot with seats, combos and totals.  A session found past its
// deadline is expired on the spot (releasing its seats) before answering,
// so a client restoring from a stale local mirror learns the truth here
// rather than on its next mutation.
func (h *BookingHandler) GetSummary(c echo.Context) error {
    code := c.Param("code")
    ctx := c.Request().Context()
    rec, err := h.SessionRepo.GetByCode(ctx, code)
    if err != nil {
        if errors.Is(err, repository.ErrSessionNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found", "code": CodeSessionNotFound})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if (rec.Status == model.SessionPending || rec.Status == model.SessionAwaitingPayment) && !rec.ExpiresAt.After(time.Now().UTC()) {
        if err := h.expireSession(ctx, rec); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to expire session"})
        }
        rec.Status = model.SessionExpired
    }
    resp := sessionToResponse(rec)
    if seats, err := h.SessionRepo.SeatsBySession(ctx, rec.ID); err == nil {
        resp.Seats = seats
    }
    if combos, err := h.SessionRepo.CombosBySession(ctx, rec.ID); err == nil {
        resp.Combos = combos
    }
    return c.JSON(http.StatusOK, resp)
}

// lockLiveSessionTx loads a session with a row lock and verifies it can
// still be mutated.  On failure it writes the error response itself and
// returns a nil record; callers propagate the returned error as-is.
func (h *BookingHandler) lockLiveSessionTx(c echo.Context, ctx context.Context, tx *sql.Tx, code string) (*model.BookingSession, error) {
    rec, err := h.SessionRepo.GetByCodeTx(ctx, tx, code)
    if err != nil {
        if errors.Is(err, repository.ErrSessionNotFound) {
            return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "session not found", "code": CodeSessionNotFound})
        }
        return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if err := repository.CheckLive(rec, time.Now()); err != nil {
        if errors.Is(err, repository.ErrSessionExpired) {
            // release the seats before reporting; the sweep would get
            // there eventually but the client deserves a consistent map
            if rec.Status == model.SessionPending || rec.Status == model.SessionAwaitingPayment {
                if seatIDs, sErr := h.SessionRepo.SeatIDsTx(ctx, tx, rec.ID); sErr == nil {
                    _ = h.SessionRepo.UpdateStatusTx(ctx, tx, rec.ID, model.SessionExpired)
                    _ = h.ScreeningRepo.BulkUpdateSeatStatusTx(ctx, tx, rec.ScreeningID, seatIDs, model.SeatFree)
                    _ = tx.Commit()
                }
            }
            return nil, c.JSON(http.StatusGone, echo.Map{"error": "session expired", "code": CodeSessionExpired})
        }
        return nil, c.JSON(http.StatusConflict, echo.Map{"error": "invalid session state", "code": CodeInvalidState})
    }
    return rec, nil
}

// sweepTx expires stale sessions for a screening and frees their seats
// within the caller's transaction.
func (h *BookingHandler) sweepTx(ctx context.Context, tx *sql.Tx, screeningID uint64) error {
    expired, err := h.SessionRepo.ExpireStaleTx(ctx, tx, screeningID)
    if err != nil {
        return err
    }
    if len(expired) > 0 {
        return h.ScreeningRepo.BulkUpdateSeatStatusTx(ctx, tx, screeningID, expired, model.SeatFree)
    }
    return nil
}

// expireSession runs a small transaction that marks one session EXPIRED
// and frees its seats.
func (h *BookingHandler) expireSession(ctx context.Context, rec *model.BookingSession) error {
    tx, err := h.SessionRepo.DB().BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    seatIDs, err := h.SessionRepo.SeatIDsTx(ctx, tx, rec.ID)
    if err != nil {
        return err
    }
    if err := h.SessionRepo.UpdateStatusTx(ctx, tx, rec.ID, model.SessionExpired); err != nil {
        return err
    }
    if err := h.ScreeningRepo.BulkUpdateSeatStatusTx(ctx, tx, rec.ScreeningID, seatIDs, model.SeatFree); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

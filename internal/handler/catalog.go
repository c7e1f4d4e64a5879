package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/minhvu/cinema-booking/internal/model"
	"github.com/minhvu/cinema-booking/internal/repository"
)

// CatalogHandler serves the read side of the booking flow: seat maps,
// combo menus and loyalty balances.  Responses are safe to cache briefly;
// the write path re-validates everything under row locks anyway.
type CatalogHandler struct {
	ScreeningRepo *repository.ScreeningRepo
	SessionRepo   *repository.SessionRepo
	ComboRepo     *repository.ComboRepo
	CustomerRepo  *repository.CustomerRepo
}

// NewCatalogHandler constructs a new CatalogHandler.
func NewCatalogHandler(screeningRepo *repository.ScreeningRepo, sessionRepo *repository.SessionRepo, comboRepo *repository.ComboRepo, customerRepo *repository.CustomerRepo) *CatalogHandler {
	return &CatalogHandler{
		ScreeningRepo: screeningRepo,
		SessionRepo:   sessionRepo,
		ComboRepo:     comboRepo,
		CustomerRepo:  customerRepo,
	}
}

// SeatMap handles GET /v1/screenings/:id/seats.  Stale holds are swept in
// a small transaction first so the map never shows seats held by sessions
// that have already run out their clock.
func (h *CatalogHandler) SeatMap(c echo.Context) error {
	screeningID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || screeningID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id", "code": CodeValidation})
	}
	ctx := c.Request().Context()
	screening, err := h.ScreeningRepo.GetByID(ctx, screeningID)
	if err != nil {
		if errors.Is(err, repository.ErrScreeningNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found", "code": CodeValidation})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

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
	expired, err := h.SessionRepo.ExpireStaleTx(ctx, tx, screeningID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cleanup expired sessions"})
	}
	if len(expired) > 0 {
		if err := h.ScreeningRepo.BulkUpdateSeatStatusTx(ctx, tx, screeningID, expired, model.SeatFree); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release seats"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	seats, err := h.ScreeningRepo.SeatMap(ctx, screeningID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seat map"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"screening_id": screening.ID,
		"movie_title":  screening.MovieTitle,
		"starts_at":    screening.StartsAt,
		"seats":        seats,
	})
}

// ComboMenu handles GET /v1/combos and lists the active concession combos.
func (h *CatalogHandler) ComboMenu(c echo.Context) error {
	combos, err := h.ComboRepo.ListActive(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load combos"})
	}
	out := make([]echo.Map, 0, len(combos))
	for _, cb := range combos {
		out = append(out, echo.Map{
			"id":          cb.ID,
			"name":        cb.Name,
			"price_cents": cb.PriceCents,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"combos": out})
}

// PointsBalance handles GET /v1/customers/:id/points.
func (h *CatalogHandler) PointsBalance(c echo.Context) error {
	customerID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || customerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid customer id", "code": CodeValidation})
	}
	customer, err := h.CustomerRepo.GetByID(c.Request().Context(), customerID)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "customer not found", "code": CodeValidation})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"customer_id":    customer.ID,
		"points_balance": customer.PointsBalance,
	})
}

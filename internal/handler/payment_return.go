package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/minhvu/cinema-booking/internal/model"
	"github.com/minhvu/cinema-booking/internal/payment"
	"github.com/minhvu/cinema-booking/internal/queue"
	"github.com/minhvu/cinema-booking/internal/repository"
)

// PaymentReturn handles GET /v1/payment/return, the browser redirect leg
// coming back from the payment provider.  The signature is verified before
// anything else is trusted.  The handler is idempotent: re-presenting the
// same return URL after the session is already PAID reports the stored
// outcome again without touching the database, because customers reload
// result pages and providers occasionally re-fire redirects.
func (h *BookingHandler) PaymentReturn(c echo.Context) error {
	res, err := h.Gateway.VerifyReturn(c.QueryString())
	if err != nil {
		if errors.Is(err, payment.ErrBadSignature) || errors.Is(err, payment.ErrMissingParams) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment return", "code": CodeValidation})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payment return", "code": CodeValidation})
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
	rec, err := h.SessionRepo.GetByCodeTx(ctx, tx, res.TxnRef)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found", "code": CodeSessionNotFound})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	// Replay of an already settled payment.
	if rec.Status == model.SessionPaid {
		committed = true
		return c.JSON(http.StatusOK, echo.Map{
			"booking_id":  rec.PublicCode,
			"status":      rec.Status,
			"paid":        true,
			"payment_ref": rec.PaymentRef,
		})
	}

	// Provider declined or the customer aborted.  The session keeps its
	// hold so the customer can retry another card until the hold runs out.
	if !res.Succeeded {
		committed = true
		return c.JSON(http.StatusOK, echo.Map{
			"booking_id": rec.PublicCode,
			"status":     rec.Status,
			"paid":       false,
			"code":       CodePaymentFailed,
			"provider_code":    res.Code,
			"provider_message": res.Message,
		})
	}

	if rec.Status != model.SessionAwaitingPayment {
		return c.JSON(http.StatusConflict, echo.Map{"error": "session is not awaiting payment", "code": CodeInvalidState})
	}
	if !rec.ExpiresAt.After(time.Now().UTC()) {
		// The hold lapsed while the customer was on the provider page.
		// Money may have moved; flag it loudly rather than guessing.
		log.Printf("payment return for expired session %s (provider ref %s)", rec.PublicCode, res.TxnRef)
		return c.JSON(http.StatusConflict, echo.Map{"error": "session expired before payment completed", "code": CodeSessionExpired})
	}
	if res.AmountCents != rec.TotalCents {
		log.Printf("payment amount mismatch for %s: charged %d, owed %d", rec.PublicCode, res.AmountCents, rec.TotalCents)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment amount mismatch", "code": CodeValidation})
	}

	seatIDs, err := h.SessionRepo.SeatIDsTx(ctx, tx, rec.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seats"})
	}
	paymentRef := res.TxnRef
	if err := h.SessionRepo.SetPaidTx(ctx, tx, rec.ID, paymentRef); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to finalize session"})
	}
	if err := h.ScreeningRepo.BulkUpdateSeatStatusTx(ctx, tx, rec.ScreeningID, seatIDs, model.SeatSold); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to finalize seats"})
	}
	// Points were reserved on the session; the balance is charged only now.
	if rec.PointsRedeemed > 0 && rec.CustomerID != nil {
		if err := h.CustomerRepo.DeductPointsTx(ctx, tx, *rec.CustomerID, rec.PointsRedeemed); err != nil {
			if errors.Is(err, repository.ErrInsufficientPoints) {
				// Balance shrank between redeem and payment.  The charge
				// already happened, so keep the booking and log for
				// manual reconciliation instead of failing the customer.
				log.Printf("point deduction short for session %s, customer %d", rec.PublicCode, *rec.CustomerID)
			} else {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to deduct points"})
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	if h.Publisher != nil {
		var customerID *uint64
		if rec.CustomerID != nil {
			id := *rec.CustomerID
			customerID = &id
		}
		seatLabels := []string{}
		if seats, sErr := h.SessionRepo.SeatsBySession(ctx, rec.ID); sErr == nil {
			for _, s := range seats {
				seatLabels = append(seatLabels, fmt.Sprintf("%s%d", s.RowLabel, s.SeatNumber))
			}
		}
		movieTitle := ""
		if scr, sErr := h.ScreeningRepo.GetByID(ctx, rec.ScreeningID); sErr == nil {
			movieTitle = scr.MovieTitle
		}
		if err := h.Publisher.PublishBookingConfirmed(ctx, queue.BookingConfirmedEvent{
			SessionCode:    rec.PublicCode,
			CustomerID:     customerID,
			ScreeningID:    rec.ScreeningID,
			MovieTitle:     movieTitle,
			SeatLabels:     seatLabels,
			SubtotalCents:  rec.SubtotalCents,
			DiscountCents:  rec.DiscountCents,
			TotalCents:     rec.TotalCents,
			PointsRedeemed: rec.PointsRedeemed,
			PaymentRef:     paymentRef,
			PaidAt:         time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			log.Printf("booking-confirmed event dropped: %v", err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":  rec.PublicCode,
		"status":      model.SessionPaid,
		"paid":        true,
		"payment_ref": paymentRef,
		"total_cents": rec.TotalCents,
	})
}

package httphandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/auth"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httperror"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

type BookingsHandler struct {
	PayoutService *services.PayoutService
}

type BookingDeliveredResponse struct {
	Booking *data.Booking `json:"booking"`
	Payout  *data.Payout  `json:"payout,omitempty"`
}

// PostBookingDelivered marks the booking as delivered by its provider. When
// the escrowed money is already in place this opens the payout request in
// the same transaction; for cash bookings there is nothing to pay out and
// the payout field stays empty.
func (b BookingsHandler) PostBookingDelivered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookingID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	booking, payout, err := b.PayoutService.MarkBookingDelivered(ctx, bookingID, user.ID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot mark booking as delivered", err).Render(w)
		return
	}

	response := BookingDeliveredResponse{
		Booking: booking,
		Payout:  payout,
	}
	httpjson.RenderStatus(w, http.StatusOK, response, httpjson.JSON)
}

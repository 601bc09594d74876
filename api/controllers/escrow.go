package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hotmess/hotmess-backend/api/responses"
	"github.com/hotmess/hotmess-backend/api/validators"
	"github.com/hotmess/hotmess-backend/internal/escrow"
	"github.com/hotmess/hotmess-backend/internal/pickups"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
)

type releaseRequest struct {
	OrderID    string `json:"order_id" validate:"required,uuid"`
	BuyerEmail string `json:"buyer_email" validate:"required,email"`
}

// ReleaseEscrow lets the buyer release held funds to the seller.
func ReleaseEscrow(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}

		caller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req releaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID := uuid.MustParse(req.OrderID)
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}

		result, err := svc.Release(ctx, escrow.ReleaseInput{
			OrderID:    orderID,
			CallerID:   caller,
			BuyerEmail: validators.SanitizeEmail(req.BuyerEmail),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type beaconRequest struct {
	Lat              *float64 `json:"lat" validate:"required,latitude"`
	Lng              *float64 `json:"lng" validate:"required,longitude"`
	ExpiresInMinutes int      `json:"expires_in_minutes" validate:"omitempty,gte=1,lte=1440"`
}

// CreatePickupBeacon registers the seller's hand-off point for an escrow order.
func CreatePickupBeacon(svc pickups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pickup service unavailable"))
			return
		}

		seller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req beaconRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateBeacon(r.Context(), pickups.CreateBeaconInput{
			OrderID:          orderID,
			SellerID:         seller,
			Location:         pickups.Coordinates{Lat: *req.Lat, Lng: *req.Lng},
			ExpiresInMinutes: req.ExpiresInMinutes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

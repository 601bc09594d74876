package controllers

import (
	"net/http"

	"github.com/hotmess/hotmess-backend/api/responses"
	"github.com/hotmess/hotmess-backend/api/validators"
	"github.com/hotmess/hotmess-backend/internal/pickups"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
)

type confirmPickupRequest struct {
	QRCode   string   `json:"qr_code" validate:"required,max=128"`
	Lat      *float64 `json:"lat" validate:"required,latitude"`
	Lng      *float64 `json:"lng" validate:"required,longitude"`
	PhotoURL string   `json:"photo_url" validate:"omitempty,url,max=2048"`
}

// ConfirmPickup completes an escrow order when the buyer scans the beacon on site.
func ConfirmPickup(svc pickups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pickup service unavailable"))
			return
		}

		buyer, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req confirmPickupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Confirm(r.Context(), pickups.ConfirmInput{
			QRCode:   validators.SanitizeString(req.QRCode, 128),
			CallerID: buyer,
			Location: pickups.Coordinates{Lat: *req.Lat, Lng: *req.Lng},
			PhotoURL: validators.SanitizeString(req.PhotoURL, 2048),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

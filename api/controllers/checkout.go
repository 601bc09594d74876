package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hotmess/hotmess-backend/api/responses"
	"github.com/hotmess/hotmess-backend/api/validators"
	"github.com/hotmess/hotmess-backend/internal/checkout"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
)

type checkoutRequest struct {
	PurchaseType string `json:"purchase_type" validate:"required,oneof=ticket product credits"`
	ReferenceID  string `json:"reference_id" validate:"required,uuid"`
	BuyerEmail   string `json:"buyer_email" validate:"required,email"`
	Quantity     int    `json:"quantity" validate:"omitempty,gte=1"`
}

// Checkout opens a hosted checkout session priced on the server.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Start(r.Context(), checkout.StartInput{
			BuyerID:      buyerID,
			BuyerEmail:   validators.SanitizeEmail(req.BuyerEmail),
			PurchaseType: enums.PurchaseType(req.PurchaseType),
			ReferenceID:  uuid.MustParse(req.ReferenceID),
			Quantity:     req.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

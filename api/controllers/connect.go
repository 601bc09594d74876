package controllers

import (
	"net/http"

	"github.com/hotmess/hotmess-backend/api/middleware"
	"github.com/hotmess/hotmess-backend/api/responses"
	"github.com/hotmess/hotmess-backend/internal/connect"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
)

// ConnectOnboard returns a hosted onboarding link for the caller's payout account.
func ConnectOnboard(svc connect.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connect service unavailable"))
			return
		}

		seller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Onboard(r.Context(), seller, middleware.EmailFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ConnectStatus reports whether the caller can receive payouts.
func ConnectStatus(svc connect.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connect service unavailable"))
			return
		}

		seller, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Status(r.Context(), seller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

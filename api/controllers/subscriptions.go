package controllers

import (
	"net/http"

	"github.com/davidnjeri/carhub-backend/api/responses"
	"github.com/davidnjeri/carhub-backend/api/validators"
	"github.com/davidnjeri/carhub-backend/internal/subscriptions"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
)

type subscribeRequest struct {
	PlanID string `json:"planId" validate:"required,oneof=free premium"`
}

// SubscriptionPlans lists the fixed plan catalog.
func SubscriptionPlans() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, subscriptions.Plans())
	}
}

// SubscriptionsCurrent returns the caller's active subscription and
// entitlement flags.
func SubscriptionsCurrent(svc *subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Current(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		premium, err := svc.HasPremium(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"subscription": sub,
			"isPremium":    premium,
		})
	}
}

// SubscriptionsSubscribe activates the free plan directly. Premium
// activation goes through the payment flow instead.
func SubscriptionsSubscribe(svc *subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body subscribeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		planID, err := enums.ParsePlanID(body.PlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid planId"))
			return
		}
		if planID != enums.PlanFree {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "premium is activated through payment"))
			return
		}

		sub, err := svc.Activate(r.Context(), userID, planID, enums.PaymentFree, "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sub)
	}
}

func SubscriptionsCancel(svc *subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Cancel(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}

func SubscriptionsHistory(svc *subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subs, err := svc.History(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, subs)
	}
}

package controllers

import (
	"net/http"

	"github.com/davidnjeri/carhub-backend/api/responses"
	"github.com/davidnjeri/carhub-backend/api/validators"
	"github.com/davidnjeri/carhub-backend/internal/payments"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type startPaymentRequest struct {
	PlanID string `json:"planId" validate:"required,oneof=premium"`
	Phone  string `json:"phone" validate:"required,max=20"`
}

// stkCallbackRequest mirrors the Daraja result payload posted to the
// callback URL. ResultCode zero means the customer paid, in which case
// CallbackMetadata carries the receipt number.
type stkCallbackRequest struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID" validate:"required"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

func (r stkCallbackRequest) receipt() string {
	for _, item := range r.Body.StkCallback.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if value, ok := item.Value.(string); ok {
				return value
			}
		}
	}
	return ""
}

// PaymentsStart kicks off an STK push for a premium upgrade.
func PaymentsStart(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body startPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		planID, err := enums.ParsePlanID(body.PlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid planId"))
			return
		}

		request, err := svc.Start(r.Context(), userID, planID, body.Phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, request)
	}
}

// PaymentsCallback receives the gateway's asynchronous verdict. It is
// unauthenticated; the CheckoutRequestID is the shared secret.
func PaymentsCallback(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body stkCallbackRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		callback := body.Body.StkCallback
		_, err := svc.Confirm(r.Context(), callback.CheckoutRequestID, payments.ConfirmResult{
			Success:       callback.ResultCode == 0,
			Receipt:       body.receipt(),
			FailureReason: callback.ResultDesc,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Daraja expects this acknowledgement shape.
		responses.WriteSuccess(w, map[string]any{"ResultCode": 0, "ResultDesc": "Accepted"})
	}
}

// PaymentsStatus lets the client poll while the handset prompt is open.
func PaymentsStatus(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		checkoutRequestID := chi.URLParam(r, "checkoutRequestID")
		if checkoutRequestID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing checkout request id"))
			return
		}

		request, err := svc.Status(r.Context(), userID, checkoutRequestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func PaymentsHistory(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requests, err := svc.History(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requests)
	}
}

package mpesa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/config"
	"github.com/shopspring/decimal"
)

func TestSTKPushSimulated(t *testing.T) {
	client, err := NewClient(config.MpesaConfig{SimulateResponses: true})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.STKPush(context.Background(), STKPushRequest{
		Phone:            "254712345678",
		Amount:           decimal.NewFromInt(100),
		AccountReference: "premium",
	})
	if err != nil {
		t.Fatalf("stk push: %v", err)
	}
	if !strings.HasPrefix(resp.CheckoutRequestID, "ws_CO_") {
		t.Fatalf("unexpected checkout id %q", resp.CheckoutRequestID)
	}
}

func TestSTKPushRejectsUnnormalizedPhone(t *testing.T) {
	client, err := NewClient(config.MpesaConfig{SimulateResponses: true})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.STKPush(context.Background(), STKPushRequest{
		Phone:  "0712345678",
		Amount: decimal.NewFromInt(100),
	}); err == nil {
		t.Fatal("expected rejection of 07 prefix")
	}
}

func TestSTKPushAgainstGateway(t *testing.T) {
	var sawAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/oauth"):
			user, pass, _ := r.BasicAuth()
			if user != "key" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"access_token": "token-123",
				"expires_in":   "3599",
			})
		case strings.HasPrefix(r.URL.Path, "/mpesa/stkpush"):
			sawAuth = r.Header.Get("Authorization")
			var payload map[string]any
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if payload["PhoneNumber"] != "254712345678" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"CheckoutRequestID": "ws_CO_260820250001",
				"MerchantRequestID": "29115-34620561-1",
				"ResponseCode":      "0",
				"CustomerMessage":   "Success. Request accepted for processing",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewClient(config.MpesaConfig{
		BaseURL:        server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "http://localhost/callback",
		HTTPTimeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.STKPush(context.Background(), STKPushRequest{
		Phone:            "254712345678",
		Amount:           decimal.NewFromInt(100),
		AccountReference: "premium",
		Description:      "CarHub premium plan",
	})
	if err != nil {
		t.Fatalf("stk push: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_260820250001" {
		t.Fatalf("unexpected checkout id %q", resp.CheckoutRequestID)
	}
	if sawAuth != "Bearer token-123" {
		t.Fatalf("missing bearer token, got %q", sawAuth)
	}
}

func TestSTKPushSurfacesGatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/oauth") {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "t", "expires_in": "3599"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"ResponseCode": "1032"})
	}))
	defer server.Close()

	client, err := NewClient(config.MpesaConfig{
		BaseURL:        server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.STKPush(context.Background(), STKPushRequest{
		Phone:  "254712345678",
		Amount: decimal.NewFromInt(100),
	}); err == nil {
		t.Fatal("expected error for non-zero response code")
	}
}

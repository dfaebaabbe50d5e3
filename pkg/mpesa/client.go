package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/config"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	oauthPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	responseBodyReadLimit int64 = 64 * 1024
	timestampLayout             = "20060102150405"
)

var errCredentialsRequired = errors.New("mpesa consumer key and secret are required")

// ErrResultPending means the gateway has not resolved the checkout yet.
var ErrResultPending = errors.New("stk push result still pending")

// Client talks to the Daraja STK push API. With SimulateResponses set
// it fabricates gateway responses locally so the flow can run without
// Safaricom credentials.
type Client struct {
	httpClient *http.Client
	cfg        config.MpesaConfig
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithNow overrides the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClient(cfg config.MpesaConfig, opts ...Option) (*Client, error) {
	if !cfg.SimulateResponses {
		if strings.TrimSpace(cfg.ConsumerKey) == "" || strings.TrimSpace(cfg.ConsumerSecret) == "" {
			return nil, errCredentialsRequired
		}
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// STKPushRequest describes one payment prompt sent to a handset.
type STKPushRequest struct {
	// Phone must already be normalized to 254XXXXXXXXX.
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

// STKPushResponse carries the gateway identifiers used to correlate
// the asynchronous confirmation.
type STKPushResponse struct {
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
}

// STKPush initiates a payment prompt and returns the correlation identifiers.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	if len(req.Phone) != 12 || !strings.HasPrefix(req.Phone, "254") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("phone %q is not in 254 format", req.Phone))
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	if c.cfg.SimulateResponses {
		return &STKPushResponse{
			CheckoutRequestID: "ws_CO_" + uuid.NewString(),
			MerchantRequestID: uuid.NewString(),
			CustomerMessage:   "Success. Request accepted for processing",
		}, nil
	}

	token, err := c.accessTokenFor(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format(timestampLayout)
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp),
	)

	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount.Round(0).String(),
		"PartyA":            req.Phone,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       req.Phone,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  req.AccountReference,
		"TransactionDesc":   req.Description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding stk push payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+stkPushPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building stk push request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling mpesa stk push")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading mpesa response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(
			pkgerrors.CodeDependency,
			fmt.Sprintf("mpesa stk push returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		)
	}

	var decoded struct {
		CheckoutRequestID string `json:"CheckoutRequestID"`
		MerchantRequestID string `json:"MerchantRequestID"`
		ResponseCode      string `json:"ResponseCode"`
		CustomerMessage   string `json:"CustomerMessage"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding mpesa response")
	}
	if decoded.ResponseCode != "0" {
		return nil, pkgerrors.New(
			pkgerrors.CodeDependency,
			fmt.Sprintf("mpesa rejected stk push: code %s", decoded.ResponseCode),
		)
	}
	if decoded.CheckoutRequestID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mpesa response missing CheckoutRequestID")
	}

	return &STKPushResponse{
		CheckoutRequestID: decoded.CheckoutRequestID,
		MerchantRequestID: decoded.MerchantRequestID,
		CustomerMessage:   decoded.CustomerMessage,
	}, nil
}

// STKQueryResponse is the gateway's verdict for a checkout. Receipt is
// only populated in simulate mode; the live query endpoint does not
// return the receipt number, that arrives on the callback.
type STKQueryResponse struct {
	ResultCode string
	ResultDesc string
	Receipt    string
}

// Succeeded reports whether the customer completed the payment.
func (r *STKQueryResponse) Succeeded() bool { return r.ResultCode == "0" }

// STKQuery asks the gateway for the outcome of an earlier push. It
// returns ErrResultPending while the customer still has the prompt open.
func (c *Client) STKQuery(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	if strings.TrimSpace(checkoutRequestID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout request id is required")
	}

	if c.cfg.SimulateResponses {
		return &STKQueryResponse{
			ResultCode: "0",
			ResultDesc: "The service request is processed successfully.",
			Receipt:    simulatedReceipt(),
		}, nil
	}

	token, err := c.accessTokenFor(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format(timestampLayout)
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp),
	)

	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding stk query payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+stkQueryPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building stk query request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling mpesa stk query")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading mpesa response")
	}

	var decoded struct {
		ResultCode   string `json:"ResultCode"`
		ResultDesc   string `json:"ResultDesc"`
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding mpesa response")
	}

	// Daraja answers an unresolved checkout with this error code rather
	// than a result.
	if decoded.ErrorCode == "500.001.1001" {
		return nil, ErrResultPending
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(
			pkgerrors.CodeDependency,
			fmt.Sprintf("mpesa stk query returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		)
	}

	return &STKQueryResponse{
		ResultCode: decoded.ResultCode,
		ResultDesc: decoded.ResultDesc,
	}, nil
}

func simulatedReceipt() string {
	return "SIM" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:7]
}

func (c *Client) accessTokenFor(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+oauthPath, nil)
	if err != nil {
		return "", fmt.Errorf("building oauth request: %w", err)
	}
	httpReq.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetching mpesa oauth token")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading oauth response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(
			pkgerrors.CodeDependency,
			fmt.Sprintf("mpesa oauth returned %d", resp.StatusCode),
		)
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding oauth response")
	}
	if decoded.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "mpesa oauth response missing token")
	}

	// Daraja tokens last an hour. Refresh a minute early.
	c.accessToken = decoded.AccessToken
	c.tokenExpiry = c.now().Add(59 * time.Minute)
	return c.accessToken, nil
}

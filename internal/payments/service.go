package payments

import (
	"context"
	"errors"
	"time"

	"github.com/davidnjeri/carhub-backend/internal/subscriptions"
	"github.com/davidnjeri/carhub-backend/pkg/clock"
	"github.com/davidnjeri/carhub-backend/pkg/config"
	"github.com/davidnjeri/carhub-backend/pkg/db/models"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
	"github.com/davidnjeri/carhub-backend/pkg/metrics"
	"github.com/davidnjeri/carhub-backend/pkg/mpesa"
	"github.com/google/uuid"
)

// gateway is the slice of the M-Pesa client the payment flow uses.
type gateway interface {
	STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
}

// guardStore marks a user's in-flight payment so double submits are
// rejected before any network call.
type guardStore interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	PaymentGuardKey(userID string) string
}

// activator starts a subscription once a payment lands.
type activator interface {
	Activate(ctx context.Context, userID uuid.UUID, planID enums.PlanID, method enums.PaymentMethod, paymentRef string) (*models.UserSubscription, error)
}

var _ activator = (*subscriptions.Service)(nil)

// Service drives the STK push payment flow for premium upgrades.
type Service struct {
	repo    Repository
	gateway gateway
	guard   guardStore
	subs    activator
	logg    *logger.Logger
	clk     clock.Clock
	cfg     config.PaymentsConfig
	billing *metrics.BillingMetrics
}

func NewService(
	repo Repository,
	gw gateway,
	guard guardStore,
	subs activator,
	logg *logger.Logger,
	clk clock.Clock,
	cfg config.PaymentsConfig,
	billing *metrics.BillingMetrics,
) *Service {
	if clk == nil {
		clk = clock.System()
	}
	if cfg.StartGuardTTL <= 0 {
		cfg.StartGuardTTL = 2 * time.Minute
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	return &Service{
		repo:    repo,
		gateway: gw,
		guard:   guard,
		subs:    subs,
		logg:    logg,
		clk:     clk,
		cfg:     cfg,
		billing: billing,
	}
}

// Start normalizes the phone, claims the per-user guard, sends the STK
// push, and records the pending request keyed by the gateway's
// CheckoutRequestID.
func (s *Service) Start(ctx context.Context, userID uuid.UUID, planID enums.PlanID, phone string) (*models.PaymentRequest, error) {
	plan, ok := subscriptions.PlanByID(planID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown plan")
	}
	if plan.Price.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan does not require payment")
	}

	normalized, err := mpesa.NormalizePhone(phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid phone number")
	}

	guardKey := s.guard.PaymentGuardKey(userID.String())
	claimed, err := s.guard.SetNX(ctx, guardKey, s.clk.Now().Format(time.RFC3339), s.cfg.StartGuardTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claiming payment guard")
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a payment is already in progress")
	}

	resp, err := s.gateway.STKPush(ctx, mpesa.STKPushRequest{
		Phone:            normalized,
		Amount:           plan.Price,
		AccountReference: plan.ID.String(),
		Description:      "CarHub " + plan.Name + " plan",
	})
	if err != nil {
		// Release the guard so the user can retry immediately.
		if delErr := s.guard.Del(ctx, guardKey); delErr != nil {
			s.logg.Warn(ctx, "releasing payment guard after gateway failure")
		}
		return nil, err
	}

	request := &models.PaymentRequest{
		UserID:            userID,
		PlanID:            plan.ID,
		Phone:             normalized,
		Amount:            plan.Price,
		Method:            enums.PaymentMpesa,
		Status:            enums.PaymentPending,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CreatedAt:         s.clk.Now(),
	}
	if err := s.repo.Create(ctx, request); err != nil {
		if delErr := s.guard.Del(ctx, guardKey); delErr != nil {
			s.logg.Warn(ctx, "releasing payment guard after store failure")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording payment request")
	}

	s.billing.IncPaymentStarted(plan.ID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":             userID.String(),
		"checkout_request_id": request.CheckoutRequestID,
	})
	s.logg.Info(ctx, "stk push initiated")
	return request, nil
}

// ConfirmResult describes the gateway's verdict for a checkout.
// Receipt carries the M-Pesa receipt number on success.
type ConfirmResult struct {
	Success       bool
	Receipt       string
	FailureReason string
}

// Confirm resolves a pending payment. Replayed confirmations for a
// request already in a terminal state return the stored row untouched.
func (s *Service) Confirm(ctx context.Context, checkoutRequestID string, result ConfirmResult) (*models.PaymentRequest, error) {
	request, err := s.repo.FindByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown checkout request")
	}
	if request.Status.IsTerminal() {
		return request, nil
	}
	// A verdict arriving after the confirmation window is abandoned;
	// the customer already saw the attempt expire.
	if s.pastWindow(request) {
		if err := s.expire(ctx, request); err != nil {
			return nil, err
		}
		return request, nil
	}
	if err := s.resolve(ctx, request, result); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *Service) pastWindow(request *models.PaymentRequest) bool {
	return s.clk.Now().Sub(request.CreatedAt) > s.cfg.RequestTimeout
}

func (s *Service) expire(ctx context.Context, request *models.PaymentRequest) error {
	request.Status = enums.PaymentTimedOut
	request.FailureReason = "no confirmation received in time"
	if err := s.repo.Update(ctx, request); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expiring payment request")
	}
	s.billing.IncPaymentResolved(request.Status.String())
	s.releaseGuard(ctx, request.UserID)
	return nil
}

func (s *Service) resolve(ctx context.Context, request *models.PaymentRequest, result ConfirmResult) error {
	now := s.clk.Now()
	if result.Success {
		request.Status = enums.PaymentCompleted
		request.MpesaReceipt = result.Receipt
		request.CompletedAt = &now
	} else {
		request.Status = enums.PaymentFailed
		request.FailureReason = result.FailureReason
	}
	if err := s.repo.Update(ctx, request); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating payment request")
	}
	s.billing.IncPaymentResolved(request.Status.String())
	s.releaseGuard(ctx, request.UserID)

	if request.Status == enums.PaymentCompleted {
		if _, err := s.subs.Activate(ctx, request.UserID, request.PlanID, enums.PaymentMpesa, request.MpesaReceipt); err != nil {
			// The payment landed; activation must not be silently lost.
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activating paid subscription")
		}
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"checkout_request_id": request.CheckoutRequestID,
		"status":              request.Status.String(),
	})
	s.logg.Info(ctx, "payment resolved")
	return nil
}

// Status returns the caller's payment request. A pending request is
// reconciled against the gateway first; one past the confirmation
// window is expired instead.
func (s *Service) Status(ctx context.Context, userID uuid.UUID, checkoutRequestID string) (*models.PaymentRequest, error) {
	request, err := s.repo.FindByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown checkout request")
	}
	if request.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another user")
	}
	if request.Status != enums.PaymentPending {
		return request, nil
	}

	if s.pastWindow(request) {
		if err := s.expire(ctx, request); err != nil {
			return nil, err
		}
		return request, nil
	}

	verdict, err := s.gateway.STKQuery(ctx, checkoutRequestID)
	if err != nil {
		// The prompt is still open on the handset; the callback or a
		// later poll settles it.
		if errors.Is(err, mpesa.ErrResultPending) {
			return request, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "querying payment status")
	}
	if err := s.resolve(ctx, request, ConfirmResult{
		Success:       verdict.Succeeded(),
		Receipt:       verdict.Receipt,
		FailureReason: failureDesc(verdict),
	}); err != nil {
		return nil, err
	}
	return request, nil
}

func failureDesc(verdict *mpesa.STKQueryResponse) string {
	if verdict.Succeeded() {
		return ""
	}
	return verdict.ResultDesc
}

// History returns the user's payment requests, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]models.PaymentRequest, error) {
	requests, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment history")
	}
	return requests, nil
}

func (s *Service) releaseGuard(ctx context.Context, userID uuid.UUID) {
	if err := s.guard.Del(ctx, s.guard.PaymentGuardKey(userID.String())); err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "releasing payment guard")
	}
}

package subscriptions

import (
	"context"
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/clock"
	"github.com/davidnjeri/carhub-backend/pkg/db"
	"github.com/davidnjeri/carhub-backend/pkg/db/models"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
	"github.com/davidnjeri/carhub-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns the subscription lifecycle. A user has at most one
// active row; switching plans cancels the current row and inserts a
// fresh one rather than mutating it in place.
type Service struct {
	client  *db.Client
	repo    Repository
	logg    *logger.Logger
	clk     clock.Clock
	billing *metrics.BillingMetrics
}

func NewService(client *db.Client, repo Repository, logg *logger.Logger, clk clock.Clock, billing *metrics.BillingMetrics) *Service {
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		client:  client,
		repo:    repo,
		logg:    logg,
		clk:     clk,
		billing: billing,
	}
}

// Activate cancels any active subscription and starts a new one on the
// requested plan. Free activations are caller-initiated; premium ones
// come from a confirmed payment, in which case paymentRef carries the
// gateway receipt.
func (s *Service) Activate(ctx context.Context, userID uuid.UUID, planID enums.PlanID, method enums.PaymentMethod, paymentRef string) (*models.UserSubscription, error) {
	plan, ok := PlanByID(planID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown plan")
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}

	sub, err := s.activateOnce(ctx, userID, plan, method, paymentRef)
	if err != nil && db.IsUniqueViolation(err, "uq_user_subscriptions_single_active") {
		// A concurrent activation won the race. Cancel it and retry once.
		sub, err = s.activateOnce(ctx, userID, plan, method, paymentRef)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activating subscription")
	}

	s.billing.IncSubscriptionActivated(plan.ID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id": userID.String(),
		"plan":    plan.ID.String(),
	})
	s.logg.Info(ctx, "subscription activated")
	return sub, nil
}

func (s *Service) activateOnce(ctx context.Context, userID uuid.UUID, plan Plan, method enums.PaymentMethod, paymentRef string) (*models.UserSubscription, error) {
	now := s.clk.Now()
	sub := &models.UserSubscription{
		UserID:        userID,
		PlanID:        plan.ID,
		Status:        enums.SubscriptionActive,
		StartDate:     now,
		EndDate:       now.Add(plan.Duration),
		AutoRenew:     true,
		PaymentMethod: method,
		MpesaReceipt:  paymentRef,
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CancelActiveByUser(ctx, userID, now); err != nil {
			return err
		}
		return repo.Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Cancel marks the active subscription cancelled. The end date is left
// untouched; access simply stops being premium immediately because the
// entitlement check requires active status.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error) {
	sub, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading active subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}

	now := s.clk.Now()
	sub.Status = enums.SubscriptionCancelled
	sub.AutoRenew = false
	sub.CancelledAt = &now
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling subscription")
	}

	s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "subscription cancelled")
	return sub, nil
}

// Current returns the user's active subscription, or nil when the user
// has never subscribed or the last row was cancelled.
func (s *Service) Current(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error) {
	sub, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	return sub, nil
}

// History returns every subscription row for the user, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]models.UserSubscription, error) {
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription history")
	}
	return subs, nil
}

// HasPremium reports whether the user currently holds a premium
// entitlement. Expiry is enforced here at read time; rows past their
// end date are not swept by a background job.
func (s *Service) HasPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	sub, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	return s.isPremium(sub), nil
}

func (s *Service) isPremium(sub *models.UserSubscription) bool {
	if sub == nil {
		return false
	}
	return sub.Status == enums.SubscriptionActive &&
		sub.PlanID == enums.PlanPremium &&
		sub.EndDate.After(s.clk.Now())
}

// MaxActiveListings returns the listing cap for the user's current
// plan. Zero means unlimited.
func (s *Service) MaxActiveListings(ctx context.Context, userID uuid.UUID) (int, error) {
	sub, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if s.isPremium(sub) {
		return planCatalog[enums.PlanPremium].MaxActiveListings, nil
	}
	return planCatalog[enums.PlanFree].MaxActiveListings, nil
}

// ExpiresAt exposes the active subscription end date for display.
func (s *Service) ExpiresAt(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	sub, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if sub == nil {
		return nil, nil
	}
	return &sub.EndDate, nil
}

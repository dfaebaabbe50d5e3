package subscriptions

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/clock"
	"github.com/davidnjeri/carhub-backend/pkg/config"
	"github.com/davidnjeri/carhub-backend/pkg/db"
	"github.com/davidnjeri/carhub-backend/pkg/db/models"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, clk clock.Clock) (*Service, *db.Client) {
	t.Helper()

	client, err := db.NewWithDialector(sqlite.Open(":memory:"), config.DBConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Gorm().AutoMigrate(&models.UserSubscription{}))
	require.NoError(t, client.Gorm().Exec(
		`CREATE UNIQUE INDEX uq_user_subscriptions_single_active
		 ON user_subscriptions (user_id) WHERE status = 'active'`,
	).Error)

	logg := logger.New(logger.Options{ServiceName: "test"})
	svc := NewService(client, NewRepository(client.Gorm()), logg, clk, nil)
	return svc, client
}

func TestActivateReplacesExistingSubscription(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk)
	ctx := context.Background()
	userID := uuid.New()

	free, err := svc.Activate(ctx, userID, enums.PlanFree, enums.PaymentFree, "")
	require.NoError(t, err)
	require.Equal(t, enums.SubscriptionActive, free.Status)
	require.Equal(t, clk.Now().Add(365*24*time.Hour), free.EndDate)

	premium, err := svc.Activate(ctx, userID, enums.PlanPremium, enums.PaymentMpesa, "QK12XYZ789")
	require.NoError(t, err)
	require.Equal(t, enums.PlanPremium, premium.PlanID)
	require.Equal(t, clk.Now().Add(30*24*time.Hour), premium.EndDate)
	require.True(t, premium.AutoRenew)
	require.Equal(t, enums.PaymentMpesa, premium.PaymentMethod)
	require.Equal(t, "QK12XYZ789", premium.MpesaReceipt)

	history, err := svc.History(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	active, err := svc.Current(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, premium.ID, active.ID)

	var activeCount int64
	require.NoError(t, svc.client.Gorm().
		Model(&models.UserSubscription{}).
		Where("user_id = ? AND status = ?", userID, enums.SubscriptionActive).
		Count(&activeCount).Error)
	require.EqualValues(t, 1, activeCount)
}

func TestHasPremiumFlipsAtEndDate(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Activate(ctx, userID, enums.PlanPremium, enums.PaymentMpesa, "QK12XYZ789")
	require.NoError(t, err)

	entitled, err := svc.HasPremium(ctx, userID)
	require.NoError(t, err)
	require.True(t, entitled)

	clk.Advance(30*24*time.Hour - time.Second)
	entitled, err = svc.HasPremium(ctx, userID)
	require.NoError(t, err)
	require.True(t, entitled)

	clk.Advance(2 * time.Second)
	entitled, err = svc.HasPremium(ctx, userID)
	require.NoError(t, err)
	require.False(t, entitled, "entitlement must lapse once the end date passes")
}

func TestFreePlanIsNeverPremium(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Activate(ctx, userID, enums.PlanFree, enums.PaymentFree, "")
	require.NoError(t, err)

	entitled, err := svc.HasPremium(ctx, userID)
	require.NoError(t, err)
	require.False(t, entitled)

	limit, err := svc.MaxActiveListings(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, FreeListingLimit, limit)
}

func TestCancelStopsEntitlementImmediately(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Activate(ctx, userID, enums.PlanPremium, enums.PaymentMpesa, "QK12XYZ789")
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, enums.SubscriptionCancelled, cancelled.Status)
	require.False(t, cancelled.AutoRenew)
	require.NotNil(t, cancelled.CancelledAt)

	entitled, err := svc.HasPremium(ctx, userID)
	require.NoError(t, err)
	require.False(t, entitled)

	current, err := svc.Current(ctx, userID)
	require.NoError(t, err)
	require.Nil(t, current)
}

func TestCancelWithoutActiveSubscription(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk)

	_, err := svc.Cancel(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

// blindCancelRepo drops exactly one CancelActiveByUser call, standing in
// for a concurrent activation whose row commits between this
// transaction's cancel and its insert.
type blindCancelRepo struct {
	inner   Repository
	dropOne *atomic.Bool
}

func (r *blindCancelRepo) WithTx(tx *gorm.DB) Repository {
	return &blindCancelRepo{inner: r.inner.WithTx(tx), dropOne: r.dropOne}
}

func (r *blindCancelRepo) Create(ctx context.Context, sub *models.UserSubscription) error {
	return r.inner.Create(ctx, sub)
}

func (r *blindCancelRepo) Update(ctx context.Context, sub *models.UserSubscription) error {
	return r.inner.Update(ctx, sub)
}

func (r *blindCancelRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error) {
	return r.inner.FindActiveByUser(ctx, userID)
}

func (r *blindCancelRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserSubscription, error) {
	return r.inner.ListByUser(ctx, userID)
}

func (r *blindCancelRepo) CancelActiveByUser(ctx context.Context, userID uuid.UUID, at time.Time) error {
	if r.dropOne.CompareAndSwap(true, false) {
		return nil
	}
	return r.inner.CancelActiveByUser(ctx, userID, at)
}

func TestActivateRetriesWhenConcurrentActivationWins(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	client, err := db.NewWithDialector(sqlite.Open(":memory:"), config.DBConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Gorm().AutoMigrate(&models.UserSubscription{}))
	require.NoError(t, client.Gorm().Exec(
		`CREATE UNIQUE INDEX uq_user_subscriptions_single_active
		 ON user_subscriptions (user_id) WHERE status = 'active'`,
	).Error)

	dropOne := &atomic.Bool{}
	dropOne.Store(true)
	repo := &blindCancelRepo{inner: NewRepository(client.Gorm()), dropOne: dropOne}
	svc := NewService(client, repo, logger.New(logger.Options{ServiceName: "test"}), clk, nil)

	ctx := context.Background()
	userID := uuid.New()

	// The competing activation already holds the active slot.
	require.NoError(t, NewRepository(client.Gorm()).Create(ctx, &models.UserSubscription{
		UserID:        userID,
		PlanID:        enums.PlanFree,
		Status:        enums.SubscriptionActive,
		StartDate:     clk.Now(),
		EndDate:       clk.Now().Add(365 * 24 * time.Hour),
		AutoRenew:     true,
		PaymentMethod: enums.PaymentFree,
	}))

	premium, err := svc.Activate(ctx, userID, enums.PlanPremium, enums.PaymentMpesa, "QK77RACE11")
	require.NoError(t, err, "losing the insert race must trigger one cancel-and-retry")
	require.Equal(t, enums.PlanPremium, premium.PlanID)
	require.False(t, dropOne.Load(), "the retry must re-run the cancel")

	var activeCount int64
	require.NoError(t, client.Gorm().
		Model(&models.UserSubscription{}).
		Where("user_id = ? AND status = ?", userID, enums.SubscriptionActive).
		Count(&activeCount).Error)
	require.EqualValues(t, 1, activeCount, "never two simultaneously active rows")

	current, err := svc.Current(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, premium.ID, current.ID)
}

func TestActivateRejectsUnknownPlan(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clk)

	_, err := svc.Activate(context.Background(), uuid.New(), enums.PlanID("platinum"), enums.PaymentFree, "")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

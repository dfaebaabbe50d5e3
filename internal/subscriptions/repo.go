package subscriptions

import (
	"context"
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/db/models"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository handles subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, subscription *models.UserSubscription) error
	Update(ctx context.Context, subscription *models.UserSubscription) error
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserSubscription, error)
	CancelActiveByUser(ctx context.Context, userID uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, subscription *models.UserSubscription) error {
	if subscription.ID == uuid.Nil {
		subscription.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) Update(ctx context.Context, subscription *models.UserSubscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

func (r *repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.SubscriptionActive).
		First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserSubscription, error) {
	var subs []models.UserSubscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) CancelActiveByUser(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.UserSubscription{}).
		Where("user_id = ? AND status = ?", userID, enums.SubscriptionActive).
		Updates(map[string]any{
			"status":       enums.SubscriptionCancelled,
			"auto_renew":   false,
			"cancelled_at": at,
			"updated_at":   at,
		}).Error
}

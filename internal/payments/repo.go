package payments

import (
	"context"

	"github.com/davidnjeri/carhub-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository handles payment request persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.PaymentRequest) error
	Update(ctx context.Context, request *models.PaymentRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error)
	FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.PaymentRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PaymentRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.PaymentRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) Update(ctx context.Context, request *models.PaymentRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	var request models.PaymentRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.PaymentRequest, error) {
	var request models.PaymentRequest
	if err := r.db.WithContext(ctx).
		First(&request, "checkout_request_id = ?", checkoutRequestID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PaymentRequest, error) {
	var requests []models.PaymentRequest
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

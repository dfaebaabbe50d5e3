package models

import (
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRequest tracks one STK push attempt. CheckoutRequestID is the
// correlation token handed back by the gateway and echoed in callbacks.
type PaymentRequest struct {
	ID                uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID           `gorm:"type:uuid;index;not null" json:"userId"`
	PlanID            enums.PlanID        `gorm:"size:16;not null" json:"planId"`
	Phone             string              `gorm:"size:16;not null" json:"phone"`
	Amount            decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method            enums.PaymentMethod `gorm:"size:16;not null;default:mpesa" json:"method"`
	Status            enums.PaymentStatus `gorm:"size:16;not null;index" json:"status"`
	CheckoutRequestID string              `gorm:"size:128;uniqueIndex;not null" json:"checkoutRequestId"`
	MerchantRequestID string              `gorm:"size:128" json:"merchantRequestId"`
	MpesaReceipt      string              `gorm:"size:64" json:"mpesaReceipt,omitempty"`
	FailureReason     string              `gorm:"size:255" json:"failureReason,omitempty"`
	CompletedAt       *time.Time          `json:"completedAt,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

func (PaymentRequest) TableName() string { return "payment_requests" }

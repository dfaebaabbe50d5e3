package models

import (
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/enums"
	"github.com/google/uuid"
)

// UserSubscription rows are append-mostly. Switching plans cancels the
// current row and inserts a new one; a partial unique index on
// (user_id) WHERE status = 'active' keeps at most one active row.
type UserSubscription struct {
	ID            uuid.UUID                `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID                `gorm:"type:uuid;index;not null" json:"userId"`
	PlanID        enums.PlanID             `gorm:"size:16;not null" json:"planId"`
	Status        enums.SubscriptionStatus `gorm:"size:16;not null;index" json:"status"`
	StartDate     time.Time                `gorm:"not null" json:"startDate"`
	EndDate       time.Time                `gorm:"not null" json:"endDate"`
	AutoRenew     bool                     `gorm:"not null;default:false" json:"autoRenew"`
	PaymentMethod enums.PaymentMethod      `gorm:"size:16;not null;default:free" json:"paymentMethod"`
	MpesaReceipt  string                   `gorm:"size:64" json:"mpesaReceipt,omitempty"`
	CancelledAt   *time.Time               `json:"cancelledAt,omitempty"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

func (UserSubscription) TableName() string { return "user_subscriptions" }

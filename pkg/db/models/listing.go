package models

import (
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Listing is a vehicle for sale. Price is KSH with two decimal places.
// Rows are never hard-deleted while they count against a seller's plan;
// removal is a status transition to expired.
type Listing struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID      uuid.UUID           `gorm:"type:uuid;index;not null" json:"sellerId"`
	SellerName    string              `gorm:"size:255;not null" json:"sellerName"`
	Title         string              `gorm:"size:255;not null" json:"title"`
	Make          string              `gorm:"size:64;not null;index" json:"make"`
	Model         string              `gorm:"size:64;not null" json:"model"`
	Year          int                 `gorm:"not null" json:"year"`
	Price         decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"price"`
	Mileage       int64               `gorm:"not null;default:0" json:"mileage"`
	BodyType      enums.BodyType      `gorm:"size:32;not null" json:"bodyType"`
	FuelType      enums.FuelType      `gorm:"size:32;not null" json:"fuelType"`
	Transmission  enums.Transmission  `gorm:"size:32;not null" json:"transmission"`
	SellerType    enums.SellerType    `gorm:"size:16;not null" json:"sellerType"`
	ExteriorColor string              `gorm:"size:64" json:"exteriorColor"`
	InteriorColor string              `gorm:"size:64" json:"interiorColor"`
	Location      string              `gorm:"size:128" json:"location"`
	Description   string              `gorm:"type:text" json:"description"`
	Images        pq.StringArray      `gorm:"type:text[]" json:"images"`
	Features      pq.StringArray      `gorm:"type:text[]" json:"features"`
	Featured      bool                `gorm:"not null;default:false;index" json:"featured"`
	Views         int64               `gorm:"not null;default:0" json:"views"`
	Status        enums.ListingStatus `gorm:"size:16;not null;default:active;index" json:"status"`
	CreatedAt     time.Time           `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func (Listing) TableName() string { return "car_listings" }

package listings

import (
	"github.com/davidnjeri/carhub-backend/pkg/db/models"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// SearchFilter narrows the public listing search. Every field is
// optional; a zero value places no constraint. Values within one slice
// are alternatives, distinct fields must all hold. Make, Model, and
// Location match as case-insensitive substrings.
type SearchFilter struct {
	Make          string
	Model         string
	BodyTypes     []enums.BodyType
	FuelTypes     []enums.FuelType
	Transmissions []enums.Transmission
	// SellerBoth (or empty) matches dealers and private sellers alike.
	SellerType enums.SellerType
	PriceMin   *decimal.Decimal
	PriceMax   *decimal.Decimal
	YearMin    *int
	YearMax    *int
	MileageMax *int64
	Location   string
	// Keyword matches title, make, model, or description.
	Keyword string

	Sort    enums.SortOrder
	Page    int
	PerPage int
}

// SearchResult is one page of the public search plus the total match count.
type SearchResult struct {
	Listings []models.Listing `json:"listings"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PerPage  int              `json:"perPage"`
}

// SellerPage is one keyset page of a seller's own inventory.
type SellerPage struct {
	Listings   []models.Listing `json:"listings"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// CreateListingInput carries the fields a seller supplies for a new
// listing. The seller's display name is resolved from their account,
// never taken from the request.
type CreateListingInput struct {
	Title         string
	Make          string
	Model         string
	Year          int
	Price         decimal.Decimal
	Mileage       int64
	BodyType      enums.BodyType
	FuelType      enums.FuelType
	Transmission  enums.Transmission
	SellerType    enums.SellerType
	ExteriorColor string
	InteriorColor string
	Location      string
	Description   string
	Images        []string
	Features      []string
}

// UpdateListingInput holds the mutable listing fields. Nil pointers
// leave the stored value unchanged.
type UpdateListingInput struct {
	Title       *string
	Price       *decimal.Decimal
	Mileage     *int64
	Location    *string
	Description *string
	Images      []string
	Features    []string
	Status      *enums.ListingStatus
}

package listings

import (
	"context"
	"fmt"

	"github.com/davidnjeri/carhub-backend/internal/subscriptions"
	"github.com/davidnjeri/carhub-backend/pkg/db/models"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
	"github.com/davidnjeri/carhub-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// entitlements is the slice of the subscription service the listing
// flow depends on.
type entitlements interface {
	MaxActiveListings(ctx context.Context, userID uuid.UUID) (int, error)
}

// sellerDirectory resolves the seller account behind a listing so the
// denormalized seller name can be stamped onto new rows.
type sellerDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service owns listing search, detail reads, and seller CRUD.
type Service struct {
	repo     Repository
	plans    entitlements
	sellers  sellerDirectory
	logg     *logger.Logger
	runAsync func(func())
}

var _ entitlements = (*subscriptions.Service)(nil)

func NewService(repo Repository, plans entitlements, sellers sellerDirectory, logg *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		plans:    plans,
		sellers:  sellers,
		logg:     logg,
		runAsync: func(fn func()) { go fn() },
	}
}

// SetAsyncRunner replaces the goroutine dispatcher, letting tests run
// the view-count write synchronously.
func (s *Service) SetAsyncRunner(run func(func())) {
	if run != nil {
		s.runAsync = run
	}
}

// Search returns one page of active listings matching the filter.
func (s *Service) Search(ctx context.Context, filter SearchFilter) (*SearchResult, error) {
	if filter.Sort != "" && !filter.Sort.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort order")
	}
	if filter.SellerType != "" && !filter.SellerType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid seller type")
	}
	if filter.PriceMin != nil && filter.PriceMax != nil && filter.PriceMin.GreaterThan(*filter.PriceMax) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price range is inverted")
	}
	if filter.YearMin != nil && filter.YearMax != nil && *filter.YearMin > *filter.YearMax {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "year range is inverted")
	}

	results, total, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "searching listings")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	return &SearchResult{
		Listings: results,
		Total:    total,
		Page:     page,
		PerPage:  pagination.NormalizeLimit(filter.PerPage),
	}, nil
}

// Get loads one listing and records the view off the request path. A
// lost increment is acceptable; a slow one must not delay the reader.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading listing")
	}
	if listing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}

	viewCtx := context.WithoutCancel(ctx)
	s.runAsync(func() {
		if err := s.repo.IncrementViews(viewCtx, id); err != nil {
			s.logg.Warn(s.logg.WithField(viewCtx, "listing_id", id.String()), "recording listing view failed")
		}
	})

	return listing, nil
}

// Create inserts a listing for the seller, enforcing the plan's active
// listing cap.
func (s *Service) Create(ctx context.Context, sellerID uuid.UUID, input CreateListingInput) (*models.Listing, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	seller, err := s.sellers.FindByID(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading seller account")
	}
	if seller == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller account not found")
	}

	limit, err := s.plans.MaxActiveListings(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		active, err := s.repo.CountActiveBySeller(ctx, sellerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting active listings")
		}
		if active >= int64(limit) {
			return nil, pkgerrors.New(
				pkgerrors.CodeForbidden,
				fmt.Sprintf("free plan allows at most %d active listings", limit),
			).WithDetails(map[string]any{"limit": limit, "active": active})
		}
	}

	listing := &models.Listing{
		SellerID:      sellerID,
		SellerName:    seller.FullName,
		Title:         input.Title,
		Make:          input.Make,
		Model:         input.Model,
		Year:          input.Year,
		Price:         input.Price,
		Mileage:       input.Mileage,
		BodyType:      input.BodyType,
		FuelType:      input.FuelType,
		Transmission:  input.Transmission,
		SellerType:    input.SellerType,
		ExteriorColor: input.ExteriorColor,
		InteriorColor: input.InteriorColor,
		Location:      input.Location,
		Description:   input.Description,
		Images:        pq.StringArray(input.Images),
		Features:      pq.StringArray(input.Features),
		Status:        enums.ListingActive,
	}
	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating listing")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"listing_id": listing.ID.String(),
		"seller_id":  sellerID.String(),
	})
	s.logg.Info(ctx, "listing created")
	return listing, nil
}

// Update applies the seller's changes. Only the owning seller may edit.
func (s *Service) Update(ctx context.Context, sellerID, id uuid.UUID, input UpdateListingInput) (*models.Listing, error) {
	listing, err := s.ownedListing(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		listing.Title = *input.Title
	}
	if input.Price != nil {
		if input.Price.LessThanOrEqual(decimal.Zero) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		listing.Price = *input.Price
	}
	if input.Mileage != nil {
		if *input.Mileage < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "mileage cannot be negative")
		}
		listing.Mileage = *input.Mileage
	}
	if input.Location != nil {
		listing.Location = *input.Location
	}
	if input.Description != nil {
		listing.Description = *input.Description
	}
	if input.Images != nil {
		listing.Images = pq.StringArray(input.Images)
	}
	if input.Features != nil {
		listing.Features = pq.StringArray(input.Features)
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid listing status")
		}
		listing.Status = *input.Status
	}

	if err := s.repo.Update(ctx, listing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating listing")
	}
	return listing, nil
}

// MarkSold transitions an active listing to sold.
func (s *Service) MarkSold(ctx context.Context, sellerID, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.ownedListing(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	if listing.Status != enums.ListingActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only active listings can be marked sold")
	}

	listing.Status = enums.ListingSold
	if err := s.repo.Update(ctx, listing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking listing sold")
	}
	return listing, nil
}

// Delete retires the seller's listing. The row stays behind as expired
// so past references keep resolving; it simply drops out of search.
func (s *Service) Delete(ctx context.Context, sellerID, id uuid.UUID) error {
	listing, err := s.ownedListing(ctx, sellerID, id)
	if err != nil {
		return err
	}
	if listing.Status == enums.ListingExpired {
		return nil
	}

	listing.Status = enums.ListingExpired
	if err := s.repo.Update(ctx, listing); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "retiring listing")
	}
	return nil
}

// Featured returns the newest active featured listings for the home feed.
func (s *Service) Featured(ctx context.Context, limit int) ([]models.Listing, error) {
	results, err := s.repo.FindFeatured(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading featured listings")
	}
	return results, nil
}

// MyListings pages through the seller's inventory newest first.
func (s *Service) MyListings(ctx context.Context, sellerID uuid.UUID, limit int, cursorValue string) (*SellerPage, error) {
	cursor, err := pagination.ParseCursor(cursorValue)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	results, next, err := s.repo.ListBySeller(ctx, sellerID, limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing seller inventory")
	}

	page := &SellerPage{Listings: results}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(next.CreatedAt, next.ID)
	}
	return page, nil
}

func (s *Service) ownedListing(ctx context.Context, sellerID, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading listing")
	}
	if listing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if listing.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another seller")
	}
	return listing, nil
}

func validateCreateInput(input CreateListingInput) error {
	switch {
	case input.Title == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case input.Make == "" || input.Model == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "make and model are required")
	case input.Year < 1950 || input.Year > 2100:
		return pkgerrors.New(pkgerrors.CodeValidation, "year is out of range")
	case input.Price.LessThanOrEqual(decimal.Zero):
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	case input.Mileage < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "mileage cannot be negative")
	case !input.BodyType.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid body type")
	case !input.FuelType.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid fuel type")
	case !input.Transmission.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid transmission")
	case !input.SellerType.IsStorable():
		return pkgerrors.New(pkgerrors.CodeValidation, "seller type must be private or dealer")
	}
	return nil
}

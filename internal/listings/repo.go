package listings

import (
	"context"
	"strings"

	"github.com/davidnjeri/carhub-backend/pkg/db/models"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	"github.com/davidnjeri/carhub-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository handles listing persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) error
	Update(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	Search(ctx context.Context, filter SearchFilter) ([]models.Listing, int64, error)
	FindFeatured(ctx context.Context, limit int) ([]models.Listing, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Listing, *pagination.Cursor, error)
	CountActiveBySeller(ctx context.Context, sellerID uuid.UUID) (int64, error)
	IncrementViews(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a listing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) error {
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *repository) Update(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Save(listing).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &listing, nil
}

// Search applies the filter, counts the full match set, and returns one
// offset page. Featured listings always sort ahead of the rest.
func (r *repository) Search(ctx context.Context, filter SearchFilter) ([]models.Listing, int64, error) {
	base := r.applyFilter(r.db.WithContext(ctx).Model(&models.Listing{}), filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	perPage := pagination.NormalizeLimit(filter.PerPage)
	page := filter.Page
	if page < 1 {
		page = 1
	}

	qb := r.applyFilter(r.db.WithContext(ctx).Model(&models.Listing{}), filter)
	qb = qb.Order("featured DESC")
	switch filter.Sort {
	case enums.SortPriceAsc:
		qb = qb.Order("price ASC")
	case enums.SortPriceDesc:
		qb = qb.Order("price DESC")
	case enums.SortYearDesc:
		qb = qb.Order("year DESC")
	case enums.SortMileageAsc:
		qb = qb.Order("mileage ASC")
	default:
		qb = qb.Order("created_at DESC")
	}
	qb = qb.Order("id DESC").Offset((page - 1) * perPage).Limit(perPage)

	var results []models.Listing
	if err := qb.Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *repository) applyFilter(qb *gorm.DB, filter SearchFilter) *gorm.DB {
	qb = qb.Where("status = ?", enums.ListingActive)

	if make := strings.TrimSpace(filter.Make); make != "" {
		qb = qb.Where("LOWER(make) LIKE ?", likePattern(make))
	}
	if model := strings.TrimSpace(filter.Model); model != "" {
		qb = qb.Where("LOWER(model) LIKE ?", likePattern(model))
	}
	if len(filter.BodyTypes) > 0 {
		qb = qb.Where("body_type IN ?", filter.BodyTypes)
	}
	if len(filter.FuelTypes) > 0 {
		qb = qb.Where("fuel_type IN ?", filter.FuelTypes)
	}
	if len(filter.Transmissions) > 0 {
		qb = qb.Where("transmission IN ?", filter.Transmissions)
	}
	if filter.SellerType.IsStorable() {
		qb = qb.Where("seller_type = ?", filter.SellerType)
	}
	if filter.PriceMin != nil {
		qb = qb.Where("price >= ?", filter.PriceMin)
	}
	if filter.PriceMax != nil {
		qb = qb.Where("price <= ?", filter.PriceMax)
	}
	if filter.YearMin != nil {
		qb = qb.Where("year >= ?", *filter.YearMin)
	}
	if filter.YearMax != nil {
		qb = qb.Where("year <= ?", *filter.YearMax)
	}
	if filter.MileageMax != nil {
		qb = qb.Where("mileage <= ?", *filter.MileageMax)
	}
	if location := strings.TrimSpace(filter.Location); location != "" {
		qb = qb.Where("LOWER(location) LIKE ?", likePattern(location))
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		pattern := likePattern(keyword)
		qb = qb.Where(
			"(LOWER(title) LIKE ? OR LOWER(make) LIKE ? OR LOWER(model) LIKE ? OR LOWER(description) LIKE ?)",
			pattern, pattern, pattern, pattern,
		)
	}
	return qb
}

// FindFeatured returns the newest active featured listings.
func (r *repository) FindFeatured(ctx context.Context, limit int) ([]models.Listing, error) {
	var results []models.Listing
	err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("status = ? AND featured", enums.ListingActive).
		Order("created_at DESC").Order("id DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&results).Error
	return results, err
}

// ListBySeller returns the seller's listings newest first with a keyset cursor.
func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Listing, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(limit)

	qb := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("seller_id = ?", sellerID)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	qb = qb.Order("created_at DESC").Order("id DESC").Limit(pagination.LimitWithBuffer(limit))

	var results []models.Listing
	if err := qb.Find(&results).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(results) > normalized {
		results = results[:normalized]
		last := results[len(results)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

func (r *repository) CountActiveBySeller(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("seller_id = ? AND status = ?", sellerID, enums.ListingActive).
		Count(&count).Error
	return count, err
}

// IncrementViews bumps the counter in place without racing concurrent reads.
func (r *repository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

func likePattern(value string) string {
	return "%" + strings.ToLower(value) + "%"
}

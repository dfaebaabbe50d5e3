package listings

import (
	"context"
	"testing"

	"github.com/davidnjeri/carhub-backend/pkg/config"
	"github.com/davidnjeri/carhub-backend/pkg/db"
	"github.com/davidnjeri/carhub-backend/pkg/db/models"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

type stubPlans struct {
	limit int
	err   error
}

func (s stubPlans) MaxActiveListings(context.Context, uuid.UUID) (int, error) {
	return s.limit, s.err
}

// stubSellers resolves every id to the same account.
type stubSellers struct{}

func (stubSellers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id, Email: "seller@example.com", FullName: "Jane Wanjiku"}, nil
}

func newListingService(t *testing.T, plans entitlements) *Service {
	t.Helper()

	client, err := db.NewWithDialector(sqlite.Open(":memory:"), config.DBConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Gorm().AutoMigrate(&models.Listing{}))

	svc := NewService(NewRepository(client.Gorm()), plans, stubSellers{}, logger.New(logger.Options{ServiceName: "test"}))
	svc.SetAsyncRunner(func(fn func()) { fn() })
	return svc
}

func validInput() CreateListingInput {
	return CreateListingInput{
		Title:        "Toyota Corolla 2018",
		Make:         "Toyota",
		Model:        "Corolla",
		Year:         2018,
		Price:        decimal.NewFromInt(12000),
		Mileage:      54000,
		BodyType:     enums.BodySedan,
		FuelType:     enums.FuelGasoline,
		Transmission: enums.TransmissionAutomatic,
		SellerType:   enums.SellerPrivate,
		Location:     "Nairobi",
	}
}

func TestCreateEnforcesFreePlanCap(t *testing.T) {
	svc := newListingService(t, stubPlans{limit: 2})
	ctx := context.Background()
	sellerID := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, sellerID, validInput())
		require.NoError(t, err)
	}

	_, err := svc.Create(ctx, sellerID, validInput())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestCreateUnlimitedForPremium(t *testing.T) {
	svc := newListingService(t, stubPlans{limit: 0})
	ctx := context.Background()
	sellerID := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, sellerID, validInput())
		require.NoError(t, err)
	}
}

func TestCapCountsOnlyActiveListings(t *testing.T) {
	svc := newListingService(t, stubPlans{limit: 2})
	ctx := context.Background()
	sellerID := uuid.New()

	first, err := svc.Create(ctx, sellerID, validInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, sellerID, validInput())
	require.NoError(t, err)

	_, err = svc.MarkSold(ctx, sellerID, first.ID)
	require.NoError(t, err)

	_, err = svc.Create(ctx, sellerID, validInput())
	require.NoError(t, err, "selling a listing frees a slot")
}

func TestGetRecordsView(t *testing.T) {
	svc := newListingService(t, stubPlans{limit: 0})
	ctx := context.Background()

	created, err := svc.Create(ctx, uuid.New(), validInput())
	require.NoError(t, err)

	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)

	reloaded, err := svc.repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, reloaded.Views)
}

func TestGetUnknownListing(t *testing.T) {
	svc := newListingService(t, stubPlans{limit: 0})

	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestUpdateRejectsForeignListing(t *testing.T) {
	svc := newListingService(t, stubPlans{limit: 0})
	ctx := context.Background()

	created, err := svc.Create(ctx, uuid.New(), validInput())
	require.NoError(t, err)

	title := "hijacked"
	_, err = svc.Update(ctx, uuid.New(), created.ID, UpdateListingInput{Title: &title})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestMarkSoldTwiceConflicts(t *testing.T) {
	svc := newListingService(t, stubPlans{limit: 0})
	ctx := context.Background()
	sellerID := uuid.New()

	created, err := svc.Create(ctx, sellerID, validInput())
	require.NoError(t, err)

	_, err = svc.MarkSold(ctx, sellerID, created.ID)
	require.NoError(t, err)

	_, err = svc.MarkSold(ctx, sellerID, created.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCreateStampsSellerName(t *testing.T) {
	svc := newListingService(t, stubPlans{limit: 0})

	created, err := svc.Create(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)
	require.Equal(t, "Jane Wanjiku", created.SellerName)
}

func TestDeleteRetiresInsteadOfRemoving(t *testing.T) {
	svc := newListingService(t, stubPlans{limit: 0})
	ctx := context.Background()
	sellerID := uuid.New()

	created, err := svc.Create(ctx, sellerID, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, sellerID, created.ID))
	require.NoError(t, svc.Delete(ctx, sellerID, created.ID), "repeat delete is a no-op")

	retired, err := svc.repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, retired, "the row must survive")
	require.Equal(t, enums.ListingExpired, retired.Status)

	_, total, err := svc.repo.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Zero(t, total, "retired listings drop out of search")
}

func TestSearchRejectsInvertedBounds(t *testing.T) {
	svc := newListingService(t, stubPlans{limit: 0})
	ctx := context.Background()

	min := decimal.NewFromInt(50000)
	max := decimal.NewFromInt(30000)
	_, err := svc.Search(ctx, SearchFilter{PriceMin: &min, PriceMax: &max})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	yearMin, yearMax := 2022, 2015
	_, err = svc.Search(ctx, SearchFilter{YearMin: &yearMin, YearMax: &yearMax})
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCreateValidation(t *testing.T) {
	svc := newListingService(t, stubPlans{limit: 0})
	ctx := context.Background()

	input := validInput()
	input.Price = decimal.Zero
	_, err := svc.Create(ctx, uuid.New(), input)
	require.Error(t, err)

	input = validInput()
	input.SellerType = enums.SellerBoth
	_, err = svc.Create(ctx, uuid.New(), input)
	require.Error(t, err, "the both sentinel is query-only")
}

package controllers

import (
	"net/http"
	"strconv"

	"github.com/davidnjeri/carhub-backend/api/responses"
	"github.com/davidnjeri/carhub-backend/api/validators"
	"github.com/davidnjeri/carhub-backend/internal/listings"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/davidnjeri/carhub-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type createListingRequest struct {
	Title         string   `json:"title" validate:"required,min=3,max=255"`
	Make          string   `json:"make" validate:"required,max=64"`
	Model         string   `json:"model" validate:"required,max=64"`
	Year          int      `json:"year" validate:"required,min=1950,max=2100"`
	Price         string   `json:"price" validate:"required"`
	Mileage       int64    `json:"mileage" validate:"min=0"`
	BodyType      string   `json:"bodyType" validate:"required"`
	FuelType      string   `json:"fuelType" validate:"required"`
	Transmission  string   `json:"transmission" validate:"required"`
	SellerType    string   `json:"sellerType" validate:"required,oneof=private dealer"`
	ExteriorColor string   `json:"exteriorColor" validate:"omitempty,max=64"`
	InteriorColor string   `json:"interiorColor" validate:"omitempty,max=64"`
	Location      string   `json:"location" validate:"omitempty,max=128"`
	Description   string   `json:"description" validate:"omitempty,max=10000"`
	Images        []string `json:"images" validate:"omitempty,max=20,dive,url"`
	Features      []string `json:"features" validate:"omitempty,max=50"`
}

type updateListingRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=3,max=255"`
	Price       *string  `json:"price"`
	Mileage     *int64   `json:"mileage" validate:"omitempty,min=0"`
	Location    *string  `json:"location" validate:"omitempty,max=128"`
	Description *string  `json:"description" validate:"omitempty,max=10000"`
	Images      []string `json:"images" validate:"omitempty,max=20,dive,url"`
	Features    []string `json:"features" validate:"omitempty,max=50"`
	Status      *string  `json:"status"`
}

// ListingsSearch is the public browse endpoint.
func ListingsSearch(svc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := validators.ParseSearchFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Search(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListingsFeatured serves the home page feed of promoted vehicles.
func ListingsFeatured(svc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid limit"))
				return
			}
			limit = parsed
		}

		results, err := svc.Featured(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, results)
	}
}

// ListingsGet returns one listing and counts the view.
func ListingsGet(svc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func ListingsCreate(svc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := createInputFromRequest(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Create(r.Context(), sellerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

func ListingsUpdate(svc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := updateInputFromRequest(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Update(r.Context(), sellerID, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func ListingsMarkSold(svc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.MarkSold(r.Context(), sellerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func ListingsDelete(svc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), sellerID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ListingsMine pages through the caller's own inventory.
func ListingsMine(svc *listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid limit"))
				return
			}
		}

		page, err := svc.MyListings(r.Context(), sellerID, limit, r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func createInputFromRequest(body createListingRequest) (listings.CreateListingInput, error) {
	var input listings.CreateListingInput

	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid price")
	}
	bodyType, err := enums.ParseBodyType(body.BodyType)
	if err != nil {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid bodyType")
	}
	fuelType, err := enums.ParseFuelType(body.FuelType)
	if err != nil {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid fuelType")
	}
	transmission, err := enums.ParseTransmission(body.Transmission)
	if err != nil {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid transmission")
	}
	sellerType, err := enums.ParseSellerType(body.SellerType)
	if err != nil {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid sellerType")
	}

	return listings.CreateListingInput{
		Title:         body.Title,
		Make:          body.Make,
		Model:         body.Model,
		Year:          body.Year,
		Price:         price,
		Mileage:       body.Mileage,
		BodyType:      bodyType,
		FuelType:      fuelType,
		Transmission:  transmission,
		SellerType:    sellerType,
		ExteriorColor: body.ExteriorColor,
		InteriorColor: body.InteriorColor,
		Location:      body.Location,
		Description:   body.Description,
		Images:        body.Images,
		Features:      body.Features,
	}, nil
}

func updateInputFromRequest(body updateListingRequest) (listings.UpdateListingInput, error) {
	input := listings.UpdateListingInput{
		Title:       body.Title,
		Mileage:     body.Mileage,
		Location:    body.Location,
		Description: body.Description,
		Images:      body.Images,
		Features:    body.Features,
	}

	if body.Price != nil {
		price, err := decimal.NewFromString(*body.Price)
		if err != nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid price")
		}
		input.Price = &price
	}
	if body.Status != nil {
		status, err := enums.ParseListingStatus(*body.Status)
		if err != nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
		}
		input.Status = &status
	}
	return input, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed "+param)
	}
	return id, nil
}

package validators

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/davidnjeri/carhub-backend/internal/listings"
	"github.com/davidnjeri/carhub-backend/pkg/enums"
	pkgerrors "github.com/davidnjeri/carhub-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// ParseSearchFilter maps query parameters onto the listing search
// filter. Enum parameters accept both repetition and comma-separated
// form; make, model, and location are single substring terms.
func ParseSearchFilter(r *http.Request) (listings.SearchFilter, error) {
	query := r.URL.Query()
	filter := listings.SearchFilter{
		Make:     strings.TrimSpace(query.Get("make")),
		Model:    strings.TrimSpace(query.Get("model")),
		Location: strings.TrimSpace(query.Get("location")),
		Keyword:  strings.TrimSpace(query.Get("q")),
	}

	for _, raw := range multiValues(query, "bodyType") {
		parsed, err := enums.ParseBodyType(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid bodyType").WithDetails(map[string]string{"bodyType": raw})
		}
		filter.BodyTypes = append(filter.BodyTypes, parsed)
	}
	for _, raw := range multiValues(query, "fuelType") {
		parsed, err := enums.ParseFuelType(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid fuelType").WithDetails(map[string]string{"fuelType": raw})
		}
		filter.FuelTypes = append(filter.FuelTypes, parsed)
	}
	for _, raw := range multiValues(query, "transmission") {
		parsed, err := enums.ParseTransmission(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid transmission").WithDetails(map[string]string{"transmission": raw})
		}
		filter.Transmissions = append(filter.Transmissions, parsed)
	}

	if raw := query.Get("sellerType"); raw != "" {
		parsed, err := enums.ParseSellerType(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid sellerType")
		}
		filter.SellerType = parsed
	}

	var err error
	if filter.PriceMin, err = decimalParam(query, "priceMin"); err != nil {
		return filter, err
	}
	if filter.PriceMax, err = decimalParam(query, "priceMax"); err != nil {
		return filter, err
	}
	if filter.YearMin, err = intParam(query, "yearMin"); err != nil {
		return filter, err
	}
	if filter.YearMax, err = intParam(query, "yearMax"); err != nil {
		return filter, err
	}
	mileageMax, err := intParam(query, "mileageMax")
	if err != nil {
		return filter, err
	}
	if mileageMax != nil {
		mm := int64(*mileageMax)
		filter.MileageMax = &mm
	}

	sort, err := enums.ParseSortOrder(query.Get("sort"))
	if err != nil {
		return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort")
	}
	filter.Sort = sort

	if page, err := intParam(query, "page"); err != nil {
		return filter, err
	} else if page != nil {
		filter.Page = *page
	}
	if perPage, err := intParam(query, "perPage"); err != nil {
		return filter, err
	} else if perPage != nil {
		filter.PerPage = *perPage
	}

	return filter, nil
}

func multiValues(query url.Values, key string) []string {
	var out []string
	for _, raw := range query[key] {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func intParam(query url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key)
	}
	return &value, nil
}

func decimalParam(query url.Values, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key)
	}
	return &value, nil
}

package enums

import (
	"fmt"
	"strings"
)

type ListingStatus string

const (
	ListingActive  ListingStatus = "active"
	ListingPending ListingStatus = "pending"
	ListingSold    ListingStatus = "sold"
	ListingExpired ListingStatus = "expired"
)

func (s ListingStatus) String() string { return string(s) }

func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingActive, ListingPending, ListingSold, ListingExpired:
		return true
	}
	return false
}

func ParseListingStatus(value string) (ListingStatus, error) {
	s := ListingStatus(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid listing status %q", value)
	}
	return s, nil
}

// SortOrder names the supported listing orderings. Featured listings
// always rank first regardless of the chosen order.
type SortOrder string

const (
	SortNewest     SortOrder = "newest"
	SortPriceAsc   SortOrder = "price_asc"
	SortPriceDesc  SortOrder = "price_desc"
	SortYearDesc   SortOrder = "year_desc"
	SortMileageAsc SortOrder = "mileage_asc"
)

func (s SortOrder) String() string { return string(s) }

func (s SortOrder) IsValid() bool {
	switch s {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortYearDesc, SortMileageAsc:
		return true
	}
	return false
}

func ParseSortOrder(value string) (SortOrder, error) {
	if strings.TrimSpace(value) == "" {
		return SortNewest, nil
	}
	s := SortOrder(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid sort order %q", value)
	}
	return s, nil
}

package enums

import (
	"fmt"
	"strings"
)

type BodyType string

const (
	BodySedan       BodyType = "sedan"
	BodySUV         BodyType = "suv"
	BodyTruck       BodyType = "truck"
	BodyCoupe       BodyType = "coupe"
	BodyConvertible BodyType = "convertible"
	BodyWagon       BodyType = "wagon"
	BodyHatchback   BodyType = "hatchback"
	BodyVan         BodyType = "van"
	BodyMinivan     BodyType = "minivan"
)

func (b BodyType) String() string { return string(b) }

func (b BodyType) IsValid() bool {
	switch b {
	case BodySedan, BodySUV, BodyTruck, BodyCoupe, BodyConvertible,
		BodyWagon, BodyHatchback, BodyVan, BodyMinivan:
		return true
	}
	return false
}

func ParseBodyType(value string) (BodyType, error) {
	b := BodyType(strings.ToLower(strings.TrimSpace(value)))
	if !b.IsValid() {
		return "", fmt.Errorf("invalid body type %q", value)
	}
	return b, nil
}

type FuelType string

const (
	FuelGasoline     FuelType = "gasoline"
	FuelDiesel       FuelType = "diesel"
	FuelElectric     FuelType = "electric"
	FuelHybrid       FuelType = "hybrid"
	FuelPluginHybrid FuelType = "plugin_hybrid"
	FuelNaturalGas   FuelType = "natural_gas"
	FuelOther        FuelType = "other"
)

func (f FuelType) String() string { return string(f) }

func (f FuelType) IsValid() bool {
	switch f {
	case FuelGasoline, FuelDiesel, FuelElectric, FuelHybrid,
		FuelPluginHybrid, FuelNaturalGas, FuelOther:
		return true
	}
	return false
}

func ParseFuelType(value string) (FuelType, error) {
	f := FuelType(strings.ToLower(strings.TrimSpace(value)))
	if !f.IsValid() {
		return "", fmt.Errorf("invalid fuel type %q", value)
	}
	return f, nil
}

type Transmission string

const (
	TransmissionAutomatic     Transmission = "automatic"
	TransmissionManual        Transmission = "manual"
	TransmissionSemiAutomatic Transmission = "semi-automatic"
	TransmissionCVT           Transmission = "cvt"
)

func (t Transmission) String() string { return string(t) }

func (t Transmission) IsValid() bool {
	switch t {
	case TransmissionAutomatic, TransmissionManual, TransmissionSemiAutomatic, TransmissionCVT:
		return true
	}
	return false
}

func ParseTransmission(value string) (Transmission, error) {
	t := Transmission(strings.ToLower(strings.TrimSpace(value)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid transmission %q", value)
	}
	return t, nil
}

// SellerType classifies who is selling. SellerBoth is a query-side
// sentinel meaning no seller constraint and is never stored.
type SellerType string

const (
	SellerPrivate SellerType = "private"
	SellerDealer  SellerType = "dealer"
	SellerBoth    SellerType = "both"
)

func (s SellerType) String() string { return string(s) }

func (s SellerType) IsValid() bool {
	switch s {
	case SellerPrivate, SellerDealer, SellerBoth:
		return true
	}
	return false
}

// IsStorable reports whether the value may be persisted on a listing.
func (s SellerType) IsStorable() bool {
	return s == SellerPrivate || s == SellerDealer
}

func ParseSellerType(value string) (SellerType, error) {
	s := SellerType(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid seller type %q", value)
	}
	return s, nil
}

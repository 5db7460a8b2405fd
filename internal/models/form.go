// internal/models/form.go
package models

import "strings"

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// Symbol returns the display symbol used in charts and reports.
func (c Currency) Symbol() string {
	switch c {
	case CurrencyEUR:
		return "€"
	case CurrencyGBP:
		return "£"
	default:
		return "$"
	}
}

type AreaUnit string

const (
	AreaSquareMeters AreaUnit = "m²"
	AreaSquareFeet   AreaUnit = "ft²"
)

type Style string

const (
	StyleModern  Style = "modern"
	StyleClassic Style = "classic"
)

type Occupants string

const (
	OccupantsSingle         Occupants = "single"
	OccupantsCouple         Occupants = "couple"
	OccupantsFamily         Occupants = "family"
	OccupantsFamilyWithKids Occupants = "family_with_kids"
	OccupantsRoommates      Occupants = "roommates"
	OccupantsSeniors        Occupants = "seniors"
)

// FormInput is the home specification entered in the wizard's first phase.
// A submitted FormInput is never patched; a new submission replaces it.
type FormInput struct {
	Currency    Currency  `json:"currency" validate:"required,oneof=USD EUR GBP"`
	Budget      float64   `json:"budget" validate:"required,gt=0"`
	Area        float64   `json:"area" validate:"required,gt=0"`
	AreaUnit    AreaUnit  `json:"areaUnit" validate:"required,oneof=m² ft²"`
	Bedrooms    int       `json:"bedrooms" validate:"required,gt=0,lte=20"`
	Bathrooms   int       `json:"bathrooms" validate:"required,gt=0,lte=20"`
	LivingRooms int       `json:"livingRoom" validate:"eq=1"`
	Kitchens    int       `json:"kitchen" validate:"eq=1"`
	OtherRooms  string    `json:"otherRooms,omitempty" validate:"max=500"`
	Location    string    `json:"location" validate:"required,max=200"`
	Style       Style     `json:"style" validate:"required,oneof=modern classic"`
	Occupants   Occupants `json:"occupants" validate:"omitempty,oneof=single couple family family_with_kids roommates seniors"`
}

// Normalize pins the fixed room counts and trims free text.
func (f FormInput) Normalize() FormInput {
	f.LivingRooms = 1
	f.Kitchens = 1
	f.Location = strings.TrimSpace(f.Location)
	f.OtherRooms = strings.TrimSpace(f.OtherRooms)
	return f
}

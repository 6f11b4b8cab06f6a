package domain

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Filter is a conjunction of optional predicates; a nil field imposes no constraint.
type Filter struct {
	Source       *string
	City         *string // city or address.city, case-insensitive substring
	Country      *string // country or address.country, case-insensitive substring
	Name         *string
	Availability *string // matches isAvailable and both legacy availability shapes
	PriceSegment *string
	MinPrice     *float64 // applied to priceForNight or pricePerNight
	MaxPrice     *float64
}

// AvailabilityFlag is the boolean reading of the availability filter: only "true" is true.
func (f Filter) AvailabilityFlag() bool {
	return f.Availability != nil && *f.Availability == "true"
}

func (f Filter) HasPriceBounds() bool { return f.MinPrice != nil || f.MaxPrice != nil }

// Matches evaluates the filter against one listing in process.
// Store-backed repositories must return exactly the listings this accepts.
func (f Filter) Matches(l Listing) bool {
	if f.Source != nil && l.Source != *f.Source {
		return false
	}
	if f.City != nil {
		var nested *string
		if l.Address != nil {
			nested = l.Address.City
		}
		if !containsFold(l.City, *f.City) && !containsFold(nested, *f.City) {
			return false
		}
	}
	if f.Country != nil {
		var nested *string
		if l.Address != nil {
			nested = l.Address.Country
		}
		if !containsFold(l.Country, *f.Country) && !containsFold(nested, *f.Country) {
			return false
		}
	}
	if f.Name != nil && !containsFold(l.Name, *f.Name) {
		return false
	}
	if f.Availability != nil {
		want := f.AvailabilityFlag()
		ok := l.IsAvailable != nil && *l.IsAvailable == want
		if !ok && l.Availability != nil {
			ok = *l.Availability == *f.Availability || *l.Availability == strconv.FormatBool(want)
		}
		if !ok {
			return false
		}
	}
	if f.PriceSegment != nil && (l.PriceSegment == nil || *l.PriceSegment != *f.PriceSegment) {
		return false
	}
	if f.HasPriceBounds() && !f.priceInRange(l.PriceForNight) && !f.priceInRange(l.PricePerNight) {
		return false
	}
	return true
}

func (f Filter) priceInRange(p *float64) bool {
	if p == nil {
		return false
	}
	if f.MinPrice != nil && *p < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && *p > *f.MaxPrice {
		return false
	}
	return true
}

// containsFold reports whether needle occurs in *hay ignoring case. A nil hay never matches.
func containsFold(hay *string, needle string) bool {
	if hay == nil {
		return false
	}
	fold := cases.Fold()
	return strings.Contains(fold.String(*hay), fold.String(needle))
}

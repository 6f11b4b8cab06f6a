package mysql

import (
	"strconv"
	"strings"

	"stayhub/internal/domain"
)

// COALESCE keeps the stored value when the new payload leaves a field NULL;
// raw always follows the latest payload.
const upsertListingSQL = `
INSERT INTO listings
  (source, original_id, name, city, country, address, address_city, address_country,
   availability, is_available, price_for_night, price_per_night, price_segment, raw)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name            = COALESCE(VALUES(name), listings.name),
  city            = COALESCE(VALUES(city), listings.city),
  country         = COALESCE(VALUES(country), listings.country),
  address         = COALESCE(VALUES(address), listings.address),
  address_city    = COALESCE(VALUES(address_city), listings.address_city),
  address_country = COALESCE(VALUES(address_country), listings.address_country),
  availability    = COALESCE(VALUES(availability), listings.availability),
  is_available    = COALESCE(VALUES(is_available), listings.is_available),
  price_for_night = COALESCE(VALUES(price_for_night), listings.price_for_night),
  price_per_night = COALESCE(VALUES(price_per_night), listings.price_per_night),
  price_segment   = COALESCE(VALUES(price_segment), listings.price_segment),
  raw             = VALUES(raw),
  updated_at      = CURRENT_TIMESTAMP(3)
`

const selectListingCols = `
SELECT
  id, source, original_id, name, city, country,
  address IS NOT NULL, address_city, address_country,
  availability, is_available, price_for_night, price_per_night, price_segment,
  raw, created_at, updated_at
FROM listings`

const getListingByKeySQL = selectListingCols + `
WHERE source = ? AND original_id = ?`

const listSourcesSQL = `SELECT DISTINCT source FROM listings ORDER BY source`

const countListingsSQL = `SELECT COUNT(*) FROM listings`

const countPerSourceSQL = `SELECT source, COUNT(*) FROM listings GROUP BY source ORDER BY source`

// -----------------------------------------------------------------------------
// FILTER
// -----------------------------------------------------------------------------

// buildListingsWhere renders f as a WHERE clause (empty when f has no predicates)
// plus its positional args. It must accept exactly what domain.Filter.Matches accepts.
func buildListingsWhere(f domain.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Source != nil {
		conds = append(conds, "source = ?")
		args = append(args, *f.Source)
	}
	if f.City != nil {
		p := likePattern(*f.City)
		conds = append(conds, "(LOWER(city) LIKE ? OR LOWER(address_city) LIKE ?)")
		args = append(args, p, p)
	}
	if f.Country != nil {
		p := likePattern(*f.Country)
		conds = append(conds, "(LOWER(country) LIKE ? OR LOWER(address_country) LIKE ?)")
		args = append(args, p, p)
	}
	if f.Name != nil {
		conds = append(conds, "LOWER(name) LIKE ?")
		args = append(args, likePattern(*f.Name))
	}
	if f.Availability != nil {
		want := f.AvailabilityFlag()
		conds = append(conds, "(is_available = ? OR availability = ? OR availability = ?)")
		args = append(args, want, *f.Availability, strconv.FormatBool(want))
	}
	if f.PriceSegment != nil {
		conds = append(conds, "price_segment = ?")
		args = append(args, *f.PriceSegment)
	}
	if f.HasPriceBounds() {
		a, aArgs := priceRange("price_for_night", f)
		b, bArgs := priceRange("price_per_night", f)
		conds = append(conds, "("+a+" OR "+b+")")
		args = append(args, aArgs...)
		args = append(args, bArgs...)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func priceRange(col string, f domain.Filter) (string, []any) {
	parts := []string{col + " IS NOT NULL"}
	var args []any
	if f.MinPrice != nil {
		parts = append(parts, col+" >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		parts = append(parts, col+" <= ?")
		args = append(args, *f.MaxPrice)
	}
	return "(" + strings.Join(parts, " AND ") + ")", args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern is a lower-cased substring pattern; backslash is MySQL's default LIKE escape.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

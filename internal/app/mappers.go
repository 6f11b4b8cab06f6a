package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"stayhub/internal/domain"
)

/********** source mapping registry (single source of truth) **********/

// fieldRule copies one raw value (addressed by a dot path) into the listing.
// assign is only called when the path resolves to a non-null value, unless
// always is set, in which case it also sees nil.
type fieldRule struct {
	path   string
	always bool
	assign func(l *domain.Listing, v any)
}

// sourceMappings is keyed by source name. Sources missing here still yield
// a minimal listing (originalId, source, rawData).
var sourceMappings = map[string][]fieldRule{
	// nested hotel shape: {id, name, address:{city,country}, isAvailable, priceForNight}
	"source1": {
		{path: "name", assign: func(l *domain.Listing, v any) { l.Name = asText(v) }},
		{path: "isAvailable", always: true, assign: func(l *domain.Listing, v any) { l.IsAvailable = asTruthy(v) }},
		{path: "priceForNight", assign: func(l *domain.Listing, v any) { l.PriceForNight = asFloat("priceForNight", v) }},
		{path: "address", assign: assignAddress},
		{path: "address.city", assign: func(l *domain.Listing, v any) { l.City = asText(v) }},
		{path: "address.country", assign: func(l *domain.Listing, v any) { l.Country = asText(v) }},
	},
	// flat shape: {id, city, availability, priceSegment, pricePerNight}
	"source2": {
		{path: "city", assign: func(l *domain.Listing, v any) { l.City = asText(v) }},
		{path: "pricePerNight", assign: func(l *domain.Listing, v any) { l.PricePerNight = asFloat("pricePerNight", v) }},
		{path: "priceSegment", assign: func(l *domain.Listing, v any) { l.PriceSegment = asText(v) }},
		{path: "availability", assign: func(l *domain.Listing, v any) { l.Availability = asText(v) }},
	},
}

var idAliases = []string{"id", "_id"}

// KnownSource reports whether a source has a structured field mapping.
func KnownSource(name string) bool {
	_, ok := sourceMappings[name]
	return ok
}

/********** normalizer **********/

// Normalize maps one raw item from source into the unified listing shape.
// The item must be a JSON object carrying an id; raw is kept verbatim as RawData.
func Normalize(source string, raw json.RawMessage) (domain.Listing, error) {
	p, err := decodeObject(raw)
	if err != nil {
		return domain.Listing{}, &domain.MalformedItemError{Source: source, Reason: err.Error()}
	}
	id := firstText(p, idAliases...)
	if id == "" {
		return domain.Listing{}, &domain.MalformedItemError{Source: source, Reason: "missing id"}
	}

	l := domain.Listing{
		OriginalID: id,
		Source:     source,
		RawData:    append(json.RawMessage(nil), raw...),
	}
	for _, r := range sourceMappings[source] {
		if v := lookupAny(p, r.path); v != nil || r.always {
			r.assign(&l, v)
		}
	}
	return l, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

var errNotObject = errors.New("item is not a JSON object")

func assignAddress(l *domain.Listing, v any) {
	obj, ok := v.(map[string]any)
	if !ok {
		return
	}
	l.Address = &domain.Address{
		City:    asText(obj["city"]),
		Country: asText(obj["country"]),
	}
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// firstText: first path that renders to a non-blank text value, returned verbatim.
func firstText(m map[string]any, paths ...string) string {
	for _, p := range paths {
		if s := asText(lookupAny(m, p)); s != nil && strings.TrimSpace(*s) != "" {
			return *s
		}
	}
	return ""
}

// asText renders scalars as text; objects, arrays and null yield nil.
// Strings are kept verbatim.
func asText(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = formatNumber(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil
	}
	return &s
}

// formatNumber keeps integers exact and renders other numbers without exponent.
func formatNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return n.String()
}

// asTruthy: true for boolean true or the string "true", false for anything else,
// including a missing value.
func asTruthy(v any) *bool {
	b := false
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		b = t == "true"
	}
	return &b
}

// asFloat: number from float64/int/json.Number/string like "120.5" or "8,0".
// Unparseable input leaves the field unset.
func asFloat(field string, v any) *float64 {
	switch t := v.(type) {
	case float64:
		f := t
		return &f
	case int:
		f := float64(t)
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		if s != "" {
			if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return &f
			}
		}
	}
	log.Debug().Str("field", field).Interface("value", v).Msg("coercion skipped")
	return nil
}

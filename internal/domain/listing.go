package domain

import (
	"encoding/json"
	"time"
)

// Listing is the unified record every source is normalized into.
// (OriginalID, Source) is the natural key.
type Listing struct {
	ID            int64           `json:"id,omitempty"`
	OriginalID    string          `json:"originalId"`
	Source        string          `json:"source"`
	Name          *string         `json:"name,omitempty"`
	City          *string         `json:"city,omitempty"`
	Country       *string         `json:"country,omitempty"`
	Address       *Address        `json:"address,omitempty"`
	Availability  *string         `json:"availability,omitempty"` // legacy free-form text
	IsAvailable   *bool           `json:"isAvailable,omitempty"`
	PriceForNight *float64        `json:"priceForNight,omitempty"`
	PricePerNight *float64        `json:"pricePerNight,omitempty"`
	PriceSegment  *string         `json:"priceSegment,omitempty"`
	RawData       json.RawMessage `json:"rawData"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Address is the nested location shape some sources still send.
type Address struct {
	Country *string `json:"country,omitempty"`
	City    *string `json:"city,omitempty"`
}

// Source describes where raw data for one provider lives.
type Source struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	URL  string `json:"url" yaml:"url" validate:"required,url"`
	Type string `json:"type" yaml:"type" validate:"omitempty,oneof=json"`
}

type Stats struct {
	TotalCount int64            `json:"totalCount"`
	PerSource  map[string]int64 `json:"perSource"`
}

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RawListing holds an unprocessed listing row as read from a seed CSV.
// Every field is the verbatim cell text; the cleaner parses it into a Listing.
type RawListing struct {
	Title          string
	RawPrice       string
	Currency       string
	RawYear        string
	Brand          string
	Model          string
	RawLength      string
	Location       string
	Condition      string
	Description    string
	SellerName     string
	SellerType     string
	SourceURL      string
	SourcePlatform string
	Images         string
	HIN            string
	MMSI           string
}

// Listing is a yacht sale listing as stored in the yacht_listings table.
// Year, Length and Price are optional; a nil or zero value means "unknown".
type Listing struct {
	ID             int64     `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	Price          *float64  `db:"price" json:"price"`
	Currency       string    `db:"currency" json:"currency"`
	Year           *int      `db:"year" json:"year"`
	Brand          string    `db:"brand" json:"brand"`
	Model          string    `db:"model" json:"model"`
	Length         *float64  `db:"length" json:"length"`
	Location       string    `db:"location" json:"location"`
	Condition      string    `db:"condition" json:"condition"`
	Description    string    `db:"description" json:"description"`
	SellerName     string    `db:"seller_name" json:"seller_name"`
	SellerType     string    `db:"seller_type" json:"seller_type"`
	SourceURL      string    `db:"source_url" json:"source_url"`
	SourcePlatform string    `db:"source_platform" json:"source_platform"`
	Images         string    `db:"images" json:"images"`
	HIN            string    `db:"hin" json:"hin"`
	MMSI           string    `db:"mmsi" json:"mmsi"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
	IsDuplicate    bool      `db:"is_duplicate" json:"is_duplicate"`
	Score          float64   `db:"score" json:"score"`
}

// YearValue returns the build year and whether it is known.
func (l *Listing) YearValue() (int, bool) {
	if l.Year == nil || *l.Year == 0 {
		return 0, false
	}
	return *l.Year, true
}

// LengthValue returns the hull length in meters and whether it is known.
func (l *Listing) LengthValue() (float64, bool) {
	if l.Length == nil || *l.Length == 0 {
		return 0, false
	}
	return *l.Length, true
}

// PriceValue returns the asking price and whether it is known.
func (l *Listing) PriceValue() (float64, bool) {
	if l.Price == nil || *l.Price == 0 {
		return 0, false
	}
	return *l.Price, true
}

// ImageURLs decodes the serialized image list. An empty column yields no
// images; anything that is not a JSON array of strings is an error.
func (l *Listing) ImageURLs() ([]string, error) {
	if l.Images == "" {
		return nil, nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(l.Images), &urls); err != nil {
		return nil, fmt.Errorf("listing %d: decode images: %w", l.ID, err)
	}
	return urls, nil
}

// Float returns a pointer to v, for building optional fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// InsightReport holds the computed analytics over the active listings.
type InsightReport struct {
	TotalListings      int            `json:"total_listings"`
	PricedListings     int            `json:"priced_listings"`
	AveragePrice       float64        `json:"average_price"`
	MinPrice           float64        `json:"min_price"`
	MaxPrice           float64        `json:"max_price"`
	AverageScore       float64        `json:"average_score"`
	MostExpensive      *Listing       `json:"most_expensive,omitempty"`
	TopScored          []*Listing     `json:"top_scored"`
	ListingsByLocation map[string]int `json:"listings_by_location"`
}

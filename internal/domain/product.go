package domain

import "time"

// Normalized size units. The normalizer converts litres to ml and kilograms
// to grams, so only these four survive into matching.
const (
	UnitMl    = "ml"
	UnitGram  = "g"
	UnitOunce = "oz"
	UnitPiece = "pcs"
)

// ProductRecord is one normalized product-price row from a single retailer.
// It is created by the normalizer from a raw scraped row and is immutable
// afterwards.
type ProductRecord struct {
	SourceID    string    `json:"sourceId"`
	Retailer    string    `json:"retailer"` // normalized retailer name, e.g. "lookfantastic"
	RawTitle    string    `json:"rawTitle"`
	CleanTitle  string    `json:"cleanTitle"`
	Brand       string    `json:"brand,omitempty"` // normalized; empty = unknown
	Category    string    `json:"category"`        // normalized; empty = unknown
	SizeValue   float64   `json:"sizeValue,omitempty"`
	SizeUnit    string    `json:"sizeUnit,omitempty"`
	PackQty     int       `json:"packQty,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	CollectedAt time.Time `json:"collectedAt,omitempty"`
}

// HasSize reports whether both size value and unit were parsed.
func (p ProductRecord) HasSize() bool {
	return p.SizeValue > 0 && p.SizeUnit != ""
}

// HasBrand reports whether a brand was extracted for the record.
func (p ProductRecord) HasBrand() bool {
	return p.Brand != ""
}

// Key uniquely identifies a record within a run. Two rows with the same
// source id from different retailers are distinct products.
func (p ProductRecord) Key() string {
	return p.Retailer + "|" + p.SourceID
}

// Package loader reads cleaned product listings from CSV files produced by
// the upstream scraping and cleaning stages.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/auenatural/pricelens/internal/usecase"
)

// Column aliases accepted for each listing field, checked in order. The
// cleaning stage has renamed columns more than once; the loader tolerates
// every historical spelling.
var columnAliases = map[string][]string{
	"source_id":  {"product_id", "source_id", "id"},
	"retailer":   {"retailer", "retailer_name", "seller"},
	"title":      {"title", "product_name", "name"},
	"brand":      {"brand", "brand_name", "brand_clean"},
	"category":   {"category", "category_name", "search_query"},
	"size_value": {"size_value", "size"},
	"size_unit":  {"size_unit", "unit"},
	"price":      {"price", "price_gbp"},
	"currency":   {"currency"},
	"collected":  {"date_collected", "collected_at", "scraped_at"},
}

// ReadListings parses a cleaned-products CSV into raw listings. Rows shorter
// than the header are skipped; field-level problems are left for the
// normalizer, which routes bad rows to the unmatched set.
func ReadListings(path string) ([]usecase.RawListing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := buildIndex(header)

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var listings []usecase.RawListing
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		listing := usecase.RawListing{
			SourceID:    field(row, "source_id"),
			Retailer:    field(row, "retailer"),
			Title:       field(row, "title"),
			Brand:       field(row, "brand"),
			Category:    field(row, "category"),
			SizeValue:   field(row, "size_value"),
			SizeUnit:    field(row, "size_unit"),
			Price:       field(row, "price"),
			Currency:    field(row, "currency"),
			CollectedAt: field(row, "collected"),
		}
		if listing.SourceID == "" {
			// Fall back to the line number so a malformed row still gets a
			// stable identity in the unmatched report.
			listing.SourceID = fmt.Sprintf("row-%d", line)
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

func buildIndex(header []string) map[string]int {
	position := make(map[string]int, len(header))
	for i, col := range header {
		position[strings.ToLower(strings.TrimSpace(col))] = i
	}

	index := make(map[string]int, len(columnAliases))
	for name, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := position[alias]; ok {
				index[name] = i
				break
			}
		}
	}
	return index
}

package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/auenatural/pricelens/internal/domain"
)

// RawListing is one scraped product row before normalization, as produced by
// the upstream loader.
type RawListing struct {
	SourceID    string
	Retailer    string
	Title       string
	Brand       string
	Category    string
	SizeValue   string
	SizeUnit    string
	Price       string
	Currency    string
	CollectedAt string
}

// Compiled patterns for title cleaning and size extraction.
var (
	// Matches size expressions like "100g", "2 x 50 ml", "1.5 litre"
	sizeExprRegex = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:x\s*\d+)?\s*(ml|g|kg|oz|l|litre|litres|gram|grams|ounce|ounces|pack|packs|pcs|bars|tabs)\b`)

	// Matches the size value+unit to extract, e.g. "100 g" -> 100, g
	sizeCaptureRegex = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(ml|g|kg|oz|l|litre|litres|gram|grams|ounce|ounces)\b`)

	// Pack quantity patterns like "3-pack", "pack of 6", "4 pcs", "2x"
	packQtyRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d+)\s*-?\s*pack\b`),
		regexp.MustCompile(`(?i)\bpack\s*of\s*(\d+)\b`),
		regexp.MustCompile(`(?i)\bbulk\s*x\s*(\d+)\b`),
		regexp.MustCompile(`(?i)\b(\d+)\s*pcs\b`),
		regexp.MustCompile(`(?i)\b(\d+)x\b`),
	}

	nonAlnumRegex = regexp.MustCompile(`[^a-zA-Z0-9\s]+`)
	multiSpace    = regexp.MustCompile(`\s+`)
	nonNumeric    = regexp.MustCompile(`[^0-9.\-]`)
)

// unitMap folds raw unit spellings onto the four canonical units, with the
// multiplier needed to express the value in that unit.
var unitMap = map[string]struct {
	unit   string
	factor float64
}{
	"ml":          {domain.UnitMl, 1},
	"millilitre":  {domain.UnitMl, 1},
	"millilitres": {domain.UnitMl, 1},
	"milliliter":  {domain.UnitMl, 1},
	"milliliters": {domain.UnitMl, 1},
	"l":           {domain.UnitMl, 1000},
	"litre":       {domain.UnitMl, 1000},
	"litres":      {domain.UnitMl, 1000},
	"g":           {domain.UnitGram, 1},
	"gram":        {domain.UnitGram, 1},
	"grams":       {domain.UnitGram, 1},
	"kg":          {domain.UnitGram, 1000},
	"oz":          {domain.UnitOunce, 1},
	"ounce":       {domain.UnitOunce, 1},
	"ounces":      {domain.UnitOunce, 1},
}

// Normalizer turns raw scraped listings into canonical product records.
type Normalizer struct {
	knownBrands []string
}

// NewNormalizer creates a normalizer with the configured known-brand list.
func NewNormalizer(knownBrands []string) *Normalizer {
	return &Normalizer{knownBrands: knownBrands}
}

// Normalize converts a raw listing into an immutable ProductRecord. A listing
// missing a required field (retailer, usable title, price) returns
// ErrMalformedRecord; the caller routes it to the unmatched set instead of
// failing the run.
func (n *Normalizer) Normalize(raw RawListing) (domain.ProductRecord, error) {
	rec := domain.ProductRecord{
		SourceID: strings.TrimSpace(raw.SourceID),
		Retailer: normalizeText(raw.Retailer),
		RawTitle: strings.TrimSpace(raw.Title),
		Category: normalizeText(raw.Category),
		Currency: strings.ToUpper(strings.TrimSpace(raw.Currency)),
	}

	if rec.Retailer == "" {
		return rec, fmt.Errorf("%w: missing retailer", domain.ErrMalformedRecord)
	}
	if rec.SourceID == "" {
		return rec, fmt.Errorf("%w: missing source id", domain.ErrMalformedRecord)
	}

	rec.CleanTitle = CleanTitle(raw.Title)
	if rec.CleanTitle == "" {
		return rec, fmt.Errorf("%w: title empty after cleaning", domain.ErrMalformedRecord)
	}

	price, err := parsePrice(raw.Price)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	rec.Price = price

	// Upstream-provided brand and size win; otherwise extract from the title.
	if raw.Brand != "" {
		rec.Brand = normalizeText(raw.Brand)
	} else {
		rec.Brand = n.extractBrand(raw.Title)
	}
	if raw.SizeValue != "" && raw.SizeUnit != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(raw.SizeValue), 64); err == nil && value > 0 {
			if mapped, ok := unitMap[strings.ToLower(strings.TrimSpace(raw.SizeUnit))]; ok {
				rec.SizeValue, rec.SizeUnit = value*mapped.factor, mapped.unit
			}
		}
	}
	if rec.SizeUnit == "" {
		rec.SizeValue, rec.SizeUnit = parseSize(raw.Title)
	}
	rec.PackQty = parsePackQty(raw.Title)

	if raw.CollectedAt != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, raw.CollectedAt); err == nil {
				rec.CollectedAt = ts
				break
			}
		}
	}

	return rec, nil
}

// CleanTitle strips size/pack expressions and punctuation from a title and
// lowercases it for matching.
func CleanTitle(title string) string {
	cleaned := sizeExprRegex.ReplaceAllString(title, " ")
	cleaned = nonAlnumRegex.ReplaceAllString(cleaned, " ")
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	return strings.ToLower(strings.TrimSpace(cleaned))
}

// normalizeText lowercases, strips punctuation, and collapses whitespace.
// Shared by retailer, category, and brand normalization, and used as the
// embedding cache key function.
func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnumRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}

// extractBrand matches the known-brand list first, then falls back to the
// leading capitalized tokens of the raw title.
func (n *Normalizer) extractBrand(title string) string {
	titleLower := strings.ToLower(title)
	for _, brand := range n.knownBrands {
		if strings.Contains(titleLower, strings.ToLower(brand)) {
			return normalizeText(brand)
		}
	}

	var brandTokens []string
	for i, tok := range strings.Fields(title) {
		if i >= 3 {
			break
		}
		r := []rune(tok)
		if len(r) > 0 && r[0] >= 'A' && r[0] <= 'Z' {
			brandTokens = append(brandTokens, tok)
		}
	}
	return normalizeText(strings.Join(brandTokens, " "))
}

// parseSize extracts the first size expression and converts it to a
// canonical unit. Returns zero values when no size is present.
func parseSize(title string) (float64, string) {
	m := sizeCaptureRegex.FindStringSubmatch(title)
	if m == nil {
		return 0, ""
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, ""
	}
	mapped, ok := unitMap[strings.ToLower(m[2])]
	if !ok {
		return 0, ""
	}
	return value * mapped.factor, mapped.unit
}

func parsePackQty(title string) int {
	for _, re := range packQtyRegexes {
		if m := re.FindStringSubmatch(title); m != nil {
			if qty, err := strconv.Atoi(m[1]); err == nil && qty > 1 {
				return qty
			}
		}
	}
	return 0
}

// parsePrice accepts "12.99", "£12.99", "12,99" and similar retail formats.
func parsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("missing price")
	}
	cleaned := strings.ReplaceAll(raw, ",", ".")
	cleaned = nonNumeric.ReplaceAllString(cleaned, "")
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("unparseable price %q", raw)
	}
	return price, nil
}

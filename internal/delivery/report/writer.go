// Package report writes the matching run's outputs for the warehouse
// loaders and BI tooling: matches.csv, unmatched.csv, and summary.json.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/auenatural/pricelens/internal/domain"
)

var matchesHeader = []string{
	"product_1_id", "product_1_retailer", "product_1_name", "product_1_clean",
	"brand_1", "size_value_1", "size_unit_1", "price_1", "currency_1",
	"product_2_id", "product_2_retailer", "product_2_name", "product_2_clean",
	"brand_2", "size_value_2", "size_unit_2", "price_2", "currency_2",
	"category", "similarity", "lexical_ratio", "jaccard", "hybrid_lexical",
	"semantic", "brand_similarity", "size_similarity", "semantic_degraded",
	"tier", "provenance",
}

var unmatchedHeader = []string{
	"product_id", "retailer", "product_name", "product_clean", "brand",
	"category", "size_value", "size_unit", "price", "currency", "reason",
}

// Writer emits run outputs into a single directory.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// WriteMatches writes one row per match with both identities' attributes and
// every component score.
func (w *Writer) WriteMatches(matches []domain.Match) (string, error) {
	path := filepath.Join(w.dir, "matches.csv")
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, matchRow(m))
	}
	return path, writeCSV(path, matchesHeader, rows)
}

// WriteUnmatched writes one row per unmatched record with its cleaned
// variants and reason code.
func (w *Writer) WriteUnmatched(unmatched []domain.UnmatchedRecord) (string, error) {
	path := filepath.Join(w.dir, "unmatched.csv")
	rows := make([][]string, 0, len(unmatched))
	for _, um := range unmatched {
		r := um.Record
		rows = append(rows, []string{
			r.SourceID, r.Retailer, r.RawTitle, r.CleanTitle, r.Brand,
			r.Category, formatFloat(r.SizeValue), r.SizeUnit,
			formatFloat(r.Price), r.Currency, um.Reason,
		})
	}
	return path, writeCSV(path, unmatchedHeader, rows)
}

// WriteSummary writes the run-level monitoring record as indented JSON.
func (w *Writer) WriteSummary(summary domain.Summary) (string, error) {
	path := filepath.Join(w.dir, "summary.json")
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return path, fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return path, fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

func matchRow(m domain.Match) []string {
	a, b, c := m.A, m.B, m.Components
	return []string{
		a.SourceID, a.Retailer, a.RawTitle, a.CleanTitle,
		a.Brand, formatFloat(a.SizeValue), a.SizeUnit, formatFloat(a.Price), a.Currency,
		b.SourceID, b.Retailer, b.RawTitle, b.CleanTitle,
		b.Brand, formatFloat(b.SizeValue), b.SizeUnit, formatFloat(b.Price), b.Currency,
		a.Category,
		formatScore(m.Composite), formatScore(c.LexicalRatio), formatScore(c.Jaccard),
		formatScore(c.HybridLexical), formatScore(c.Semantic),
		formatScore(c.Brand), formatScore(c.Size),
		strconv.FormatBool(c.SemanticDegraded),
		string(m.Tier), string(m.Provenance),
	}
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

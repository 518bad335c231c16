package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/auenatural/pricelens/internal/domain"
)

func testListings() []RawListing {
	return []RawListing{
		{
			SourceID: "a1",
			Retailer: "retailer_a",
			Title:    "Faith in Nature Lavender Shampoo Bar 85g",
			Category: "shampoo bar",
			Price:    "6.49",
			Currency: "GBP",
		},
		{
			SourceID: "b1",
			Retailer: "retailer_b",
			Title:    "Faith in Nature Lavender Shampoo Bar 85 g",
			Category: "shampoo bar",
			Price:    "5.99",
			Currency: "GBP",
		},
		{
			SourceID: "a2",
			Retailer: "retailer_a",
			Title:    "Ethique Mango Body Butter Block 100g",
			Category: "body butter",
			Price:    "11.00",
			Currency: "GBP",
		},
		{
			// No plausible partner anywhere.
			SourceID: "b2",
			Retailer: "retailer_b",
			Title:    "Garnier Micellar Cleansing Water 400ml",
			Category: "cleanser",
			Price:    "4.50",
			Currency: "GBP",
		},
		{
			// Malformed: no price.
			SourceID: "b3",
			Retailer: "retailer_b",
			Title:    "Mystery Soap",
			Category: "soap",
		},
	}
}

func TestPipelineRun(t *testing.T) {
	p := NewPipeline(testConfig(), newFakeCache(), testLogger())

	result, err := p.Run(context.Background(), testListings())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(result.Matches) != 1 {
		t.Fatalf("got %d matches, want 1: %+v", len(result.Matches), result.Matches)
	}
	m := result.Matches[0]
	if m.A.SourceID != "a1" || m.B.SourceID != "b1" {
		t.Errorf("matched %s-%s, want a1-b1", m.A.SourceID, m.B.SourceID)
	}
	// Same title cleans identically on both sides, so the lexical and
	// semantic signals both saturate.
	if m.Tier != domain.TierHigh {
		t.Errorf("tier = %s (composite %v), want high", m.Tier, m.Composite)
	}

	if len(result.Unmatched) != 3 {
		t.Fatalf("got %d unmatched, want 3", len(result.Unmatched))
	}
	reasons := map[string]string{}
	for _, um := range result.Unmatched {
		reasons[um.Record.SourceID] = um.Reason
	}
	if reasons["a2"] != domain.ReasonNoCandidate || reasons["b2"] != domain.ReasonNoCandidate {
		t.Errorf("unmatched reasons = %v, want no-candidate for a2 and b2", reasons)
	}
	if reasons["b3"] != domain.ReasonIncompleteRecord {
		t.Errorf("b3 reason = %q, want incomplete record", reasons["b3"])
	}

	s := result.Summary
	if s.TotalRecords != 5 || s.IncompleteRecords != 1 || s.MatchPairs != 1 {
		t.Errorf("summary counts = %d/%d/%d, want 5/1/1",
			s.TotalRecords, s.IncompleteRecords, s.MatchPairs)
	}
	if s.MatchedProducts != 2 || s.UnmatchedProducts != 3 {
		t.Errorf("matched/unmatched = %d/%d, want 2/3", s.MatchedProducts, s.UnmatchedProducts)
	}
	if s.CoveragePct != 40 {
		t.Errorf("coverage = %v, want 40", s.CoveragePct)
	}
	if s.Tiers.High != 1 {
		t.Errorf("tier counts = %+v, want one high", s.Tiers)
	}
}

func TestPipelineRunDeterministic(t *testing.T) {
	cfg := testConfig()
	cfg.Matching.Workers = 4

	extract := func() ([]string, []string) {
		p := NewPipeline(cfg, newFakeCache(), testLogger())
		result, err := p.Run(context.Background(), testListings())
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		var pairs, unmatched []string
		for _, m := range result.Matches {
			pairs = append(pairs, domain.PairKey(m.A, m.B))
		}
		for _, um := range result.Unmatched {
			unmatched = append(unmatched, um.Record.Key())
		}
		return pairs, unmatched
	}

	firstPairs, firstUnmatched := extract()
	for i := 0; i < 3; i++ {
		pairs, unmatched := extract()
		if !reflect.DeepEqual(pairs, firstPairs) {
			t.Fatalf("run %d match order differs: %v vs %v", i, pairs, firstPairs)
		}
		if !reflect.DeepEqual(unmatched, firstUnmatched) {
			t.Fatalf("run %d unmatched differs: %v vs %v", i, unmatched, firstUnmatched)
		}
	}
}

func TestPipelineRunEmptyInput(t *testing.T) {
	p := NewPipeline(testConfig(), newFakeCache(), testLogger())

	if _, err := p.Run(context.Background(), nil); !errors.Is(err, domain.ErrNoRecords) {
		t.Errorf("err = %v, want ErrNoRecords", err)
	}

	// All-malformed input is just as empty.
	listings := []RawListing{{SourceID: "p1", Retailer: "retailer_a", Title: "Soap"}}
	if _, err := p.Run(context.Background(), listings); !errors.Is(err, domain.ErrNoRecords) {
		t.Errorf("err = %v, want ErrNoRecords for all-malformed input", err)
	}
}

func TestPipelineCollapsesDuplicateListings(t *testing.T) {
	p := NewPipeline(testConfig(), newFakeCache(), testLogger())

	dup := RawListing{
		SourceID: "a1",
		Retailer: "retailer_a",
		Title:    "Lavender Shampoo Bar 85g",
		Category: "shampoo bar",
		Price:    "6.49",
	}
	records, incomplete := p.normalize([]RawListing{dup, dup, dup})
	if len(records) != 1 {
		t.Errorf("got %d records, want duplicates collapsed to 1", len(records))
	}
	if len(incomplete) != 0 {
		t.Errorf("got %d incomplete, want 0", len(incomplete))
	}
}

func TestPipelineDegradedRunStillMatches(t *testing.T) {
	p := NewPipeline(testConfig(), failingCache{}, testLogger())

	result, err := p.Run(context.Background(), testListings())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("got %d matches with failing embedder, want 1", len(result.Matches))
	}
	if result.Summary.SemanticDegradedPairs == 0 {
		t.Error("summary does not report degraded pairs")
	}
}

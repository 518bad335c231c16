package usecase

import (
	"context"
	"testing"

	"github.com/auenatural/pricelens/internal/domain"
)

func TestScorerDeterminism(t *testing.T) {
	scorer := NewScorer(testMatchingConfig(), newFakeCache(), testLogger())
	ctx := context.Background()

	pair := domain.CandidatePair{
		A: record("p1", "retailer_a", "Faith in Nature Lavender Shampoo Bar 85g", "faith in nature", "shampoo bar", 85, "g"),
		B: record("p2", "retailer_b", "Lavender Shampoo Soap Bar 85g", "faith in nature", "shampoo bar", 85, "g"),
	}

	first := scorer.Score(ctx, pair)
	for i := 0; i < 5; i++ {
		again := scorer.Score(ctx, pair)
		if again.Composite != first.Composite {
			t.Fatalf("run %d: composite = %v, want %v (determinism)", i, again.Composite, first.Composite)
		}
		if again.Components != first.Components {
			t.Fatalf("run %d: components = %+v, want %+v", i, again.Components, first.Components)
		}
	}
}

func TestScorerSymmetry(t *testing.T) {
	scorer := NewScorer(testMatchingConfig(), newFakeCache(), testLogger())
	ctx := context.Background()

	a := record("p1", "retailer_a", "Vanilla Body Butter Cream 200ml", "ethique", "body butter", 200, "ml")
	b := record("p2", "retailer_b", "Whipped Vanilla Body Cream 190ml", "garnier", "body butter", 190, "ml")

	ab := scorer.Score(ctx, domain.CandidatePair{A: a, B: b})
	ba := scorer.Score(ctx, domain.CandidatePair{A: b, B: a})

	if ab.Composite != ba.Composite {
		t.Errorf("Score(A,B) = %v, Score(B,A) = %v, want equal", ab.Composite, ba.Composite)
	}
	if ab.A.Key() != ba.A.Key() || ab.B.Key() != ba.B.Key() {
		t.Errorf("pair order not canonical: (%s,%s) vs (%s,%s)",
			ab.A.Key(), ab.B.Key(), ba.A.Key(), ba.B.Key())
	}
}

func TestScorerBrandAdjustment(t *testing.T) {
	// Lexical-only, with titles mid-range enough that neither adjustment
	// disappears into the clamp.
	scorer := NewScorer(testMatchingConfig(), failingCache{}, testLogger())
	ctx := context.Background()

	score := func(brandA, brandB string) float64 {
		a := record("p1", "retailer_a", "Lavender Shampoo Bar Solid", brandA, "shampoo bar", 0, "")
		b := record("p2", "retailer_b", "Lavender Shampoo Soap Twist", brandB, "shampoo bar", 0, "")
		return scorer.Score(ctx, domain.CandidatePair{A: a, B: b}).Composite
	}

	neutral := score("", "faith in nature")
	same := score("faith in nature", "faith in nature")
	different := score("faith in nature", "garnier")

	if same <= neutral {
		t.Errorf("same-brand score %v should exceed unknown-brand score %v", same, neutral)
	}
	if different >= neutral {
		t.Errorf("brand-mismatch score %v should be below unknown-brand score %v", different, neutral)
	}
}

func TestScorerSizeToleranceBoundary(t *testing.T) {
	scorer := NewScorer(testMatchingConfig(), newFakeCache(), testLogger())

	tests := []struct {
		name       string
		sizeA      float64
		sizeB      float64
		unitA      string
		unitB      string
		wantEffect float64
	}{
		{"exact match", 100, 100, "ml", "ml", 20},
		{"within epsilon", 100, 103, "ml", "ml", 20},
		{"19 percent apart gets bonus", 100, 119, "ml", "ml", 10},
		{"21 percent apart gets penalty", 100, 121, "ml", "ml", -10},
		{"incompatible units", 100, 100, "ml", "g", -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := record("p1", "retailer_a", "x", "", "shampoo bar", tt.sizeA, tt.unitA)
			b := record("p2", "retailer_b", "x", "", "shampoo bar", tt.sizeB, tt.unitB)
			_, effect := scorer.sizeEffect(a, b)
			if effect != tt.wantEffect {
				t.Errorf("sizeEffect(%v%s, %v%s) = %v, want %v",
					tt.sizeA, tt.unitA, tt.sizeB, tt.unitB, effect, tt.wantEffect)
			}
		})
	}

	t.Run("unknown size is neutral", func(t *testing.T) {
		a := record("p1", "retailer_a", "x", "", "shampoo bar", 0, "")
		b := record("p2", "retailer_b", "x", "", "shampoo bar", 100, "ml")
		component, effect := scorer.sizeEffect(a, b)
		if effect != 0 || component != componentNeutral {
			t.Errorf("sizeEffect with unknown size = (%v, %v), want (50, 0)", component, effect)
		}
	})
}

func TestScorerSubcategoryAdjustment(t *testing.T) {
	// Lexical-only so the comparison depends on the subcategory adjustment
	// and the titles alone.
	scorer := NewScorer(testMatchingConfig(), failingCache{}, testLogger())
	ctx := context.Background()

	base := func(titleA, titleB string) float64 {
		a := record("p1", "retailer_a", titleA, "", "face serum", 0, "")
		b := record("p2", "retailer_b", titleB, "", "face serum", 0, "")
		return scorer.Score(ctx, domain.CandidatePair{A: a, B: b}).Composite
	}

	sameSub := base("Vitamin C Brightening Face Serum Glow", "Vitamin C Radiance Face Serum Glow")
	mixedSub := base("Vitamin C Brightening Face Serum Glow", "Retinol Radiance Face Serum Glow")

	if sameSub <= mixedSub {
		t.Errorf("same-subcategory score %v should exceed mixed-subcategory score %v", sameSub, mixedSub)
	}
}

func TestScorerSemanticDegradation(t *testing.T) {
	scorer := NewScorer(testMatchingConfig(), failingCache{}, testLogger())
	ctx := context.Background()

	a := record("p1", "retailer_a", "Lavender Shampoo Bar", "", "shampoo bar", 0, "")
	b := record("p2", "retailer_b", "Lavender Shampoo Bar", "", "shampoo bar", 0, "")

	sp := scorer.Score(ctx, domain.CandidatePair{A: a, B: b})
	if !sp.Components.SemanticDegraded {
		t.Fatal("expected SemanticDegraded with failing embedding backend")
	}
	if sp.Components.Semantic != 0 {
		t.Errorf("semantic component = %v, want 0 when degraded", sp.Components.Semantic)
	}
	// Identical titles still score at full weight from the lexical signal.
	if sp.Components.HybridLexical != 100 {
		t.Errorf("hybrid lexical = %v, want 100 for identical titles", sp.Components.HybridLexical)
	}
	if scorer.DegradedPairs() != 1 {
		t.Errorf("DegradedPairs() = %d, want 1", scorer.DegradedPairs())
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"empty", nil, []float32{1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

package usecase

import (
	"context"
	"math"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/auenatural/pricelens/config"
	"github.com/auenatural/pricelens/internal/domain"
)

// Component scores reported alongside the composite, mirroring the match
// output columns: 100 agreement, 0 disagreement, 50 unknown.
const (
	componentAgree   = 100.0
	componentNeutral = 50.0
	componentClash   = 0.0
)

// subcategoryKeyword maps a short subcategory code to the title keywords that
// imply it. Ordered so detection is deterministic.
type subcategoryKeyword struct {
	code     string
	keywords []string
}

// Light ingredient/function intelligence beyond the coarse category split,
// e.g. a vitamin C serum should not pair with a retinol serum.
var defaultSubcategories = []subcategoryKeyword{
	{"vitc", []string{"vitamin c", "vit c", "ascorbic"}},
	{"niacinamide", []string{"niacinamide", "vitamin b3", "vit b3"}},
	{"hyaluronic", []string{"hyaluronic", "hyaluronic acid"}},
	{"retinol", []string{"retinol", "retinoid"}},
	{"anti_dandruff", []string{"anti dandruff", "anti-dandruff", "dandruff"}},
	{"curl", []string{"curly", "curl", "coily", "wavy"}},
	{"shea", []string{"shea butter", "shea"}},
	{"vanilla", []string{"vanilla"}},
	{"mango", []string{"mango"}},
}

// Scorer computes a composite 0-100 confidence for a candidate pair. It is a
// pure function of the two records and the configuration, except for lookups
// through the injected embedding cache.
type Scorer struct {
	cfg           config.MatchingConfig
	cache         domain.EmbeddingCache
	subcategories []subcategoryKeyword
	logger        *zap.SugaredLogger

	degradedPairs atomic.Int64
}

// NewScorer creates a scorer with the given weights and an embedding cache.
func NewScorer(cfg config.MatchingConfig, cache domain.EmbeddingCache, logger *zap.SugaredLogger) *Scorer {
	return &Scorer{
		cfg:           cfg,
		cache:         cache,
		subcategories: defaultSubcategories,
		logger:        logger,
	}
}

// DegradedPairs reports how many pairs fell back to lexical-only scoring
// because the embedding backend failed.
func (s *Scorer) DegradedPairs() int {
	return int(s.degradedPairs.Load())
}

// Score computes the composite confidence for a candidate pair. Scoring is
// symmetric: Score(A,B) and Score(B,A) yield identical results.
func (s *Scorer) Score(ctx context.Context, pair domain.CandidatePair) domain.ScoredPair {
	a, b := pair.A, pair.B
	// Canonical order keeps the output pair deterministic regardless of how
	// the blocker happened to order the two records.
	if a.Key() > b.Key() {
		a, b = b, a
	}

	tokensA := tokenize(a.CleanTitle)
	tokensB := tokenize(b.CleanTitle)

	var comps domain.ScoreComponents
	comps.LexicalRatio = tokenSetRatio(tokensA, tokensB)
	comps.Jaccard = jaccardSimilarity(tokensA, tokensB)

	rw := s.cfg.LexicalRatioWeight
	comps.HybridLexical = rw*comps.LexicalRatio + (1-rw)*comps.Jaccard

	// Semantic similarity through the cache; on backend failure the
	// semantic weight folds into the lexical signal so the pair still
	// gets a full-weight name score.
	nameSimilarity := comps.HybridLexical
	semantic, err := s.semanticSimilarity(ctx, a.CleanTitle, b.CleanTitle)
	if err != nil {
		comps.SemanticDegraded = true
		s.degradedPairs.Add(1)
		s.logger.Debugw("semantic scoring degraded to lexical-only",
			"a", a.Key(), "b", b.Key(), "error", err)
	} else {
		comps.Semantic = semantic
		nameSimilarity = s.cfg.LexicalWeight*comps.HybridLexical + s.cfg.SemanticWeight*semantic
	}

	score := nameSimilarity

	// Brand agreement. Unknown on either side is neutral.
	switch {
	case !a.HasBrand() || !b.HasBrand():
		comps.Brand = componentNeutral
	case a.Brand == b.Brand:
		comps.Brand = componentAgree
		score += s.cfg.BrandBonus
	default:
		comps.Brand = componentClash
		score -= s.cfg.BrandPenalty
	}

	// Size agreement. Unknown on either side is neutral.
	sizeComponent, sizeEffect := s.sizeEffect(a, b)
	comps.Size = sizeComponent
	score += sizeEffect

	// Subcategory keywords act as a tie-break refinement, never a
	// disqualifier.
	subA := s.detectSubcategory(a.CleanTitle)
	subB := s.detectSubcategory(b.CleanTitle)
	if subA != "" && subB != "" {
		if subA == subB {
			score += s.cfg.SubcategoryBonus
		} else {
			score -= s.cfg.SubcategoryPenalty
		}
	}

	return domain.ScoredPair{
		A:          a,
		B:          b,
		Composite:  clampScore(score),
		Components: comps,
	}
}

// sizeEffect returns the size component score and the composite adjustment.
// Same unit within the exact epsilon earns the full bonus, within tolerance
// a half bonus, anything else (including incompatible units) a penalty.
func (s *Scorer) sizeEffect(a, b domain.ProductRecord) (component, effect float64) {
	if !a.HasSize() || !b.HasSize() {
		return componentNeutral, 0
	}
	if a.SizeUnit != b.SizeUnit {
		return componentClash, -10
	}

	bigger := math.Max(a.SizeValue, b.SizeValue)
	smaller := math.Min(a.SizeValue, b.SizeValue)
	if smaller == 0 {
		return componentNeutral, 0
	}

	// Difference relative to the smaller size: 100ml vs 119ml is 19% apart.
	diffFrac := (bigger - smaller) / smaller
	switch {
	case diffFrac <= s.cfg.SizeExactEpsilon:
		return componentAgree, 20
	case diffFrac <= s.cfg.SizeTolerance:
		return componentNeutral, 10
	default:
		return componentClash, -10
	}
}

func (s *Scorer) semanticSimilarity(ctx context.Context, titleA, titleB string) (float64, error) {
	vecA, err := s.cache.GetOrCompute(ctx, titleA)
	if err != nil {
		return 0, err
	}
	vecB, err := s.cache.GetOrCompute(ctx, titleB)
	if err != nil {
		return 0, err
	}
	return cosineSimilarity(vecA, vecB) * 100, nil
}

func (s *Scorer) detectSubcategory(cleanTitle string) string {
	if cleanTitle == "" {
		return ""
	}
	for _, sub := range s.subcategories {
		for _, kw := range sub.keywords {
			if strings.Contains(cleanTitle, kw) {
				return sub.code
			}
		}
	}
	return ""
}

// cosineSimilarity returns the cosine of two vectors in [-1, 1], or 0 when
// either vector is empty or zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clampScore(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}

package usecase

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/auenatural/pricelens/config"
	"github.com/auenatural/pricelens/internal/domain"
)

// Recovery re-scans the unmatched set with relaxed heuristics to catch
// obvious duplicates the main engine missed. It consumes only unmatched
// records and a snapshot of the main-pass pair keys, so it cannot feed back
// into main-pass results.
type Recovery struct {
	cfg       config.RecoveryConfig
	matching  config.MatchingConfig
	blocker   *Blocker
	assembler *Assembler
	logger    *zap.SugaredLogger
}

// NewRecovery creates the recovery pass.
func NewRecovery(cfg config.RecoveryConfig, matching config.MatchingConfig, blocker *Blocker, assembler *Assembler, logger *zap.SugaredLogger) *Recovery {
	return &Recovery{cfg: cfg, matching: matching, blocker: blocker, assembler: assembler, logger: logger}
}

// Run mines the unmatched set for missed matches. mainPairs holds the
// unordered pair keys already present in the main match set; any pair found
// there is skipped, so the recovery output is disjoint from the main output.
// Incomplete records never re-enter scoring.
func (r *Recovery) Run(unmatched []domain.UnmatchedRecord, mainPairs map[string]bool) []domain.Match {
	if !r.cfg.Enabled {
		return nil
	}

	var records []domain.ProductRecord
	for _, um := range unmatched {
		if um.Reason == domain.ReasonNoCandidate {
			records = append(records, um.Record)
		}
	}
	if len(records) < 2 {
		return nil
	}

	var matches []domain.Match
	for _, block := range r.blocker.Blocks(records) {
		for _, pair := range r.blocker.Pairs(block) {
			if mainPairs[domain.PairKey(pair.A, pair.B)] {
				continue
			}
			sp := r.score(pair)
			if sp.Composite < r.cfg.MinSimilarity {
				continue
			}
			tier := r.assembler.Tier(sp.Composite)
			matches = append(matches, domain.Match{
				ScoredPair: sp,
				Tier:       tier,
				Provenance: domain.ProvenanceRecovery,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Composite != matches[j].Composite {
			return matches[i].Composite > matches[j].Composite
		}
		ki := domain.PairKey(matches[i].A, matches[i].B)
		kj := domain.PairKey(matches[j].A, matches[j].B)
		return ki < kj
	})

	r.logger.Infow("recovery pass complete",
		"unmatchedScanned", len(records), "recovered", len(matches))
	return matches
}

// score is the recovery pass's lexical-only scorer. No embeddings: the main
// engine already spent its semantic budget on these records, so the second
// look leans on near-duplicate structure instead.
func (r *Recovery) score(pair domain.CandidatePair) domain.ScoredPair {
	a, b := pair.A, pair.B
	if a.Key() > b.Key() {
		a, b = b, a
	}

	tokensA := tokenize(a.CleanTitle)
	tokensB := tokenize(b.CleanTitle)

	var comps domain.ScoreComponents
	comps.LexicalRatio = tokenSetRatio(tokensA, tokensB)
	comps.Jaccard = jaccardSimilarity(tokensA, tokensB)

	rw := r.matching.LexicalRatioWeight
	comps.HybridLexical = rw*comps.LexicalRatio + (1-rw)*comps.Jaccard

	score := comps.HybridLexical

	sameBrand := a.HasBrand() && b.HasBrand() && a.Brand == b.Brand
	switch {
	case !a.HasBrand() || !b.HasBrand():
		comps.Brand = componentNeutral
	case sameBrand:
		comps.Brand = componentAgree
		score += r.cfg.BrandBonus
	default:
		comps.Brand = componentClash
		score -= r.cfg.BrandPenalty
	}

	comps.Size = componentNeutral
	if a.HasSize() && b.HasSize() {
		if a.SizeUnit != b.SizeUnit {
			comps.Size = 10
			score -= 5
		} else {
			bigger := math.Max(a.SizeValue, b.SizeValue)
			smaller := math.Min(a.SizeValue, b.SizeValue)
			diffFrac := (bigger - smaller) / smaller
			switch {
			case diffFrac == 0:
				comps.Size = componentAgree
				score += 15
			case diffFrac <= r.cfg.SizeTolerance:
				comps.Size = 80
				score += 10
			default:
				comps.Size = 30
			}
		}
	}

	// Near-duplicate titles are almost certainly the same product even when
	// the adjustments dragged the score down.
	if comps.HybridLexical >= r.cfg.NearDupThreshold {
		score = math.Max(score, r.cfg.NearDupThreshold)
	} else if sameBrand && comps.HybridLexical >= 70 {
		score += 10
	}

	return domain.ScoredPair{
		A:          a,
		B:          b,
		Composite:  clampScore(score),
		Components: comps,
	}
}

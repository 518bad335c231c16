package usecase

import (
	"sort"

	"github.com/auenatural/pricelens/config"
	"github.com/auenatural/pricelens/internal/domain"
)

// Assembler converts scored pairs into the final match set and the residual
// unmatched set. Assignment is many-to-many across retailers: a product may
// match one counterpart per other retailer, but never a product from its own
// retailer.
type Assembler struct {
	cfg config.MatchingConfig
}

// NewAssembler creates an assembler with the configured thresholds.
func NewAssembler(cfg config.MatchingConfig) *Assembler {
	return &Assembler{cfg: cfg}
}

// Assemble retains every scored pair at or above the minimum similarity that
// does not violate the same-retailer exclusion, ordered by descending
// composite score with the pair identity as the deterministic tie-break.
// Records left out of every retained match come back as unmatched.
func (a *Assembler) Assemble(scored []domain.ScoredPair, records []domain.ProductRecord) ([]domain.Match, []domain.UnmatchedRecord) {
	retained := make([]domain.ScoredPair, 0, len(scored))
	seen := make(map[string]bool, len(scored))
	for _, sp := range scored {
		if sp.Composite < a.cfg.MinSimilarity {
			continue
		}
		// Same-retailer self-matches are silently excluded.
		if sp.A.Retailer == sp.B.Retailer {
			continue
		}
		key := domain.PairKey(sp.A, sp.B)
		if seen[key] {
			continue
		}
		seen[key] = true
		retained = append(retained, sp)
	}

	sort.Slice(retained, func(i, j int) bool {
		if retained[i].Composite != retained[j].Composite {
			return retained[i].Composite > retained[j].Composite
		}
		ki := domain.PairKey(retained[i].A, retained[i].B)
		kj := domain.PairKey(retained[j].A, retained[j].B)
		return ki < kj
	})

	matches := make([]domain.Match, 0, len(retained))
	matchedKeys := make(map[string]bool)
	for _, sp := range retained {
		matches = append(matches, domain.Match{
			ScoredPair: sp,
			Tier:       a.Tier(sp.Composite),
			Provenance: domain.ProvenanceMain,
		})
		matchedKeys[sp.A.Key()] = true
		matchedKeys[sp.B.Key()] = true
	}

	var unmatched []domain.UnmatchedRecord
	for _, rec := range records {
		if !matchedKeys[rec.Key()] {
			unmatched = append(unmatched, domain.UnmatchedRecord{
				Record: rec,
				Reason: domain.ReasonNoCandidate,
			})
		}
	}

	return matches, unmatched
}

// Tier maps a composite score onto its confidence tier. Scores below the
// low threshold only occur for recovery-pass matches.
func (a *Assembler) Tier(composite float64) domain.Tier {
	switch {
	case composite >= a.cfg.HighThreshold:
		return domain.TierHigh
	case composite >= a.cfg.MediumThreshold:
		return domain.TierMedium
	case composite >= a.cfg.LowThreshold:
		return domain.TierLow
	default:
		return domain.TierVeryLow
	}
}

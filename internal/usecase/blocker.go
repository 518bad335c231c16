package usecase

import (
	"sort"

	"github.com/auenatural/pricelens/internal/domain"
)

// Blocker partitions records into comparison groups so scoring never runs
// over the full cross product. Category is the blocking key: a true match is
// always same-category, so recall is preserved. Records with no recognized
// category form their own block and are never compared cross-category.
type Blocker struct {
	genericTitles map[string]bool
}

// NewBlocker creates a blocker. genericTitles is the list of whole-title
// strings too generic to trust as match targets (e.g. "shampoo bar").
func NewBlocker(genericTitles []string) *Blocker {
	generic := make(map[string]bool, len(genericTitles))
	for _, t := range genericTitles {
		generic[normalizeText(t)] = true
	}
	return &Blocker{genericTitles: generic}
}

// Blocks groups records by normalized category, ordered by category name so
// runs are reproducible. No state is carried between calls.
func (b *Blocker) Blocks(records []domain.ProductRecord) [][]domain.ProductRecord {
	byCategory := make(map[string][]domain.ProductRecord)
	for _, rec := range records {
		byCategory[rec.Category] = append(byCategory[rec.Category], rec)
	}

	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	blocks := make([][]domain.ProductRecord, 0, len(categories))
	for _, cat := range categories {
		block := byCategory[cat]
		sort.Slice(block, func(i, j int) bool { return block[i].Key() < block[j].Key() })
		blocks = append(blocks, block)
	}
	return blocks
}

// Pairs emits the candidate pairs within one block. Pruned up front:
//   - the same listing seen twice (identical source id and retailer)
//   - same-retailer pairs, which can never become a match
//   - generic-vs-specific titles ("shampoo bar" would act as a match magnet)
//   - pairs with no title-token overlap whose brands are both known and
//     different, which cannot clear the minimum threshold
func (b *Blocker) Pairs(block []domain.ProductRecord) []domain.CandidatePair {
	var pairs []domain.CandidatePair
	tokens := make([][]string, len(block))
	for i, rec := range block {
		tokens[i] = tokenize(rec.CleanTitle)
	}

	for i := 0; i < len(block); i++ {
		for j := i + 1; j < len(block); j++ {
			a, c := block[i], block[j]
			if a.SourceID == c.SourceID && a.Retailer == c.Retailer {
				continue
			}
			if a.Retailer == c.Retailer {
				continue
			}
			if b.genericTitles[a.CleanTitle] != b.genericTitles[c.CleanTitle] {
				continue
			}
			if a.HasBrand() && c.HasBrand() && a.Brand != c.Brand && !tokensOverlap(tokens[i], tokens[j]) {
				continue
			}
			pairs = append(pairs, domain.CandidatePair{A: a, B: c})
		}
	}
	return pairs
}

func tokensOverlap(tokens1, tokens2 []string) bool {
	set := make(map[string]bool, len(tokens1))
	for _, t := range tokens1 {
		set[t] = true
	}
	for _, t := range tokens2 {
		if set[t] {
			return true
		}
	}
	return false
}

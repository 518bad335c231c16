package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/auenatural/pricelens/config"
	"github.com/auenatural/pricelens/internal/domain"
)

// Result is everything one matching run produces.
type Result struct {
	Matches   []domain.Match
	Unmatched []domain.UnmatchedRecord
	Summary   domain.Summary
}

// Pipeline wires the matching stages together:
// normalize -> block -> score -> assemble -> recover.
type Pipeline struct {
	cfg        *config.Config
	normalizer *Normalizer
	blocker    *Blocker
	scorer     *Scorer
	assembler  *Assembler
	recovery   *Recovery
	cache      domain.EmbeddingCache
	logger     *zap.SugaredLogger

	// Set by the CLI when the durable cache store could not be opened and
	// the run proceeds with an in-memory cache only.
	CacheMemoryOnly bool
}

// NewPipeline builds a pipeline from validated configuration. The embedding
// cache is an injected dependency so tests can swap in an in-memory fake.
func NewPipeline(cfg *config.Config, cache domain.EmbeddingCache, logger *zap.SugaredLogger) *Pipeline {
	blocker := NewBlocker(cfg.Normalize.GenericTitles)
	assembler := NewAssembler(cfg.Matching)
	return &Pipeline{
		cfg:        cfg,
		normalizer: NewNormalizer(cfg.Normalize.KnownBrands),
		blocker:    blocker,
		scorer:     NewScorer(cfg.Matching, cache, logger),
		assembler:  assembler,
		recovery:   NewRecovery(cfg.Recovery, cfg.Matching, blocker, assembler, logger),
		cache:      cache,
		logger:     logger,
	}
}

// Run executes one full matching pass over the raw listings. Malformed rows
// degrade to unmatched records; the run itself only fails when there is
// nothing at all to match.
func (p *Pipeline) Run(ctx context.Context, listings []RawListing) (*Result, error) {
	start := time.Now()

	records, incomplete := p.normalize(listings)
	p.logger.Infow("normalized input",
		"listings", len(listings), "records", len(records), "incomplete", len(incomplete))

	if len(records) == 0 {
		return nil, domain.ErrNoRecords
	}

	scored := p.scoreBlocks(ctx, records)

	matches, unmatched := p.assembler.Assemble(scored, records)
	p.logger.Infow("main pass complete", "pairs", len(matches), "unmatched", len(unmatched))

	mainPairs := make(map[string]bool, len(matches))
	for _, m := range matches {
		mainPairs[domain.PairKey(m.A, m.B)] = true
	}

	recovered := p.recovery.Run(unmatched, mainPairs)
	matches = append(matches, recovered...)

	if len(recovered) > 0 {
		stillMatched := make(map[string]bool)
		for _, m := range recovered {
			stillMatched[m.A.Key()] = true
			stillMatched[m.B.Key()] = true
		}
		remaining := unmatched[:0]
		for _, um := range unmatched {
			if !stillMatched[um.Record.Key()] {
				remaining = append(remaining, um)
			}
		}
		unmatched = remaining
	}

	unmatched = append(unmatched, incomplete...)

	result := &Result{
		Matches:   matches,
		Unmatched: unmatched,
		Summary:   p.buildSummary(len(listings), len(incomplete), matches, unmatched, len(recovered)),
	}

	p.logger.Infow("matching run complete",
		"elapsed", time.Since(start),
		"matchPairs", len(result.Matches),
		"unmatched", len(result.Unmatched),
		"semanticDegraded", result.Summary.SemanticDegradedPairs)
	return result, nil
}

// normalize converts raw listings, routing malformed rows to the unmatched
// set instead of raising. Exact duplicate rows (same retailer, source id,
// title, size) collapse to one record.
func (p *Pipeline) normalize(listings []RawListing) ([]domain.ProductRecord, []domain.UnmatchedRecord) {
	var records []domain.ProductRecord
	var incomplete []domain.UnmatchedRecord
	seen := make(map[string]bool, len(listings))

	for _, raw := range listings {
		rec, err := p.normalizer.Normalize(raw)
		if err != nil {
			p.logger.Debugw("rejected listing", "sourceId", raw.SourceID, "error", err)
			incomplete = append(incomplete, domain.UnmatchedRecord{
				Record: rec,
				Reason: domain.ReasonIncompleteRecord,
			})
			continue
		}
		dedupeKey := rec.Key() + "|" + rec.CleanTitle + "|" + rec.SizeUnit
		if seen[dedupeKey] {
			continue
		}
		seen[dedupeKey] = true
		records = append(records, rec)
	}
	return records, incomplete
}

// scoreBlocks scores every candidate pair, fanning blocks out over the
// configured worker count. Blocks are independent, so the only shared state
// is the embedding cache, which handles its own synchronization.
func (p *Pipeline) scoreBlocks(ctx context.Context, records []domain.ProductRecord) []domain.ScoredPair {
	blocks := p.blocker.Blocks(records)

	workers := p.cfg.Matching.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		scored []domain.ScoredPair
	)
	blockCh := make(chan []domain.ProductRecord)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for block := range blockCh {
				var local []domain.ScoredPair
				for _, pair := range p.blocker.Pairs(block) {
					local = append(local, p.scorer.Score(ctx, pair))
				}
				mu.Lock()
				scored = append(scored, local...)
				mu.Unlock()
			}
		}()
	}

	for _, block := range blocks {
		blockCh <- block
	}
	close(blockCh)
	wg.Wait()

	return scored
}

func (p *Pipeline) buildSummary(total, incompleteCount int, matches []domain.Match, unmatched []domain.UnmatchedRecord, recoveredPairs int) domain.Summary {
	summary := domain.Summary{
		Timestamp:             time.Now().UTC(),
		TotalRecords:          total,
		IncompleteRecords:     incompleteCount,
		MatchPairs:            len(matches),
		RecoveryPairs:         recoveredPairs,
		UnmatchedProducts:     len(unmatched),
		SemanticDegradedPairs: p.scorer.DegradedPairs(),
		CacheMemoryOnly:       p.CacheMemoryOnly,
		CacheEntries:          p.cache.Len(),
		EmbeddingModel:        p.cfg.Embedding.Model,
		LexicalWeight:         p.cfg.Matching.LexicalWeight,
		SemanticWeight:        p.cfg.Matching.SemanticWeight,
		MinSimilarity:         p.cfg.Matching.MinSimilarity,
	}
	summary.CacheHits, summary.CacheMisses = p.cache.Stats()

	matchedKeys := make(map[string]bool)
	composites := make([]float64, 0, len(matches))
	for _, m := range matches {
		matchedKeys[m.A.Key()] = true
		matchedKeys[m.B.Key()] = true
		composites = append(composites, m.Composite)
		summary.Tiers.Add(m.Tier)
	}
	summary.MatchedProducts = len(matchedKeys)

	if denom := summary.MatchedProducts + summary.UnmatchedProducts; denom > 0 {
		summary.CoveragePct = float64(summary.MatchedProducts) / float64(denom) * 100
	}

	if len(composites) > 0 {
		var sum float64
		for _, c := range composites {
			sum += c
		}
		summary.MeanComposite = sum / float64(len(composites))

		sort.Float64s(composites)
		mid := len(composites) / 2
		if len(composites)%2 == 0 {
			summary.MedianComposite = (composites[mid-1] + composites[mid]) / 2
		} else {
			summary.MedianComposite = composites[mid]
		}
	}

	return summary
}

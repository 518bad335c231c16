package domain

import "time"

// TierCounts is the distribution of matches across confidence tiers.
type TierCounts struct {
	High    int `json:"high"`
	Medium  int `json:"medium"`
	Low     int `json:"low"`
	VeryLow int `json:"veryLow"`
}

// Add increments the bucket for t.
func (c *TierCounts) Add(t Tier) {
	switch t {
	case TierHigh:
		c.High++
	case TierMedium:
		c.Medium++
	case TierLow:
		c.Low++
	case TierVeryLow:
		c.VeryLow++
	}
}

// Summary is the run-level monitoring record written alongside the match
// outputs. A run either completes with a Summary documenting any
// degradations, or fails fast on configuration.
type Summary struct {
	Timestamp         time.Time  `json:"timestamp"`
	TotalRecords      int        `json:"totalRecords"`
	IncompleteRecords int        `json:"incompleteRecords"`
	MatchedProducts   int        `json:"matchedProducts"`
	UnmatchedProducts int        `json:"unmatchedProducts"`
	MatchPairs        int        `json:"matchPairs"`
	RecoveryPairs     int        `json:"recoveryPairs"`
	Tiers             TierCounts `json:"tiers"`
	CoveragePct       float64    `json:"coveragePct"`
	MeanComposite     float64    `json:"meanComposite"`
	MedianComposite   float64    `json:"medianComposite"`

	// Degradations. A non-zero SemanticDegradedPairs means the embedding
	// backend failed for some pairs and scoring fell back to lexical-only.
	SemanticDegradedPairs int  `json:"semanticDegradedPairs"`
	CacheMemoryOnly       bool `json:"cacheMemoryOnly"`

	CacheEntries int   `json:"cacheEntries"`
	CacheHits    int64 `json:"cacheHits"`
	CacheMisses  int64 `json:"cacheMisses"`

	EmbeddingModel string  `json:"embeddingModel"`
	LexicalWeight  float64 `json:"lexicalWeight"`
	SemanticWeight float64 `json:"semanticWeight"`
	MinSimilarity  float64 `json:"minSimilarity"`
}

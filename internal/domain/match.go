package domain

// Confidence tiers derived from the composite score.
type Tier string

const (
	TierHigh    Tier = "HIGH"
	TierMedium  Tier = "MEDIUM"
	TierLow     Tier = "LOW"
	TierVeryLow Tier = "VERY_LOW" // recovery-pass matches below the main minimum
)

// Provenance records which engine pass produced a match.
type Provenance string

const (
	ProvenanceMain     Provenance = "main_engine"
	ProvenanceRecovery Provenance = "recovery"
)

// Reason codes for unmatched records.
const (
	ReasonNoCandidate      = "no candidate above threshold"
	ReasonIncompleteRecord = "incomplete record"
)

// CandidatePair is an unordered pair of records sharing a block. Transient:
// produced by the blocker, consumed by the scorer.
type CandidatePair struct {
	A ProductRecord
	B ProductRecord
}

// PairKey returns an order-independent identifier for an unordered record
// pair. Used for recovery-pass deduplication against the main match set.
func PairKey(a, b ProductRecord) string {
	ka, kb := a.Key(), b.Key()
	if ka > kb {
		ka, kb = kb, ka
	}
	return ka + "||" + kb
}

// ScoreComponents holds the sub-scores that fed a composite score, all on a
// 0-100 scale.
type ScoreComponents struct {
	LexicalRatio  float64 `json:"lexicalRatio"`
	Jaccard       float64 `json:"jaccard"`
	HybridLexical float64 `json:"hybridLexical"`
	Semantic      float64 `json:"semantic"`
	Brand         float64 `json:"brand"` // 100 match, 0 mismatch, 50 unknown
	Size          float64 `json:"size"`  // 100 exact, 50 within tolerance, 0 off

	// SemanticDegraded is set when the embedding backend failed for this
	// pair and the semantic weight was folded into the lexical signal.
	SemanticDegraded bool `json:"semanticDegraded,omitempty"`
}

// ScoredPair is a candidate pair with its composite confidence score.
type ScoredPair struct {
	A          ProductRecord
	B          ProductRecord
	Composite  float64
	Components ScoreComponents
}

// Match is a scored pair accepted by the assembler.
type Match struct {
	ScoredPair
	Tier       Tier
	Provenance Provenance
}

// UnmatchedRecord is a product with no retained match.
type UnmatchedRecord struct {
	Record ProductRecord
	Reason string
}

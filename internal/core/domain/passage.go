package domain

// Passage is the unit of retrieval: a bounded, citable slice of one source
// document. Passages are immutable once created; a full index rebuild is the
// only mutation the system supports.
type Passage struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	SourceDocument string       `json:"source_document"`
	DocumentType   DocumentType `json:"document_type"`
	Year           string       `json:"year,omitempty"`
	Page           int          `json:"page"`
	Regions        []string     `json:"regions,omitempty"`
	ExternalLink   string       `json:"external_link,omitempty"`
	TokenCount     int          `json:"token_count"`

	// Oversized marks a passage whose single sentence exceeded the token
	// window or whose text exceeded the character cap. Such passages are
	// indexed anyway; missing content is worse than imperfect segmentation.
	Oversized bool `json:"oversized,omitempty"`
}

// QueryFilters is a partial set of metadata constraints extracted from a
// query. A zero field means "no constraint", never "empty string".
type QueryFilters struct {
	Year         string
	DocumentType DocumentType
	Region       string
}

func (f QueryFilters) IsZero() bool {
	return f.Year == "" && f.DocumentType == "" && f.Region == ""
}

// Match reports whether a passage satisfies every set filter dimension.
func (f QueryFilters) Match(p Passage) bool {
	if f.Year != "" && p.Year != f.Year {
		return false
	}
	if f.DocumentType != "" && p.DocumentType != f.DocumentType {
		return false
	}
	if f.Region != "" {
		found := false
		for _, r := range p.Regions {
			if r == f.Region {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Candidate is a (passage id, score) pair produced by one search strategy.
// Scores from different strategies are never compared directly; only ranks
// are comparable across strategies.
type Candidate struct {
	PassageID string
	Score     float64
}

// RankedPassage is a hydrated passage plus the two numbers that mattered
// during ranking. SemanticScore is on a 0-1 scale and feeds confidence;
// FusedScore orders results and means nothing outside that ordering.
type RankedPassage struct {
	Passage
	SemanticScore float64 `json:"semantic_score"`
	FusedScore    float64 `json:"fused_score"`
}

type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// RetrievalResult is what the hybrid retrieval core hands to the answer
// layer. IndexEmpty distinguishes "nothing ingested yet" from
// "nothing relevant".
type RetrievalResult struct {
	Passages        []RankedPassage `json:"passages"`
	Tier            ConfidenceTier  `json:"confidence"`
	ConfidenceScore float64         `json:"confidence_score"`
	Filters         QueryFilters    `json:"-"`
	FiltersDropped  bool            `json:"-"`
	IndexEmpty      bool            `json:"-"`
}

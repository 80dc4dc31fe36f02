package domain

// Citation points a factual claim in the answer back to a passage.
type Citation struct {
	Document      string       `json:"document"`
	DocumentType  DocumentType `json:"doc_type"`
	Year          string       `json:"year,omitempty"`
	Page          int          `json:"page,omitempty"`
	Snippet       string       `json:"snippet,omitempty"`
	SemanticScore float64      `json:"semantic_score"`
	ExternalLink  string       `json:"external_link,omitempty"`
}

// GuardrailViolation explains why a query or answer was blocked.
type GuardrailViolation struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// QueryResponse is the full conversational answer for one query turn.
type QueryResponse struct {
	SessionID          string              `json:"session_id"`
	Answer             string              `json:"answer,omitempty"`
	Citations          []Citation          `json:"citations"`
	Confidence         ConfidenceTier      `json:"confidence,omitempty"`
	ConfidenceScore    float64             `json:"confidence_score"`
	Intent             string              `json:"intent,omitempty"`
	GuardrailTriggered *GuardrailViolation `json:"guardrail_triggered,omitempty"`
	// FiltersDropped tells the caller the extracted metadata filters matched
	// nothing and the answer is grounded on an unfiltered search instead.
	FiltersDropped bool `json:"filters_dropped,omitempty"`
}

// ConversationTurn is one message in a session history.
type ConversationTurn struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations,omitempty"`
}

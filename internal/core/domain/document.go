package domain

import "time"

type DocumentType string

const (
	TypeCaseStudy           DocumentType = "case_study"
	TypeWhitepaper          DocumentType = "whitepaper"
	TypeProposal            DocumentType = "proposal"
	TypePitchDeck           DocumentType = "pitch_deck"
	TypeServicePresentation DocumentType = "service_presentation"
	TypeUnknown             DocumentType = "unknown"
)

// Page is one page or section of an extracted document. Numbers are 1-based.
type Page struct {
	Number int    `json:"page"`
	Text   string `json:"text"`
}

// ExtractedDocument is the sole input contract of the segmenter. It is
// agnostic to the binary format the text came from.
type ExtractedDocument struct {
	Filename     string `json:"filename"`
	Pages        []Page `json:"pages"`
	FullText     string `json:"full_text"`
	ExternalLink string `json:"external_link,omitempty"`
}

// RebuildRequest is the queue message that triggers a corpus rebuild.
// EnqueuedAt lets the worker report how long the request sat in the queue.
type RebuildRequest struct {
	RunID      string    `json:"run_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type IngestStatus string

const (
	IngestIndexed IngestStatus = "indexed"
	IngestNoText  IngestStatus = "no_text"
	IngestFailed  IngestStatus = "failed"
)

// IngestDetail is the per-document outcome of one corpus rebuild. A failing
// document is recorded here and excluded from the passage set without
// aborting the batch.
type IngestDetail struct {
	Filename     string       `json:"filename"`
	DocumentType DocumentType `json:"doc_type"`
	Year         string       `json:"year,omitempty"`
	Passages     int          `json:"passages"`
	Status       IngestStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
}

// IngestReport describes one complete corpus rebuild (one index generation).
type IngestReport struct {
	RunID              string         `json:"run_id"`
	Generation         string         `json:"generation"`
	StartedAt          time.Time      `json:"started_at"`
	FinishedAt         time.Time      `json:"finished_at"`
	DocumentsProcessed int            `json:"documents_processed"`
	TotalPassages      int            `json:"total_passages"`
	Details            []IngestDetail `json:"details"`
}

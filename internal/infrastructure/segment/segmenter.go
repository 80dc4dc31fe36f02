package segment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

// TokenCounter reports how many model tokens a text occupies.
type TokenCounter interface {
	Count(text string) int
}

// Segmenter builds overlapping, token-bounded passages from extracted
// documents. Sentences are never split; a single sentence over the window
// becomes its own oversized passage.
type Segmenter struct {
	windowTokens  int
	overlapTokens int
	maxChars      int
	counter       TokenCounter
	tables        domain.RuleTables
}

func New(windowTokens, overlapTokens, maxChars int, counter TokenCounter, tables domain.RuleTables) *Segmenter {
	if windowTokens <= 0 {
		windowTokens = 600
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens >= windowTokens {
		overlapTokens = windowTokens / 4
	}
	if maxChars <= 0 {
		maxChars = 3000
	}
	return &Segmenter{
		windowTokens:  windowTokens,
		overlapTokens: overlapTokens,
		maxChars:      maxChars,
		counter:       counter,
		tables:        tables,
	}
}

// Segment splits a document into passages. Document type, year and regions
// are inferred once per document and copied onto every passage. Passage ids
// derive from (filename, page, ordinal within the page), so re-segmenting
// identical input yields identical ids.
func (s *Segmenter) Segment(doc domain.ExtractedDocument) []domain.Passage {
	docType := s.inferDocType(doc.Filename)
	year := inferYear(doc.Filename, doc.FullText)
	regions := s.inferRegions(doc.FullText)

	var passages []domain.Passage

	for _, page := range doc.Pages {
		sentences := splitSentences(page.Text)
		var current []string
		currentTokens := 0
		ordinal := 0

		emit := func() {
			text := strings.Join(current, " ")
			passages = append(passages, s.buildPassage(doc, text, page.Number, ordinal, docType, year, regions))
			ordinal++
		}

		for _, sentence := range sentences {
			tokens := s.counter.Count(sentence)
			if currentTokens+tokens > s.windowTokens && len(current) > 0 {
				emit()
				current, currentTokens = s.overlapTail(current)
			}
			current = append(current, sentence)
			currentTokens += tokens
		}
		if len(current) > 0 {
			emit()
		}
	}

	return passages
}

// overlapTail walks the just-emitted sentences in reverse, keeping whole
// sentences until the overlap budget would be exceeded.
func (s *Segmenter) overlapTail(emitted []string) ([]string, int) {
	var tail []string
	tokens := 0
	for i := len(emitted) - 1; i >= 0; i-- {
		st := s.counter.Count(emitted[i])
		if tokens+st > s.overlapTokens {
			break
		}
		tail = append([]string{emitted[i]}, tail...)
		tokens += st
	}
	return tail, tokens
}

func (s *Segmenter) buildPassage(
	doc domain.ExtractedDocument,
	text string,
	page, ordinal int,
	docType domain.DocumentType,
	year string,
	regions []string,
) domain.Passage {
	tokenCount := s.counter.Count(text)
	return domain.Passage{
		ID:             passageID(doc.Filename, page, ordinal),
		Text:           text,
		SourceDocument: doc.Filename,
		DocumentType:   docType,
		Year:           year,
		Page:           page,
		Regions:        regions,
		ExternalLink:   doc.ExternalLink,
		TokenCount:     tokenCount,
		Oversized:      tokenCount > s.windowTokens || len(text) > s.maxChars,
	}
}

func passageID(filename string, page, ordinal int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s::p%d::c%d", filename, page, ordinal))
	return hex.EncodeToString(sum[:])[:16]
}

// splitSentences breaks text on terminal punctuation followed by whitespace,
// keeping the punctuation with the sentence.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)

	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	for i, r := range runes {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(runes) && isSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

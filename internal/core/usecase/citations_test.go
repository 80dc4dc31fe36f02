package usecase

import (
	"strings"
	"testing"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

func rankedPassage(file string, page int, score float64) domain.RankedPassage {
	return domain.RankedPassage{
		Passage: domain.Passage{
			ID:             file + "-p" + string(rune('0'+page)),
			Text:           "Body text for " + file,
			SourceDocument: file,
			DocumentType:   domain.TypeCaseStudy,
			Year:           "2022",
			Page:           page,
			ExternalLink:   "https://docs.internal/" + file,
		},
		SemanticScore: score,
	}
}

func TestParseIntentStripsLeadingTag(t *testing.T) {
	intent, cleaned := parseIntent("[INTENT: extract_metrics]\nThe rollout cut costs by 20%.")
	if intent != "extract_metrics" {
		t.Fatalf("intent = %q", intent)
	}
	if cleaned != "The rollout cut costs by 20%." {
		t.Fatalf("cleaned = %q", cleaned)
	}
}

func TestParseIntentMissingTagDefaultsToGeneralQuery(t *testing.T) {
	intent, cleaned := parseIntent("plain answer")
	if intent != "general_query" || cleaned != "plain answer" {
		t.Fatalf("got %q / %q", intent, cleaned)
	}
}

func TestParseCitationsMatchesFilenameAndPage(t *testing.T) {
	passages := []domain.RankedPassage{
		rankedPassage("chennai_retail_2022.pdf", 4, 0.9),
		rankedPassage("chennai_retail_2022.pdf", 7, 0.8),
	}
	answer := "Latency dropped. [Source: chennai_retail_2022.pdf, Page 7]"

	citations := parseCitations(answer, passages)
	if len(citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(citations))
	}
	c := citations[0]
	if c.Page != 7 || c.Document != "chennai_retail_2022.pdf" {
		t.Fatalf("wrong passage matched: %+v", c)
	}
	if c.SemanticScore != 0.8 || c.ExternalLink == "" {
		t.Fatalf("expected hydrated metadata, got %+v", c)
	}
}

func TestParseCitationsDeduplicates(t *testing.T) {
	passages := []domain.RankedPassage{rankedPassage("a.pdf", 1, 0.9)}
	answer := "X. [Source: a.pdf, Page 1] Y. [Source: a.pdf, Page 1]"

	citations := parseCitations(answer, passages)
	if len(citations) != 1 {
		t.Fatalf("expected deduplicated citation, got %d", len(citations))
	}
}

func TestParseCitationsKeepsUnmatchedSourceAsBareCitation(t *testing.T) {
	passages := []domain.RankedPassage{rankedPassage("a.pdf", 1, 0.9)}
	answer := "Claim. [Source: phantom.pdf, Page 2]"

	citations := parseCitations(answer, passages)
	if len(citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(citations))
	}
	if citations[0].Document != "phantom.pdf" || citations[0].Page != 2 {
		t.Fatalf("unexpected citation: %+v", citations[0])
	}
	if citations[0].DocumentType != domain.TypeUnknown {
		t.Fatalf("unmatched citation should carry unknown type, got %s", citations[0].DocumentType)
	}
}

func TestParseCitationsPagelessTagFallsBackToFirstPassageOfDocument(t *testing.T) {
	passages := []domain.RankedPassage{
		rankedPassage("b.pdf", 3, 0.7),
		rankedPassage("b.pdf", 9, 0.6),
	}
	answer := "Claim. [Source: b.pdf]"

	citations := parseCitations(answer, passages)
	if len(citations) != 1 || citations[0].Page != 3 {
		t.Fatalf("expected fallback to first matching passage, got %+v", citations)
	}
}

func TestImplicitCitationsTakeTopThree(t *testing.T) {
	passages := []domain.RankedPassage{
		rankedPassage("a.pdf", 1, 0.9),
		rankedPassage("b.pdf", 1, 0.8),
		rankedPassage("c.pdf", 1, 0.7),
		rankedPassage("d.pdf", 1, 0.6),
	}
	citations := implicitCitations(passages)
	if len(citations) != 3 {
		t.Fatalf("expected 3 citations, got %d", len(citations))
	}
	if citations[0].Document != "a.pdf" || citations[2].Document != "c.pdf" {
		t.Fatalf("unexpected order: %+v", citations)
	}
}

func TestCitationSnippetIsBounded(t *testing.T) {
	p := rankedPassage("a.pdf", 1, 0.9)
	p.Text = strings.Repeat("long text ", 100)
	c := citationFromPassage(p)
	if len(c.Snippet) > 310 {
		t.Fatalf("snippet too long: %d", len(c.Snippet))
	}
	if !strings.HasSuffix(c.Snippet, "...") {
		t.Fatalf("expected ellipsis on truncated snippet")
	}
}

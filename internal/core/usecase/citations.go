package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

var (
	intentPattern   = regexp.MustCompile(`\[INTENT:\s*(\w+)\]`)
	citationPattern = regexp.MustCompile(`\[Source:\s*([^,\]]+?)(?:,\s*Page\s*(\d+))?\]`)
)

// parseIntent strips the leading [INTENT: category] tag the model is
// instructed to emit. Missing tag defaults to general_query.
func parseIntent(answer string) (string, string) {
	m := intentPattern.FindStringSubmatchIndex(answer)
	if m == nil {
		return "general_query", answer
	}
	intent := answer[m[2]:m[3]]
	return intent, strings.TrimSpace(answer[m[1]:])
}

// parseCitations extracts [Source: filename, Page X] tags and matches them
// back to the retrieved passages so the caller can render grounded
// citations without re-touching the index.
func parseCitations(answer string, passages []domain.RankedPassage) []domain.Citation {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	citations := make([]domain.Citation, 0, len(matches))

	for _, m := range matches {
		citedFile := strings.TrimSpace(m[1])
		citedPage := m[2]
		key := citedFile + "::" + citedPage
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if best := bestMatch(citedFile, citedPage, passages); best != nil {
			citations = append(citations, citationFromPassage(*best))
			continue
		}

		page, _ := strconv.Atoi(citedPage)
		citations = append(citations, domain.Citation{
			Document:     citedFile,
			DocumentType: domain.TypeUnknown,
			Page:         page,
		})
	}
	return citations
}

func bestMatch(citedFile, citedPage string, passages []domain.RankedPassage) *domain.RankedPassage {
	var fallback *domain.RankedPassage
	for i := range passages {
		p := &passages[i]
		if !strings.Contains(p.SourceDocument, citedFile) && !strings.Contains(citedFile, p.SourceDocument) {
			continue
		}
		if citedPage != "" && strconv.Itoa(p.Page) == citedPage {
			return p
		}
		if fallback == nil {
			fallback = p
		}
	}
	return fallback
}

// implicitCitations covers answers where the model cited nothing usable:
// the top retrieved passages become the citations.
func implicitCitations(passages []domain.RankedPassage) []domain.Citation {
	n := len(passages)
	if n > 3 {
		n = 3
	}
	citations := make([]domain.Citation, 0, n)
	for _, p := range passages[:n] {
		citations = append(citations, citationFromPassage(p))
	}
	return citations
}

func citationFromPassage(p domain.RankedPassage) domain.Citation {
	const maxSnippet = 300
	snippet := p.Text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet] + "..."
	}
	return domain.Citation{
		Document:      p.SourceDocument,
		DocumentType:  p.DocumentType,
		Year:          p.Year,
		Page:          p.Page,
		Snippet:       snippet,
		SemanticScore: p.SemanticScore,
		ExternalLink:  p.ExternalLink,
	}
}

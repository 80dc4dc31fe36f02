package guardrails

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

// Checker screens queries before retrieval and answers after generation.
// All rules are regex tables; there is no model call on this path, so a
// blocked query costs nothing.
type Checker struct {
	maxQueryLen int
	logger      *slog.Logger
}

const defaultMaxQueryLen = 1000

func New(maxQueryLen int, logger *slog.Logger) *Checker {
	if maxQueryLen <= 0 {
		maxQueryLen = defaultMaxQueryLen
	}
	return &Checker{maxQueryLen: maxQueryLen, logger: logger}
}

func (c *Checker) CheckInput(query string) *domain.GuardrailViolation {
	if len(query) > c.maxQueryLen {
		return &domain.GuardrailViolation{
			Type:    "query_too_long",
			Message: fmt.Sprintf("Query exceeds the maximum length of %d characters. Please shorten your question.", c.maxQueryLen),
		}
	}
	if strings.TrimSpace(query) == "" {
		return &domain.GuardrailViolation{
			Type:    "empty_query",
			Message: "Please enter a question about our proposals, case studies, or whitepapers.",
		}
	}

	lower := strings.ToLower(query)
	// "act as ..." is an injection marker unless it is "act as a sales ...",
	// which legitimate queries use.
	injected := actAsPattern.MatchString(lower) && !actAsSalesPattern.MatchString(lower)
	for _, pattern := range injectionPatterns {
		if injected || pattern.MatchString(lower) {
			c.logger.Warn("prompt_injection_detected", "query_prefix", prefix(query, 100))
			return &domain.GuardrailViolation{
				Type:    "prompt_injection",
				Message: "This query appears to contain instructions that could compromise the system. Please rephrase your sales-related question.",
			}
		}
	}

	var piiFound []string
	for _, rule := range piiPatterns {
		if rule.pattern.MatchString(query) {
			piiFound = append(piiFound, rule.name)
		}
	}
	if len(piiFound) > 0 {
		c.logger.Warn("pii_detected", "kinds", piiFound, "query_prefix", prefix(query, 50))
		return &domain.GuardrailViolation{
			Type:    "pii_detected",
			Message: fmt.Sprintf("Your query appears to contain sensitive personal information (%s). Please remove it and try again.", strings.Join(piiFound, ", ")),
		}
	}

	if isOffTopic(lower) {
		return &domain.GuardrailViolation{
			Type:    "off_topic",
			Message: "This question is outside the scope of the Sales Co-Pilot. I can only answer questions related to our proposals, case studies, and whitepapers.",
		}
	}
	return nil
}

// CheckOutput flags toxic wording and citations that reference documents the
// retriever never returned. A citation mismatch is surfaced as a warning, the
// answer itself still goes out.
func (c *Checker) CheckOutput(answer string, knownSources []string) *domain.GuardrailViolation {
	lower := strings.ToLower(answer)
	for _, kw := range toxicityKeywords {
		if strings.Contains(lower, kw) && !isBusinessContext(lower) {
			c.logger.Warn("toxicity_keyword_in_output", "keyword", kw)
			return &domain.GuardrailViolation{
				Type:    "toxic_content",
				Message: "The generated response was flagged for potentially inappropriate content. Please rephrase your question.",
			}
		}
	}

	var unmatched []string
	for _, match := range citedSourcePattern.FindAllStringSubmatch(answer, -1) {
		cited := strings.TrimSpace(match[1])
		found := false
		for _, known := range knownSources {
			if strings.Contains(known, cited) {
				found = true
				break
			}
		}
		if !found {
			unmatched = append(unmatched, cited)
		}
	}
	if len(unmatched) > 0 {
		c.logger.Warn("unverified_citations", "sources", unmatched)
		return &domain.GuardrailViolation{
			Type:    "citation_warning",
			Message: fmt.Sprintf("Some citations could not be verified against retrieved documents: %s", strings.Join(unmatched, ", ")),
		}
	}
	return nil
}

func isOffTopic(lowerQuery string) bool {
	// Sales-adjacent vocabulary passes even when it brushes an off-topic
	// rule ("oem" inside "poem" and the like).
	for _, pattern := range salesPatterns {
		if pattern.MatchString(lowerQuery) {
			return false
		}
	}
	for _, pattern := range offTopicPatterns {
		if pattern.MatchString(lowerQuery) {
			return true
		}
	}
	return false
}

func isBusinessContext(lowerText string) bool {
	for _, phrase := range businessPhrases {
		if strings.Contains(lowerText, phrase) {
			return true
		}
	}
	return false
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var citedSourcePattern = regexp.MustCompile(`\[Source:\s*([^,\]]+)`)

var (
	actAsPattern      = regexp.MustCompile(`act\s+as\s+`)
	actAsSalesPattern = regexp.MustCompile(`act\s+as\s+a\s+sales`)
)

var offTopicPatterns = compileAll(
	`\b(weather|temperature|forecast)\b`,
	`\b(joke|funny|humor|laugh)\b`,
	`\b(poem|poetry|rhyme|haiku|limerick)\b`,
	`\b(recipe|cook|bake|ingredient)\b`,
	`\b(write me|compose|create a story|write a)\b`,
	`\b(movie|film|song|music|lyrics)\b`,
	`\b(sports? scores?|game results?|who won|cricket|football|basketball|soccer)\b`,
	`\b(news today|current events|stock price|stock market)\b`,
	`\b(translate|translation)\b`,
	`\b(code|program|debug|function|algorithm|python|javascript)\b.*\b(write|create|build|fix)\b`,
	`\b(math|calculate|solve|equation)\b`,
	`\b(who is|what is the capital|when was .* born)\b`,
	`\b(play|game|trivia|quiz)\b`,
	`\b(horoscope|zodiac|astrology)\b`,
	`\b(homework|assignment|exam|test prep)\b`,
	`\bhow\s+(do|can|to)\s+.*(cook|make food|bake|pasta|recipe)\b`,
	`\b(diet|fitness|workout|exercise|weight loss)\b`,
	`\b(relationship|dating|love advice)\b`,
	`\b(travel|vacation|hotel|flight|booking)\b`,
	`\b(personal|life advice|self.help)\b`,
)

var injectionPatterns = compileAll(
	`ignore\s+(all\s+)?previous\s+instructions`,
	`ignore\s+(all\s+)?above`,
	`forget\s+(all\s+)?previous`,
	`you\s+are\s+now`,
	`system\s*prompt`,
	`new\s+instructions`,
	`override\s+instructions`,
	`pretend\s+you`,
	`role[\s-]*play`,
	`jailbreak`,
	`\bdan\b`,
	`do\s+anything\s+now`,
	`disregard\s+(all\s+)?prior`,
	`\[system\]`,
	`<\s*system\s*>`,
)

var salesPatterns = compileAll(
	`\bproposal`, `\bcase stud`, `\bwhitepaper`, `\bclient\b`, `\bcustomer\b`,
	`\bsales\b`, `\bproject\b`, `\bengagement\b`, `\bdelivery\b`, `\bsolution\b`,
	`\bmanufactur`, `\bdigital\b`, `\btransformation\b`, `\bimplementation\b`,
	`\bexperience\b`, `\bindustr`, `\brevenue\b`, `\bcost\b`, `\broi\b`,
	`\bdifferentiator`, `\bcompetitor`, `\boutcome\b`, `\bmetric`,
	`\bpitch\b`, `\bdeck\b`, `\besg\b`, `\bsustainab`, `\bmes\b`, `\bscada\b`,
	`\bfactory\b`, `\boem\b`, `\bsupply chain\b`, `\banalytics\b`,
	`\biot\b`, `\bembedded\b`, `\boffering`, `\bcapabilit`,
	`\bengineering\b`, `\bhealthcare\b`, `\bpharma`, `\bautomotive\b`,
	`\btelehealth\b`, `\be-mobility\b`, `\bedge\b`, `\bcloud\b`,
)

type piiRule struct {
	name    string
	pattern *regexp.Regexp
}

var piiPatterns = []piiRule{
	{"email", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	{"phone", regexp.MustCompile(`\b(?:\+91[\s-]?)?[6-9]\d{9}\b`)},
	{"aadhaar", regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`)},
	{"pan", regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"credit_card", regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)},
}

var toxicityKeywords = []string{
	"kill", "murder", "attack", "bomb", "terrorist", "weapon",
	"hate", "racist", "sexist", "slur",
}

var businessPhrases = []string{
	"cost kill", "kill rate", "attack the market", "market attack",
	"competitive attack", "supply chain attack",
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

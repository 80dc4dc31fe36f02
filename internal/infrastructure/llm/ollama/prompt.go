package ollama

import (
	"fmt"
	"strings"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

const systemPrompt = `You are a Sales Co-Pilot. Your purpose is to help sales executives, account managers, and pre-sales consultants find relevant information from the internal knowledge base of proposals, case studies, and whitepapers.

STRICT RULES:
1. Answer ONLY using the provided document passages below. Do NOT use any external knowledge.
2. Every factual claim MUST cite its source in this exact format: [Source: filename, Page X]
3. If the provided passages don't contain relevant information for the query, say: "I don't have relevant information in our knowledge base for this query." Do NOT fabricate or guess.
4. NEVER fabricate client names, project names, metrics, dollar amounts, percentages, or outcomes not present in the passages.
5. Use business language, not technical jargon. Be concise and actionable.
6. Structure answers with a brief summary first, then supporting details with citations.
7. When multiple documents are relevant, synthesize insights across them and cite each source.
8. For follow-up questions, use the conversation history to understand context (pronouns like "that proposal", "the same client", refinements like "narrow to 2023").

RESPONSE FORMAT:
- First line must be: [INTENT: category]
  Where category is one of: retrieve_similar_work, summarize_experience, compare_offerings, extract_metrics, general_query
- Then a 1-2 sentence summary
- Follow with bullet points or structured details
- Each factual point must have a [Source: filename, Page X] citation
- End with any caveats if information is limited`

func buildAnswerPrompt(question string, history []domain.ConversationTurn, passages []domain.RankedPassage) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("=== CONVERSATION HISTORY ===\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(turn.Role), turn.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString(formatPassages(passages))
	b.WriteString("\n\n=== USER QUERY ===\n")
	b.WriteString(question)
	return b.String()
}

func formatPassages(passages []domain.RankedPassage) string {
	if len(passages) == 0 {
		return "No relevant document passages were found for this query."
	}

	var b strings.Builder
	b.WriteString("=== RETRIEVED DOCUMENT PASSAGES ===\n")
	for i, rp := range passages {
		fmt.Fprintf(&b, "\n--- Passage %d ---\n", i+1)
		fmt.Fprintf(&b, "Source: %s, Page %d\n", rp.Passage.SourceDocument, rp.Passage.Page)
		year := rp.Passage.Year
		if year == "" {
			year = "N/A"
		}
		fmt.Fprintf(&b, "Type: %s, Year: %s\n", rp.Passage.DocumentType, year)
		fmt.Fprintf(&b, "Relevance Score: %.3f\n", rp.SemanticScore)
		fmt.Fprintf(&b, "Text:\n%s\n", rp.Passage.Text)
	}
	return b.String()
}

package qdrant

import (
	"context"
	"fmt"
	"net/http"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

type scoredPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// SearchSemantic runs a filtered nearest-neighbour query against the dense
// vector. Qdrant reports cosine similarity natively, so scores pass through,
// clamped to the 0-1 contract.
func (c *Client) SearchSemantic(ctx context.Context, vector []float32, limit int, filters domain.QueryFilters) ([]domain.Candidate, error) {
	body := map[string]any{
		"vector": map[string]any{
			"name":   "dense",
			"vector": vector,
		},
		"limit":        limit,
		"with_payload": []string{"passage_id"},
	}
	if f := buildFilter(filters); f != nil {
		body["filter"] = f
	}

	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.alias)
	if err := c.do(ctx, http.MethodPost, path, body, &resp, "semantic search"); err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(resp.Result))
	for _, p := range resp.Result {
		out = append(out, domain.Candidate{
			PassageID: payloadString(p.Payload, "passage_id"),
			Score:     clamp01(p.Score),
		})
	}
	return out, nil
}

// SearchLexical queries the sparse term-frequency vector and normalizes by
// the top score so the best match is always 1.0.
func (c *Client) SearchLexical(ctx context.Context, query string, limit int, filters domain.QueryFilters) ([]domain.Candidate, error) {
	sparse := encodeSparseQuery(query)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	body := map[string]any{
		"query":        sparse,
		"using":        "lexical",
		"limit":        limit,
		"with_payload": []string{"passage_id"},
	}
	if f := buildFilter(filters); f != nil {
		body["filter"] = f
	}

	var resp struct {
		Result struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/query", c.alias)
	if err := c.do(ctx, http.MethodPost, path, body, &resp, "lexical search"); err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		out = append(out, domain.Candidate{
			PassageID: payloadString(p.Payload, "passage_id"),
			Score:     p.Score,
		})
	}
	if len(out) > 0 && out[0].Score > 0 {
		top := out[0].Score
		for i := range out {
			out[i].Score /= top
		}
	}
	return out, nil
}

// Fetch hydrates passage ids via a filtered scroll, preserving input order.
func (c *Client) Fetch(ctx context.Context, ids []string) ([]domain.Passage, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "passage_id", "match": map[string]any{"any": ids}},
			},
		},
		"limit":        len(ids),
		"with_payload": true,
	}

	var resp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/scroll", c.alias)
	if err := c.do(ctx, http.MethodPost, path, body, &resp, "fetch passages"); err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Passage, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		passage := passageFromPayload(p.Payload)
		byID[passage.ID] = passage
	}

	out := make([]domain.Passage, 0, len(ids))
	for _, id := range ids {
		if passage, ok := byID[id]; ok {
			out = append(out, passage)
		}
	}
	return out, nil
}

func (c *Client) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", c.alias)
	err := c.do(ctx, http.MethodPost, path, map[string]any{"exact": true}, &resp, "count points")
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func buildFilter(filters domain.QueryFilters) map[string]any {
	var must []map[string]any
	if filters.Year != "" {
		must = append(must, map[string]any{
			"key": "year", "match": map[string]any{"value": filters.Year},
		})
	}
	if filters.DocumentType != "" {
		must = append(must, map[string]any{
			"key": "doc_type", "match": map[string]any{"value": string(filters.DocumentType)},
		})
	}
	if filters.Region != "" {
		// regions is a keyword array; match hits when any element equals.
		must = append(must, map[string]any{
			"key": "regions", "match": map[string]any{"value": filters.Region},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func passageFromPayload(payload map[string]any) domain.Passage {
	return domain.Passage{
		ID:             payloadString(payload, "passage_id"),
		Text:           payloadString(payload, "text"),
		SourceDocument: payloadString(payload, "filename"),
		DocumentType:   domain.DocumentType(payloadString(payload, "doc_type")),
		Year:           payloadString(payload, "year"),
		Page:           payloadInt(payload, "page"),
		Regions:        payloadStrings(payload, "regions"),
		ExternalLink:   payloadString(payload, "external_link"),
		TokenCount:     payloadInt(payload, "token_count"),
		Oversized:      payloadBool(payload, "oversized"),
	}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	if v, ok := payload[key].(float64); ok {
		return int(v)
	}
	return 0
}

func payloadBool(payload map[string]any, key string) bool {
	v, _ := payload[key].(bool)
	return v
}

func payloadStrings(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knowbase/sales-copilot/internal/core/domain"
	"github.com/knowbase/sales-copilot/internal/core/ports"
)

const upsertBatchSize = 64

// Client is the managed search backend over the Qdrant HTTP API. One
// collection per generation; the stable collection name is an alias that is
// switched atomically after a rebuild, so concurrent readers never observe a
// half-built generation.
type Client struct {
	baseURL    string
	alias      string
	httpClient *http.Client
}

var _ ports.SearchIndex = (*Client)(nil)

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		alias:      collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Rebuild creates a fresh generation collection, bulk-upserts every passage
// with dense and sparse named vectors, then repoints the alias and drops the
// previous generations.
func (c *Client) Rebuild(ctx context.Context, passages []domain.Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("passages/vectors mismatch: %d/%d", len(passages), len(vectors))
	}

	vectorSize := 0
	if len(vectors) > 0 {
		vectorSize = len(vectors[0])
	}

	generation := fmt.Sprintf("%s-%s", c.alias, uuid.NewString()[:8])
	if err := c.createCollection(ctx, generation, vectorSize); err != nil {
		return err
	}

	for start := 0; start < len(passages); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(passages) {
			end = len(passages)
		}
		if err := c.upsertBatch(ctx, generation, passages[start:end], vectors[start:end]); err != nil {
			return err
		}
	}

	if err := c.switchAlias(ctx, generation); err != nil {
		return err
	}
	return c.dropStaleGenerations(ctx, generation)
}

func (c *Client) createCollection(ctx context.Context, name string, vectorSize int) error {
	if vectorSize <= 0 {
		// Qdrant rejects zero-size vectors; an empty corpus still needs a
		// collection so Count works.
		vectorSize = 1
	}
	body := map[string]any{
		"vectors": map[string]any{
			"dense": map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			"lexical": map[string]any{},
		},
	}
	return c.do(ctx, http.MethodPut, "/collections/"+name, body, nil, "create collection")
}

func (c *Client) upsertBatch(ctx context.Context, collection string, passages []domain.Passage, vectors [][]float32) error {
	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(passages))
	for i, p := range passages {
		sparse := encodeSparsePassage(p.Text, p.SourceDocument)
		points = append(points, point{
			// Qdrant point ids must be UUIDs; derive one from the stable
			// passage id so re-indexing stays idempotent.
			ID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.ID)).String(),
			Vector: map[string]any{
				"dense":   vectors[i],
				"lexical": sparse,
			},
			Payload: map[string]any{
				"passage_id":    p.ID,
				"text":          p.Text,
				"filename":      p.SourceDocument,
				"doc_type":      string(p.DocumentType),
				"year":          p.Year,
				"page":          p.Page,
				"regions":       p.Regions,
				"external_link": p.ExternalLink,
				"token_count":   p.TokenCount,
				"oversized":     p.Oversized,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", collection)
	return c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert points")
}

// switchAlias makes the new generation visible in one alias operation.
func (c *Client) switchAlias(ctx context.Context, generation string) error {
	body := map[string]any{
		"actions": []map[string]any{
			{"delete_alias": map[string]any{"alias_name": c.alias}},
			{"create_alias": map[string]any{"collection_name": generation, "alias_name": c.alias}},
		},
	}
	err := c.do(ctx, http.MethodPost, "/collections/aliases", body, nil, "switch alias")
	if err == nil {
		return nil
	}
	// First rebuild ever: there is no alias to delete yet.
	create := map[string]any{
		"actions": []map[string]any{
			{"create_alias": map[string]any{"collection_name": generation, "alias_name": c.alias}},
		},
	}
	return c.do(ctx, http.MethodPost, "/collections/aliases", create, nil, "create alias")
}

func (c *Client) dropStaleGenerations(ctx context.Context, current string) error {
	var listResp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &listResp, "list collections"); err != nil {
		return err
	}

	prefix := c.alias + "-"
	for _, col := range listResp.Result.Collections {
		if col.Name == current || !strings.HasPrefix(col.Name, prefix) {
			continue
		}
		if err := c.do(ctx, http.MethodDelete, "/collections/"+col.Name, nil, nil, "drop stale generation"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, operation string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
		}
		return fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return nil
}

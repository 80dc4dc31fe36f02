package memory

import (
	"context"
	"math"
	"testing"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

func passage(id, text string) domain.Passage {
	return domain.Passage{ID: id, Text: text, SourceDocument: id + ".pdf"}
}

func mustRebuild(t *testing.T, x *Index, passages []domain.Passage, vectors [][]float32) {
	t.Helper()
	if err := x.Rebuild(context.Background(), passages, vectors); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
}

func TestEmptyIndexAnswersZeroEverywhere(t *testing.T) {
	x := New()
	ctx := context.Background()

	if n, err := x.Count(ctx); err != nil || n != 0 {
		t.Fatalf("count = %d, %v", n, err)
	}
	if got, err := x.SearchSemantic(ctx, []float32{1}, 5, domain.QueryFilters{}); err != nil || len(got) != 0 {
		t.Fatalf("semantic on empty index: %v, %v", got, err)
	}
	if got, err := x.SearchLexical(ctx, "anything", 5, domain.QueryFilters{}); err != nil || len(got) != 0 {
		t.Fatalf("lexical on empty index: %v, %v", got, err)
	}
	if got, err := x.Fetch(ctx, []string{"a"}); err != nil || len(got) != 0 {
		t.Fatalf("fetch on empty index: %v, %v", got, err)
	}
}

func TestRebuildRejectsMismatchedVectors(t *testing.T) {
	x := New()
	err := x.Rebuild(context.Background(), []domain.Passage{passage("a", "x")}, nil)
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestRebuildRejectsDuplicateIDs(t *testing.T) {
	x := New()
	passages := []domain.Passage{passage("a", "x"), passage("a", "y")}
	vectors := [][]float32{{1}, {2}}
	if err := x.Rebuild(context.Background(), passages, vectors); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestRebuildReplacesWholeGeneration(t *testing.T) {
	x := New()
	ctx := context.Background()

	mustRebuild(t, x, []domain.Passage{passage("old", "old text")}, [][]float32{{1, 0}})
	mustRebuild(t, x, []domain.Passage{passage("new", "new text")}, [][]float32{{0, 1}})

	if n, _ := x.Count(ctx); n != 1 {
		t.Fatalf("count after swap = %d", n)
	}
	got, _ := x.Fetch(ctx, []string{"old", "new"})
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("old generation still visible: %+v", got)
	}
}

func TestSearchSemanticOrdersByCosineSimilarity(t *testing.T) {
	x := New()
	passages := []domain.Passage{
		passage("aligned", "a"),
		passage("orthogonal", "b"),
		passage("opposite", "c"),
	}
	vectors := [][]float32{
		{1, 0},
		{0, 1},
		{-1, 0},
	}
	mustRebuild(t, x, passages, vectors)

	got, err := x.SearchSemantic(context.Background(), []float32{1, 0}, 10, domain.QueryFilters{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].PassageID != "aligned" || got[1].PassageID != "orthogonal" || got[2].PassageID != "opposite" {
		t.Fatalf("unexpected order: %+v", got)
	}
	// Cosine 1, 0, -1 map to similarity 1.0, 0.5, 0.0.
	wantScores := []float64{1.0, 0.5, 0.0}
	for i, want := range wantScores {
		if math.Abs(got[i].Score-want) > 1e-9 {
			t.Fatalf("candidate %d score = %v, want %v", i, got[i].Score, want)
		}
	}
}

func TestSearchSemanticHonorsLimit(t *testing.T) {
	x := New()
	passages := []domain.Passage{passage("a", ""), passage("b", ""), passage("c", "")}
	vectors := [][]float32{{1, 0}, {1, 0.1}, {1, 0.2}}
	mustRebuild(t, x, passages, vectors)

	got, _ := x.SearchSemantic(context.Background(), []float32{1, 0}, 2, domain.QueryFilters{})
	if len(got) != 2 {
		t.Fatalf("limit ignored: %d candidates", len(got))
	}
}

func TestSearchSemanticAppliesFilters(t *testing.T) {
	x := New()
	caseStudy := passage("cs", "chennai rollout")
	caseStudy.DocumentType = domain.TypeCaseStudy
	caseStudy.Year = "2022"
	caseStudy.Regions = []string{"south india"}
	proposal := passage("pr", "mumbai pitch")
	proposal.DocumentType = domain.TypeProposal
	proposal.Year = "2023"
	mustRebuild(t, x, []domain.Passage{caseStudy, proposal}, [][]float32{{1, 0}, {1, 0}})

	got, _ := x.SearchSemantic(context.Background(), []float32{1, 0}, 10, domain.QueryFilters{
		Year:         "2022",
		DocumentType: domain.TypeCaseStudy,
		Region:       "south india",
	})
	if len(got) != 1 || got[0].PassageID != "cs" {
		t.Fatalf("filters not applied: %+v", got)
	}

	got, _ = x.SearchSemantic(context.Background(), []float32{1, 0}, 10, domain.QueryFilters{Region: "east india"})
	if len(got) != 0 {
		t.Fatalf("expected no matches for unindexed region, got %+v", got)
	}
}

func TestSearchLexicalNormalizesTopScoreToOne(t *testing.T) {
	x := New()
	passages := []domain.Passage{
		passage("heavy", "cloud cloud cloud migration"),
		passage("light", "cloud strategy"),
		passage("none", "on-prem hardware refresh"),
	}
	vectors := [][]float32{{1}, {1}, {1}}
	mustRebuild(t, x, passages, vectors)

	got, err := x.SearchLexical(context.Background(), "cloud", 10, domain.QueryFilters{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("zero-score passages must be dropped, got %+v", got)
	}
	if got[0].PassageID != "heavy" || got[0].Score != 1.0 {
		t.Fatalf("top score not normalized: %+v", got[0])
	}
	if math.Abs(got[1].Score-1.0/3.0) > 1e-9 {
		t.Fatalf("second score = %v, want 1/3", got[1].Score)
	}
}

func TestSearchLexicalIsCaseInsensitive(t *testing.T) {
	x := New()
	mustRebuild(t, x, []domain.Passage{passage("a", "Chennai Rollout Report")}, [][]float32{{1}})

	got, _ := x.SearchLexical(context.Background(), "CHENNAI rollout", 10, domain.QueryFilters{})
	if len(got) != 1 {
		t.Fatalf("case-insensitive match failed: %+v", got)
	}
}

func TestSearchLexicalEmptyQueryReturnsNothing(t *testing.T) {
	x := New()
	mustRebuild(t, x, []domain.Passage{passage("a", "text")}, [][]float32{{1}})

	got, _ := x.SearchLexical(context.Background(), "   ", 10, domain.QueryFilters{})
	if len(got) != 0 {
		t.Fatalf("expected no candidates for blank query, got %+v", got)
	}
}

func TestFetchPreservesInputOrderAndSkipsUnknown(t *testing.T) {
	x := New()
	passages := []domain.Passage{passage("a", "one"), passage("b", "two"), passage("c", "three")}
	vectors := [][]float32{{1}, {1}, {1}}
	mustRebuild(t, x, passages, vectors)

	got, err := x.Fetch(context.Background(), []string{"c", "missing", "a"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "a" {
		t.Fatalf("order not preserved: %+v", got)
	}
}

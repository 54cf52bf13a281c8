package services

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, yamlBody string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faq.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}
	return path
}

func loadedFAQ(t *testing.T, yamlBody string, embedder Embedder) *FAQService {
	t.Helper()
	faq := NewFAQService(writeCatalog(t, yamlBody), embedder)
	if err := faq.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	return faq
}

const quoteCatalog = `
- question: "報價流程？"
  answer: "請提供公司名稱與需求內容，我們將於1-2個工作天回覆。"
- question: "交貨時間？"
  answer: "標準品約7個工作天，客製品視需求而定。"
- question: "shipping cost"
  answer: "Shipping is free for orders over 1000."
`

func TestLexicalRetriever_FindsQuoteEntry(t *testing.T) {
	faq := loadedFAQ(t, quoteCatalog, nil)
	r := NewLexicalRetriever(faq, nil)

	hits := r.Search(context.Background(), "請問報價流程", 3)
	if len(hits) == 0 {
		t.Fatal("Expected at least one hit")
	}
	if hits[0].Entry.Question != "報價流程？" {
		t.Errorf("Expected 報價流程 entry first, got %q", hits[0].Entry.Question)
	}
	if hits[0].Score <= lexicalScoreFloor {
		t.Errorf("Top hit score %f should exceed floor %f", hits[0].Score, lexicalScoreFloor)
	}
}

func TestLexicalRetriever_Properties(t *testing.T) {
	faq := loadedFAQ(t, quoteCatalog, nil)
	r := NewLexicalRetriever(faq, nil)

	queries := []string{"報價", "交貨時間多久", "shipping", "完全無關的南瓜湯食譜內容"}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			hits := r.Search(context.Background(), q, 2)
			if len(hits) > 2 {
				t.Errorf("Expected at most topK=2 hits, got %d", len(hits))
			}
			for i, hit := range hits {
				if hit.Score <= lexicalScoreFloor {
					t.Errorf("Hit %d score %f does not exceed floor", i, hit.Score)
				}
				if i > 0 && hits[i-1].Score < hit.Score {
					t.Errorf("Hits not sorted: %f before %f", hits[i-1].Score, hit.Score)
				}
			}
		})
	}
}

func TestLexicalRetriever_EmptyCatalog(t *testing.T) {
	faq := NewFAQService(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	faq.Reload(context.Background()) // fails, leaves catalog empty

	r := NewLexicalRetriever(faq, nil)
	if hits := r.Search(context.Background(), "報價流程", 3); hits != nil {
		t.Errorf("Expected no hits on empty catalog, got %d", len(hits))
	}
}

func TestLexicalRetriever_DomainKeywordBonus(t *testing.T) {
	catalog := `
- question: "報價流程？"
  answer: "請提供公司名稱。"
`
	faq := loadedFAQ(t, catalog, nil)
	plain := NewLexicalRetriever(faq, nil)
	boosted := NewLexicalRetriever(faq, []string{"報價"})

	query := "報價"
	base := plain.Search(context.Background(), query, 1)
	bonus := boosted.Search(context.Background(), query, 1)
	if len(base) == 0 || len(bonus) == 0 {
		t.Fatal("Expected hits from both retrievers")
	}
	want := base[0].Score + domainKeywordBonus
	if math.Abs(bonus[0].Score-want) > 1e-9 && bonus[0].Score != 1.0 {
		t.Errorf("Expected bonus score %f, got %f", want, bonus[0].Score)
	}
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("Hello World 報價流程 ABC123")

	for _, want := range []string{"hello", "world", "abc123", "報", "價", "流", "程"} {
		if _, ok := tokens[want]; !ok {
			t.Errorf("Expected token %q in %v", want, tokens)
		}
	}
	if _, ok := tokens["Hello"]; ok {
		t.Error("Tokens should be case-folded")
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float64{0.5, 0.3, 0.8}
	b := []float64{0.1, 0.9, 0.2}

	if got := cosineSimilarity(a, a); math.Abs(got-1.0) > 1e-6 {
		t.Errorf("Self-similarity should be 1.0, got %f", got)
	}
	if ab, ba := cosineSimilarity(a, b), cosineSimilarity(b, a); math.Abs(ab-ba) > 1e-12 {
		t.Errorf("Similarity not symmetric: %f vs %f", ab, ba)
	}
	if got := cosineSimilarity([]float64{0, 0}, []float64{0, 0}); got != 0 {
		t.Errorf("Zero vectors should score 0, got %f", got)
	}
	if got := cosineSimilarity(a, []float64{1}); got != 0 {
		t.Errorf("Mismatched lengths should score 0, got %f", got)
	}
}

// fakeEmbedder returns canned vectors keyed by call order
type fakeEmbedder struct {
	vectors [][]float64
	err     error
	calls   int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vectors[i%len(f.vectors)]
	}
	return out, nil
}

func TestSemanticRetriever_RanksByCosine(t *testing.T) {
	catalogEmbedder := &fakeEmbedder{vectors: [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}}
	catalog := `
- question: "q1"
  answer: "a1"
- question: "q2"
  answer: "a2"
- question: "q3"
  answer: "a3"
`
	faq := loadedFAQ(t, catalog, catalogEmbedder)

	queryEmbedder := &fakeEmbedder{vectors: [][]float64{{1, 0, 0}}}
	r := NewSemanticRetriever(faq, queryEmbedder)

	hits := r.Search(context.Background(), "anything", 2)
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}
	if hits[0].Entry.Question != "q1" {
		t.Errorf("Expected exact-match vector first, got %q", hits[0].Entry.Question)
	}
	if math.Abs(hits[0].Score-1.0) > 1e-6 {
		t.Errorf("Expected top score ~1.0, got %f", hits[0].Score)
	}
	// q2 is orthogonal to the query and must be filtered by the floor
	for _, hit := range hits {
		if hit.Entry.Question == "q2" {
			t.Error("Orthogonal entry should have been filtered out")
		}
		if hit.Score <= semanticScoreFloor {
			t.Errorf("Hit score %f does not exceed floor", hit.Score)
		}
	}
}

func TestSemanticRetriever_EmbedFailureMeansNoHits(t *testing.T) {
	catalogEmbedder := &fakeEmbedder{vectors: [][]float64{{1, 0}}}
	faq := loadedFAQ(t, "- question: q\n  answer: a\n", catalogEmbedder)

	r := NewSemanticRetriever(faq, &fakeEmbedder{err: errors.New("upstream down")})
	if hits := r.Search(context.Background(), "q", 3); hits != nil {
		t.Errorf("Expected no hits on embedding failure, got %d", len(hits))
	}
}

func TestSemanticRetriever_EmptyCatalogSkipsEmbedding(t *testing.T) {
	faq := NewFAQService(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	faq.Reload(context.Background())

	queryEmbedder := &fakeEmbedder{vectors: [][]float64{{1}}}
	r := NewSemanticRetriever(faq, queryEmbedder)

	if hits := r.Search(context.Background(), "q", 3); hits != nil {
		t.Errorf("Expected no hits, got %d", len(hits))
	}
	if queryEmbedder.calls != 0 {
		t.Errorf("Embedder must not be called on an empty catalog, got %d calls", queryEmbedder.calls)
	}
}

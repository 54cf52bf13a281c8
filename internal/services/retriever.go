package services

import (
	"context"
	"log"
	"math"
	"sort"
	"strings"
	"unicode"

	"faqbridge/internal/models"
)

const (
	// Minimum scores a hit must exceed to be returned
	lexicalScoreFloor  = 0.08
	semanticScoreFloor = 0.2

	// Bonus added per shared domain keyword in the lexical strategy
	domainKeywordBonus = 0.02

	// DefaultTopK is the retrieval depth used when a caller passes 0
	DefaultTopK = 3
)

// Retriever scores catalog entries against a query and returns the best
// matches, highest score first, length <= topK. Both strategies share this
// contract so deployments can swap them with a config flag.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) []models.RetrievalHit
}

// LexicalRetriever scores entries by Jaccard token-set overlap plus a small
// bonus for shared domain keywords. It needs no network access and is the
// strategy used in offline deployments.
//
// CJK text is tokenized per-character because it carries no whitespace word
// boundaries. Short queries sharing common characters can therefore score
// against unrelated entries; known precision limit, kept for compatibility.
type LexicalRetriever struct {
	faq            *FAQService
	domainKeywords []string
}

// NewLexicalRetriever creates the offline lexical retrieval strategy
func NewLexicalRetriever(faq *FAQService, domainKeywords []string) *LexicalRetriever {
	return &LexicalRetriever{faq: faq, domainKeywords: domainKeywords}
}

// Search implements Retriever
func (r *LexicalRetriever) Search(_ context.Context, query string, topK int) []models.RetrievalHit {
	if topK <= 0 {
		topK = DefaultTopK
	}
	entries, _ := r.faq.Snapshot()
	if len(entries) == 0 {
		return nil
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	hits := make([]models.RetrievalHit, 0, len(entries))
	for _, entry := range entries {
		candidateTokens := tokenize(entry.Question + " " + entry.Answer)
		score := jaccard(queryTokens, candidateTokens)

		for _, kw := range r.domainKeywords {
			kwLower := strings.ToLower(kw)
			if _, inQuery := queryTokens[kwLower]; !inQuery && !strings.Contains(strings.ToLower(query), kwLower) {
				continue
			}
			if strings.Contains(strings.ToLower(entry.Question+" "+entry.Answer), kwLower) {
				score += domainKeywordBonus
			}
		}
		if score > 1.0 {
			score = 1.0
		}

		if score > lexicalScoreFloor {
			hits = append(hits, models.RetrievalHit{Entry: entry, Score: score})
		}
	}

	return rankHits(hits, topK)
}

// SemanticRetriever scores entries by cosine similarity between the query
// embedding and per-entry vectors precomputed at catalog load time.
type SemanticRetriever struct {
	faq      *FAQService
	embedder Embedder
}

// NewSemanticRetriever creates the online embedding-based retrieval strategy
func NewSemanticRetriever(faq *FAQService, embedder Embedder) *SemanticRetriever {
	return &SemanticRetriever{faq: faq, embedder: embedder}
}

// Search implements Retriever. Embedding failures are treated as "no hits"
// so one flaky upstream call degrades a single answer, not the event batch.
func (r *SemanticRetriever) Search(ctx context.Context, query string, topK int) []models.RetrievalHit {
	if topK <= 0 {
		topK = DefaultTopK
	}
	entries, vectors := r.faq.Snapshot()
	if len(entries) == 0 || len(vectors) != len(entries) {
		return nil
	}

	queryVectors, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil || len(queryVectors) == 0 {
		log.Printf("⚠️ [RETRIEVER] Query embedding failed, returning no hits: %v", err)
		return nil
	}
	queryVec := queryVectors[0]

	hits := make([]models.RetrievalHit, 0, len(entries))
	for i, entry := range entries {
		score := cosineSimilarity(queryVec, vectors[i])
		if score > semanticScoreFloor {
			hits = append(hits, models.RetrievalHit{Entry: entry, Score: score})
		}
	}

	return rankHits(hits, topK)
}

// rankHits sorts descending by score and truncates to topK
func rankHits(hits []models.RetrievalHit, topK int) []models.RetrievalHit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// tokenize splits text into a token set: case-folded runs of Latin letters
// and digits, plus every individual character of non-segmentable scripts
// (Han, kana, Hangul), which lack whitespace word boundaries.
func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var word []rune

	flush := func() {
		if len(word) > 0 {
			tokens[string(word)] = struct{}{}
			word = word[:0]
		}
	}

	for _, r := range text {
		switch {
		case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul):
			flush()
			tokens[string(r)] = struct{}{}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// jaccard computes intersection-over-union of two token sets
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// cosineSimilarity computes dot(a,b) / (|a|*|b| + eps). The epsilon keeps
// zero-vectors from dividing by zero.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + 1e-9)
}

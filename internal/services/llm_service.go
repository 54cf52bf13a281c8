package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"faqbridge/internal/models"
)

// LLMService calls an OpenAI-compatible API for chat completions and
// embeddings. BaseURL points at the /v1 root; tests point it at a local
// httptest server.
type LLMService struct {
	BaseURL         string
	apiKey          string
	completionModel string
	embeddingModel  string
	httpClient      *http.Client
}

// NewLLMService creates the completion/embedding client
func NewLLMService(baseURL, apiKey, completionModel, embeddingModel string) *LLMService {
	return &LLMService{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		completionModel: completionModel,
		embeddingModel:  embeddingModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Complete sends the message context to /chat/completions and returns the
// assistant text of the first choice.
func (s *LLMService) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	chatReq := models.ChatRequest{
		Model:       s.completionModel,
		Messages:    messages,
		Stream:      false,
		Temperature: 0.3,
	}

	reqBody, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.BaseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		llmFailuresTotal.WithLabelValues("complete").Inc()
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		llmFailuresTotal.WithLabelValues("complete").Inc()
		return "", fmt.Errorf("completion API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		llmFailuresTotal.WithLabelValues("complete").Inc()
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(result.Choices) == 0 {
		llmFailuresTotal.WithLabelValues("complete").Inc()
		return "", fmt.Errorf("completion response contained no choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// EmbedTexts sends texts to /embeddings and returns vectors index-aligned
// with the input. Implements Embedder.
func (s *LLMService) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	reqBody, err := json.Marshal(models.EmbeddingRequest{
		Model: s.embeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.BaseURL+"/embeddings", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		llmFailuresTotal.WithLabelValues("embed").Inc()
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		llmFailuresTotal.WithLabelValues("embed").Inc()
		return nil, fmt.Errorf("embedding API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		llmFailuresTotal.WithLabelValues("embed").Inc()
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(result.Data) != len(texts) {
		llmFailuresTotal.WithLabelValues("embed").Inc()
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(result.Data), len(texts))
	}

	// The API may return data out of order; respect the index field
	vectors := make([][]float64, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

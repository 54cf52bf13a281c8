package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"faqbridge/internal/models"
)

// maxReplyRunes leaves margin under LINE's 5000-character text limit
const maxReplyRunes = 4900

// LineService sends replies through the LINE Messaging API and delivers
// best-effort handoff notifications. BaseURL is overridable for tests.
type LineService struct {
	BaseURL     string
	accessToken string
	handoffURL  string // empty = handoff notifications disabled
	httpClient  *http.Client
}

// NewLineService creates the LINE reply client
func NewLineService(accessToken, handoffURL string) *LineService {
	return &LineService{
		BaseURL:     "https://api.line.me",
		accessToken: accessToken,
		handoffURL:  handoffURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ReplyText sends one plain-text reply message for the given reply token.
// Model output markdown is stripped since LINE renders text verbatim, and
// the body is truncated to stay under the platform limit.
func (s *LineService) ReplyText(ctx context.Context, replyToken, text string) error {
	text = truncateRunes(stripMarkdown(text), maxReplyRunes)

	payload := models.ReplyRequest{
		ReplyToken: replyToken,
		Messages: []models.TextMessage{
			{Type: "text", Text: text},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.BaseURL+"/v2/bot/message/reply", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		replyFailuresTotal.Inc()
		return fmt.Errorf("failed to send LINE reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		replyFailuresTotal.Inc()
		return fmt.Errorf("LINE API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// NotifyHandoff POSTs a handoff notification to the configured endpoint.
// No-op when unconfigured. Callers fire this from a detached goroutine; the
// user-facing reply has already been sent and must not wait on it.
func (s *LineService) NotifyHandoff(userID, text string) {
	if s.handoffURL == "" {
		return
	}

	payload, err := json.Marshal(models.HandoffNotification{
		UserID:    userID,
		Text:      text,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", s.handoffURL, bytes.NewBuffer(payload))
	if err != nil {
		log.Printf("⚠️ [HANDOFF] Failed to create notification request: %v", err)
		handoffNotifyFailuresTotal.Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("⚠️ [HANDOFF] Notification delivery failed for user %s: %v", userID, err)
		handoffNotifyFailuresTotal.Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		log.Printf("⚠️ [HANDOFF] Notification endpoint returned %d: %s", resp.StatusCode, string(bodyBytes))
		handoffNotifyFailuresTotal.Inc()
	}
}

var (
	codeBlockPattern = regexp.MustCompile("```[a-zA-Z]*\\n([\\s\\S]*?)```")
	headerPattern    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	linkPattern      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// stripMarkdown flattens common markdown markup to plain text for chat
// surfaces that render text verbatim
func stripMarkdown(text string) string {
	// Remove bold markers
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	// Remove code blocks - keep content
	text = codeBlockPattern.ReplaceAllString(text, "$1")
	// Remove inline code backticks
	text = strings.ReplaceAll(text, "`", "")
	// Remove strikethrough
	text = strings.ReplaceAll(text, "~~", "")
	// Convert headers to plain text
	text = headerPattern.ReplaceAllString(text, "")
	// Convert links [text](url) to "text (url)"
	text = linkPattern.ReplaceAllString(text, "$1 ($2)")
	return text
}

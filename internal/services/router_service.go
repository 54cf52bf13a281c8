package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"faqbridge/internal/models"
)

// Routing decisions, recorded in the message log and metrics
const (
	RouteHandoff    = "handoff"
	RouteFAQOffline = "faq-offline"
	RouteFAQAI      = "faq+ai"
	RouteAI         = "ai"
	RouteNoHit      = "nohit"
)

// Fixed user-facing texts. Raw errors are never surfaced in chat; the user
// only ever sees a substantive answer or one of these.
const (
	HandoffReply = "好的，已為您轉接人工客服，我們會盡快與您聯繫，謝謝您的耐心等候。"
	ApologyReply = "系統忙碌中，請稍後再試，造成不便敬請見諒。"
	NoHitReply   = "抱歉，我暫時無法回答這個問題。您可以試著輸入關鍵字，例如：「報價流程」、「交貨時間」或「付款方式」。"

	offlineAnswerPrefix = "【參考回答】"
	furtherReadingLabel = "【延伸參考】"

	systemPrompt = "你是一位專業的客服助理。請以繁體中文簡潔且有禮貌地回答使用者的問題；若不確定答案，請誠實說明並建議聯絡人工客服。"
)

// CompletionClient is the completion collaborator as the router needs it.
// Satisfied by LLMService; tests plug in fakes.
type CompletionClient interface {
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// HandoffNotifier delivers best-effort handoff notifications.
// Satisfied by LineService.
type HandoffNotifier interface {
	NotifyHandoff(userID, text string)
}

// Decision is the outcome of routing one message
type Decision struct {
	Reply string
	Route string
	Hits  []models.RetrievalHit
}

// RouterService decides, per normalized message, whether to hand off to a
// human, answer from the FAQ, ground a model answer in FAQ hits, or fall
// back to the model alone. Evaluation is strict priority order, first match
// wins, and holds no state across invocations.
type RouterService struct {
	memory    *MemoryService
	retriever Retriever
	llm       CompletionClient // nil in offline deployments
	notifier  HandoffNotifier

	handoffKeywords []string
	topK            int
}

// NewRouterService wires the routing policy. llm may be nil, which selects
// the offline answer synthesis and the no-hit guidance fallback.
func NewRouterService(memory *MemoryService, retriever Retriever, llm CompletionClient, notifier HandoffNotifier, handoffKeywords []string, topK int) *RouterService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &RouterService{
		memory:          memory,
		retriever:       retriever,
		llm:             llm,
		notifier:        notifier,
		handoffKeywords: handoffKeywords,
		topK:            topK,
	}
}

// Route produces the reply for one normalized user message
func (r *RouterService) Route(ctx context.Context, userID, text string) Decision {
	decision := r.route(ctx, userID, text)
	messagesTotal.WithLabelValues(decision.Route).Inc()
	return decision
}

func (r *RouterService) route(ctx context.Context, userID, text string) Decision {
	// Priority 1: explicit request for a human agent. Wins even when the
	// message would also score highly against the FAQ.
	if r.matchesHandoff(text) {
		log.Printf("🙋 [ROUTER] Handoff requested by user %s", userID)
		if r.notifier != nil {
			// Detached on purpose: the acknowledgment must not wait on the
			// notification endpoint, and its failure is logged, not surfaced.
			go r.notifier.NotifyHandoff(userID, text)
		}
		return Decision{Reply: HandoffReply, Route: RouteHandoff}
	}

	// Priority 2: FAQ-grounded answer
	hits := r.retriever.Search(ctx, text, r.topK)
	if len(hits) > 0 {
		if r.llm == nil {
			return Decision{Reply: r.synthesizeOfflineAnswer(hits), Route: RouteFAQOffline, Hits: hits}
		}
		return Decision{Reply: r.generateReply(ctx, userID, text, hits), Route: RouteFAQAI, Hits: hits}
	}

	// Priority 3: model-only fallback
	if r.llm != nil {
		return Decision{Reply: r.generateReply(ctx, userID, text, nil), Route: RouteAI}
	}

	// Pure offline deployment with nothing to say: point at known keywords
	return Decision{Reply: NoHitReply, Route: RouteNoHit}
}

func (r *RouterService) matchesHandoff(text string) bool {
	for _, kw := range r.handoffKeywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// synthesizeOfflineAnswer concatenates the top hit's answer with the
// remaining hits as further-reading snippets
func (r *RouterService) synthesizeOfflineAnswer(hits []models.RetrievalHit) string {
	var b strings.Builder
	b.WriteString(offlineAnswerPrefix)
	b.WriteString(hits[0].Entry.Answer)

	if len(hits) > 1 {
		b.WriteString("\n\n")
		b.WriteString(furtherReadingLabel)
		for _, hit := range hits[1:] {
			b.WriteString("\n• ")
			b.WriteString(hit.Entry.Question)
			b.WriteString("：")
			b.WriteString(hit.Entry.Answer)
		}
	}

	return truncateRunes(b.String(), maxReplyRunes)
}

// generateReply builds the completion context (system instruction, recent
// turns, optional FAQ reference material, current message) and calls the
// completion collaborator. Failures degrade to the fixed apology.
func (r *RouterService) generateReply(ctx context.Context, userID, text string, hits []models.RetrievalHit) string {
	messages := make([]models.ChatMessage, 0, r.memory.ContextTurns()+3)
	messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: systemPrompt})
	messages = append(messages, r.memory.Recent(userID, 0)...)

	if len(hits) > 0 {
		var b strings.Builder
		b.WriteString("以下是知識庫中與使用者問題相關的參考資料，請優先依據這些資料回答（括號內為相似度分數）：")
		for _, hit := range hits {
			fmt.Fprintf(&b, "\nQ：%s\nA：%s（%.2f）", hit.Entry.Question, hit.Entry.Answer, hit.Score)
		}
		messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: b.String()})
	}

	messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: text})

	reply, err := r.llm.Complete(ctx, messages)
	if err != nil {
		log.Printf("❌ [ROUTER] Completion failed for user %s: %v", userID, err)
		return ApologyReply
	}
	return truncateRunes(reply, maxReplyRunes)
}

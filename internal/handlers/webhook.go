package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"faqbridge/internal/middleware"
	"faqbridge/internal/models"
	"faqbridge/internal/services"
)

// maxEventConcurrency bounds the fan-out over one delivery's event batch.
// LINE batches are small in practice; the cap hardens against an
// adversarially large batch tying up the process.
const maxEventConcurrency = 8

// rateLimitReply is sent instead of routing when a user floods the bot
const rateLimitReply = "您的訊息傳送過於頻繁，請稍候片刻再試。"

// WebhookHandler receives LINE webhook deliveries, verifies their signature
// and dispatches each event through the routing pipeline
type WebhookHandler struct {
	channelSecret string
	line          *services.LineService
	router        *services.RouterService
	memory        *services.MemoryService
	msgLog        *services.MessageLog
	dedup         *services.DedupService
	userLimiter   *middleware.UserRateLimiter
}

// NewWebhookHandler creates the webhook handler
func NewWebhookHandler(channelSecret string, line *services.LineService, router *services.RouterService, memory *services.MemoryService, msgLog *services.MessageLog, dedup *services.DedupService, userLimiter *middleware.UserRateLimiter) *WebhookHandler {
	return &WebhookHandler{
		channelSecret: channelSecret,
		line:          line,
		router:        router,
		memory:        memory,
		msgLog:        msgLog,
		dedup:         dedup,
		userLimiter:   userLimiter,
	}
}

// Probe answers platform GET/HEAD probes on the webhook path without
// touching any payload
func (h *WebhookHandler) Probe(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Handle processes one webhook delivery.
// POST /webhook
//
// The signature is verified over the raw body before anything is parsed.
// Events fan out concurrently to overlap their I/O waits and are joined
// before acknowledging; every per-event failure is contained so the
// delivery always acks 200 once it is authenticated and parsed (a non-200
// would make LINE redeliver the whole batch).
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	body := c.Body()

	if !h.verifySignature(body, c.Get("X-Line-Signature")) {
		log.Printf("❌ [WEBHOOK] Signature verification failed from %s", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid signature",
		})
	}

	var delivery models.WebhookRequest
	if err := json.Unmarshal(body, &delivery); err != nil {
		log.Printf("⚠️ [WEBHOOK] Failed to parse delivery: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload format",
		})
	}

	if len(delivery.Events) == 0 {
		return c.SendStatus(fiber.StatusOK)
	}

	var g errgroup.Group
	g.SetLimit(maxEventConcurrency)
	for _, event := range delivery.Events {
		event := event
		g.Go(func() error {
			h.processEvent(&event)
			return nil
		})
	}
	g.Wait()

	return c.SendStatus(fiber.StatusOK)
}

// verifySignature checks the HMAC-SHA256 of the raw body against the
// X-Line-Signature header (base64, keyed with the channel secret)
func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// processEvent runs the full pipeline for one event: normalize, route,
// reply, then record memory and the audit log. Nothing may escape this
// boundary; an unclassified panic degrades to the fixed apology reply.
func (h *WebhookHandler) processEvent(event *models.WebhookEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [WEBHOOK] Panic while handling event: %v", r)
			if event.ReplyToken != "" {
				if err := h.line.ReplyText(ctx, event.ReplyToken, services.ApologyReply); err != nil {
					log.Printf("⚠️ [WEBHOOK] Failed to send apology reply: %v", err)
				}
			}
		}
	}()

	// Non-text and non-message events are silently ignored, not an error
	if !event.IsTextMessage() {
		return
	}

	if h.dedup.Seen(event.Message.ID) {
		log.Printf("♻️ [WEBHOOK] Skipping redelivered message %s", event.Message.ID)
		return
	}

	eventID := uuid.New().String()
	userID := event.UserID()
	text := services.NormalizeText(event.Message.Text)

	log.Printf("📨 [WEBHOOK] Received text from user %s: %s", userID, truncateForLog(text, 50))
	h.msgLog.Inbound(eventID, userID, text)

	if !h.userLimiter.Allow(userID) {
		log.Printf("⏳ [WEBHOOK] Rate limit exceeded for user %s", userID)
		if err := h.line.ReplyText(ctx, event.ReplyToken, rateLimitReply); err != nil {
			log.Printf("⚠️ [WEBHOOK] Failed to send rate-limit reply: %v", err)
		}
		return
	}

	decision := h.router.Route(ctx, userID, text)

	// Reply first; memory and audit appends follow in order within this
	// event, so a stalled reply never reorders a user's history.
	if err := h.line.ReplyText(ctx, event.ReplyToken, decision.Reply); err != nil {
		log.Printf("❌ [WEBHOOK] Failed to send reply to user %s: %v", userID, err)
	}

	h.memory.Push(userID, models.RoleUser, text)
	h.memory.Push(userID, models.RoleAssistant, decision.Reply)
	h.msgLog.Outbound(eventID, userID, decision.Reply, decision.Route, decision.Hits)
}

func truncateForLog(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

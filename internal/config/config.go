package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string

	// LINE Messaging API credentials
	LineChannelSecret      string
	LineChannelAccessToken string

	// OpenAI-compatible API configuration
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	CompletionModel string
	EmbeddingModel  string

	// OfflineMode forces lexical retrieval and disables the completion API
	OfflineMode bool

	// FAQ catalog
	FAQPath        string
	FAQTopK        int
	FAQReloadCron  string // cron spec for scheduled reload, empty = disabled
	DomainKeywords []string

	// Handoff
	HandoffWebhookURL string
	HandoffKeywords   []string

	// Conversation memory
	MemoryMaxTurns     int
	MemoryContextTurns int

	// Message audit log
	MessageLogPath string

	// Rate limiting
	UserRatePerMinute int

	// Admin
	AdminAPIKey string
}

// defaultHandoffKeywords are phrases that indicate a request for a live agent
var defaultHandoffKeywords = []string{
	"人工客服", "真人客服", "真人", "請打給我", "業務聯絡", "電話", "聯絡我", "找人員",
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3000"),
		Environment: getEnv("ENVIRONMENT", "development"),

		LineChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		CompletionModel: getEnv("COMPLETION_MODEL", "gpt-4o-mini"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		OfflineMode: getBoolEnv("OFFLINE_MODE", false),

		FAQPath:        getEnv("FAQ_PATH", "faq.yaml"),
		FAQTopK:        getIntEnv("FAQ_TOP_K", 3),
		FAQReloadCron:  getEnv("FAQ_RELOAD_CRON", ""),
		DomainKeywords: getListEnv("DOMAIN_KEYWORDS", nil),

		HandoffWebhookURL: getEnv("HANDOFF_WEBHOOK_URL", ""),
		HandoffKeywords:   getListEnv("HANDOFF_KEYWORDS", defaultHandoffKeywords),

		MemoryMaxTurns:     getIntEnv("MEMORY_MAX_TURNS", 10),
		MemoryContextTurns: getIntEnv("MEMORY_CONTEXT_TURNS", 5),

		MessageLogPath: getEnv("MESSAGE_LOG_PATH", "data/messages.log"),

		UserRatePerMinute: getIntEnv("RATE_LIMIT_USER_PER_MIN", 20),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getListEnv parses a comma-separated environment value into a trimmed list
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

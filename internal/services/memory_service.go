package services

import (
	"sync"
	"time"

	"faqbridge/internal/models"
)

// MemoryService keeps a bounded per-user log of recent conversation turns.
// State is process-local and lost on restart; that loss is accepted, the
// history only shapes model context. Writes from concurrently handled events
// are serialized by one mutex since per-user sequences are short.
type MemoryService struct {
	mu           sync.Mutex
	turns        map[string][]models.ConversationTurn
	maxTurns     int
	contextTurns int
}

// NewMemoryService creates conversation memory. maxTurns is the hard cap per
// user, contextTurns how many recent turns Recent exposes by default. The two
// are independent knobs on purpose.
func NewMemoryService(maxTurns, contextTurns int) *MemoryService {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	if contextTurns <= 0 {
		contextTurns = 5
	}
	return &MemoryService{
		turns:        make(map[string][]models.ConversationTurn),
		maxTurns:     maxTurns,
		contextTurns: contextTurns,
	}
}

// Push appends a turn for the user, evicting from the front once the hard
// cap is exceeded. Identical pushes are appended as distinct turns.
func (s *MemoryService) Push(userID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := append(s.turns[userID], models.ConversationTurn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Unix(),
	})
	if len(seq) > s.maxTurns {
		seq = seq[len(seq)-s.maxTurns:]
	}
	s.turns[userID] = seq
}

// Recent returns up to limit most recent turns for the user, oldest first,
// as completion-ready messages. limit <= 0 uses the configured context size.
func (s *MemoryService) Recent(userID string, limit int) []models.ChatMessage {
	if limit <= 0 {
		limit = s.contextTurns
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.turns[userID]
	if len(seq) > limit {
		seq = seq[len(seq)-limit:]
	}

	out := make([]models.ChatMessage, len(seq))
	for i, turn := range seq {
		out[i] = models.ChatMessage{Role: turn.Role, Content: turn.Content}
	}
	return out
}

// ContextTurns returns the configured model-context window size
func (s *MemoryService) ContextTurns() int {
	return s.contextTurns
}

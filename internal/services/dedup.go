package services

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DedupService remembers recently processed webhook message IDs. LINE
// redelivers a webhook when it does not get a timely 200, so a slow event
// batch can arrive twice; replying twice to the same message is both
// user-visible noise and a wasted reply token.
type DedupService struct {
	seen *cache.Cache
}

// NewDedupService creates the dedup cache. ttl bounds how long IDs are
// remembered; LINE's retry window is far shorter.
func NewDedupService(ttl time.Duration) *DedupService {
	return &DedupService{
		seen: cache.New(ttl, ttl/2),
	}
}

// Seen marks messageID as processed and reports whether it had been seen
// before. Empty IDs are never deduplicated.
func (d *DedupService) Seen(messageID string) bool {
	if messageID == "" {
		return false
	}
	if err := d.seen.Add(messageID, struct{}{}, cache.DefaultExpiration); err != nil {
		duplicateEventsTotal.Inc()
		return true
	}
	return false
}

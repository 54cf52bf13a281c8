package models

// FaqEntry is one question/answer pair from the catalog file.
// Entries are immutable once loaded; the catalog is replaced wholesale on
// reload, never mutated entry-by-entry.
type FaqEntry struct {
	Question string   `yaml:"question" json:"question"`
	Answer   string   `yaml:"answer" json:"answer"`
	Tags     []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// RetrievalHit is one scored catalog entry returned by a retriever.
// Scores are in [0,1], produced per query and never stored.
type RetrievalHit struct {
	Entry FaqEntry `json:"entry"`
	Score float64  `json:"score"`
}

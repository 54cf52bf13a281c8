package services

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"faqbridge/internal/models"
)

// MessageLog appends one JSON record per inbound or outbound message to a
// local file. Write-only from this service's point of view; logrus
// serializes concurrent writers so lines never interleave. Append failures
// go to stderr and never affect user-facing behavior.
type MessageLog struct {
	logger *logrus.Logger
	file   *os.File
}

// NewMessageLog opens (or creates) the append-only log file at path
func NewMessageLog(path string) (*MessageLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open message log: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(file)
	logger.SetLevel(logrus.InfoLevel)

	return &MessageLog{logger: logger, file: file}, nil
}

// NewStderrMessageLog returns a log writing to stderr, used as a fallback
// when the log file cannot be opened
func NewStderrMessageLog() *MessageLog {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)
	return &MessageLog{logger: logger}
}

// Inbound records a received user message
func (l *MessageLog) Inbound(eventID, userID, text string) {
	l.logger.WithFields(logrus.Fields{
		"direction": "in",
		"event_id":  eventID,
		"user_id":   userID,
		"text":      text,
	}).Info("message")
}

// Outbound records a sent reply together with the routing decision and any
// FAQ hits that grounded it (question plus rounded score).
func (l *MessageLog) Outbound(eventID, userID, text, route string, hits []models.RetrievalHit) {
	fields := logrus.Fields{
		"direction": "out",
		"event_id":  eventID,
		"user_id":   userID,
		"text":      text,
		"route":     route,
	}
	if len(hits) > 0 {
		summary := make([]map[string]interface{}, len(hits))
		for i, h := range hits {
			summary[i] = map[string]interface{}{
				"question": h.Entry.Question,
				"score":    math.Round(h.Score*1000) / 1000,
			}
		}
		fields["hits"] = summary
	}
	l.logger.WithFields(fields).Info("message")
}

// Close flushes and closes the underlying file
func (l *MessageLog) Close() {
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			log.Printf("⚠️ [MSGLOG] Failed to close message log: %v", err)
		}
	}
}

package services

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"faqbridge/internal/models"
)

func TestMessageLog_WritesOneJSONRecordPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "messages.log")
	msgLog, err := NewMessageLog(path)
	if err != nil {
		t.Fatalf("NewMessageLog failed: %v", err)
	}
	defer msgLog.Close()

	msgLog.Inbound("ev-1", "u1", "請問報價流程")
	msgLog.Outbound("ev-1", "u1", "【參考回答】請提供公司名稱。", RouteFAQOffline, []models.RetrievalHit{
		{Entry: models.FaqEntry{Question: "報價流程？", Answer: "請提供公司名稱。"}, Score: 0.4217},
	})

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log: %v", err)
	}
	defer file.Close()

	var records []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("Line is not valid JSON: %v (%q)", err, scanner.Text())
		}
		records = append(records, rec)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	in := records[0]
	if in["direction"] != "in" || in["user_id"] != "u1" || in["text"] != "請問報價流程" {
		t.Errorf("Unexpected inbound record: %v", in)
	}

	out := records[1]
	if out["direction"] != "out" || out["route"] != RouteFAQOffline {
		t.Errorf("Unexpected outbound record: %v", out)
	}
	hits, ok := out["hits"].([]interface{})
	if !ok || len(hits) != 1 {
		t.Fatalf("Expected one logged hit, got %v", out["hits"])
	}
	hit := hits[0].(map[string]interface{})
	if hit["question"] != "報價流程？" {
		t.Errorf("Hit question missing: %v", hit)
	}
	if hit["score"] != 0.422 {
		t.Errorf("Score should be rounded to 3 decimals, got %v", hit["score"])
	}
}

func TestMessageLog_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "messages.log")
	msgLog, err := NewMessageLog(path)
	if err != nil {
		t.Fatalf("Expected parent directories to be created: %v", err)
	}
	msgLog.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Log file was not created: %v", err)
	}
}

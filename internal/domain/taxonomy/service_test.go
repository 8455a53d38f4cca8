package taxonomy

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleStandard = `{
  "metadata": {
    "version": "1.0.0",
    "last_updated": "2025-01-10",
    "description": "test standard",
    "maintainer": "qa"
  },
  "taxonomy": [
    {
      "id": 0,
      "model_label": "healthy",
      "zh_scientific_name": "健康",
      "latin_name": "N/A",
      "category": "Status",
      "action_policy": "PASS"
    },
    {
      "id": 2,
      "model_label": "powdery_mildew",
      "zh_scientific_name": "白粉病",
      "latin_name": "Erysiphales",
      "category": "Disease",
      "action_policy": "RETRIEVE",
      "search_keywords": ["白粉", "粉病"],
      "risk_level": "high"
    }
  ]
}`

func writeStandard(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write taxonomy file: %v", err)
	}
	return path
}

func TestLoadAndLookups(t *testing.T) {
	svc, err := Load(writeStandard(t, sampleStandard))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if got := svc.Metadata().Version; got != "1.0.0" {
		t.Errorf("metadata version = %q", got)
	}
	if got := len(svc.All()); got != 2 {
		t.Fatalf("All() returned %d entries, expected 2", got)
	}

	entry, ok := svc.ByID(2)
	if !ok {
		t.Fatal("ByID(2) not found")
	}
	if entry.ModelLabel != "powdery_mildew" || entry.Category != CategoryDisease {
		t.Errorf("unexpected entry: %+v", entry)
	}

	if _, ok := svc.ByID(99); ok {
		t.Error("ByID(99) found, expected miss")
	}

	entry, ok = svc.ByModelLabel("healthy")
	if !ok || entry.ActionPolicy != PolicyPass {
		t.Errorf("ByModelLabel(healthy) = %+v, ok=%v", entry, ok)
	}

	entry, ok = svc.ByName("白粉病")
	if !ok || entry.ID != 2 {
		t.Errorf("ByName lookup failed: %+v, ok=%v", entry, ok)
	}
}

func TestSearchKeywords(t *testing.T) {
	svc, err := Load(writeStandard(t, sampleStandard))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	keywords := svc.SearchKeywords(2)
	if len(keywords) != 2 || keywords[0] != "白粉" {
		t.Errorf("keywords = %v", keywords)
	}
	if got := svc.SearchKeywords(0); len(got) != 0 {
		t.Errorf("expected no keywords for entry 0, got %v", got)
	}
	if got := svc.SearchKeywords(42); got != nil {
		t.Errorf("expected nil for missing entry, got %v", got)
	}
}

func TestLoadFailures(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeStandard(t, "{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := Load(writeStandard(t, `{"metadata":{"version":"1"},"taxonomy":[]}`)); err == nil {
		t.Error("expected error for empty taxonomy")
	}
}

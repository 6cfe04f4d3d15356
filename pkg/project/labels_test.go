package project

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadLabelsParsesGAKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.json")
	if err := os.WriteFile(path, []byte(`{"5": "Kitchen Downlights", "12": "Hallway"}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels: %v", err)
	}
	if labels[5] != "Kitchen Downlights" {
		t.Fatalf("unexpected label for GA 5: %q", labels[5])
	}
	if labels[12] != "Hallway" {
		t.Fatalf("unexpected label for GA 12: %q", labels[12])
	}
}

func TestLoadLabelsReturnsNilWhenPathEmpty(t *testing.T) {
	labels, err := LoadLabels("")
	if err != nil || labels != nil {
		t.Fatalf("expected nil, nil, got %v, %v", labels, err)
	}
}

func TestLoadLabelsReturnsNilWhenFileMissing(t *testing.T) {
	labels, err := LoadLabels("/nonexistent/path/labels.json")
	if err != nil || labels != nil {
		t.Fatalf("expected nil, nil for missing file, got %v, %v", labels, err)
	}
}

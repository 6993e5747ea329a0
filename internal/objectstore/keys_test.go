package objectstore

import (
	"strings"
	"testing"

	"github.com/movaia/movaia/internal/models"
)

func TestVideoKey(t *testing.T) {
	key := VideoKey("user-1", "analysis-1", models.AngleLeftToRight, "run.MOV")

	if !strings.HasPrefix(key, "videos/user-1/analysis-1/left_to_right/") {
		t.Errorf("Unexpected key prefix: %s", key)
	}
	if !strings.HasSuffix(key, ".mov") {
		t.Errorf("Expected lowercased extension .mov, got %s", key)
	}
}

func TestVideoKey_DefaultExtension(t *testing.T) {
	key := VideoKey("user-1", "analysis-1", models.AngleNormal, "clip")
	if !strings.HasSuffix(key, ".mp4") {
		t.Errorf("Expected .mp4 fallback, got %s", key)
	}
}

func TestVideoKey_Unique(t *testing.T) {
	a := VideoKey("u", "a", models.AngleNormal, "run.mp4")
	b := VideoKey("u", "a", models.AngleNormal, "run.mp4")
	if a == b {
		t.Error("Expected distinct keys for repeated uploads of the same file")
	}
}

func TestResultKey(t *testing.T) {
	key := ResultKey("user-1", "analysis-1", models.AngleNormal, "results.csv")
	want := "analysis_result/user-1/analysis-1/normal/results.csv"
	if key != want {
		t.Errorf("Expected %s, got %s", want, key)
	}
}

func TestThumbnailKey(t *testing.T) {
	key := ThumbnailKey("user-1", "analysis-1")
	want := "analysis_result/user-1/analysis-1/normal/thumbnail.png"
	if key != want {
		t.Errorf("Expected %s, got %s", want, key)
	}
}

package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEmptyPathIsDefault(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got.Rerank.WeakTopicBonus != Default().Rerank.WeakTopicBonus || got.TopK != 20 {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}

func TestParseOverlaysOnlyGivenKeys(t *testing.T) {
	raw := []byte(`
rerank:
  weak_topic_bonus: 0.9
hybrid:
  vector: 0.5
  lexical: 0.5
cache_ttls:
  weak_topics: 90s
retry:
  initial: 250ms
`)
	tn := Default()
	if err := Parse(raw, &tn); err != nil {
		t.Fatal(err)
	}
	if tn.Rerank.WeakTopicBonus != 0.9 {
		t.Fatalf("override not applied")
	}
	if tn.Rerank.ModalityBonus != Default().Rerank.ModalityBonus {
		t.Fatalf("missing key lost its default")
	}
	if tn.CacheTTLs.WeakTopics != 90*time.Second || tn.CacheTTLs.Adaptation != 30*time.Minute {
		t.Fatalf("ttls: %+v", tn.CacheTTLs)
	}
	if tn.Retry.Initial != 250*time.Millisecond || tn.Retry.Attempts != 3 {
		t.Fatalf("retry: %+v", tn.Retry)
	}
	if tn.Signals.KeypressDivisorMs != 8000 {
		t.Fatalf("signals default lost")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tn := Default()
	if err := Parse([]byte("fsrs:\n  target_retention: 1.5\n"), &tn); err == nil {
		t.Fatalf("expected validation error")
	}
	tn = Default()
	if err := Parse([]byte("top_k: [oops"), &tn); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("top_n: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.TopN != 3 {
		t.Fatalf("top_n: %d", got.TopN)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file must fail")
	}
}

package observability

import "testing"

func TestParseHeaderListSkipsMalformed(t *testing.T) {
	got := parseHeaderList([]string{"authorization=Bearer x", "bad", "=v", "k=", "x-team = tutor"})
	if len(got) != 2 {
		t.Fatalf("headers: %v", got)
	}
	if got["authorization"] != "Bearer x" || got["x-team"] != "tutor" {
		t.Fatalf("headers: %v", got)
	}
	if parseHeaderList(nil) != nil {
		t.Fatalf("empty input should yield nil")
	}
}

func TestLoadTraceSettings(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_SAMPLER_RATIO", "4")
	s := loadTraceSettings()
	if !s.Enabled || s.Endpoint != "collector:4318" {
		t.Fatalf("settings: %+v", s)
	}
	if s.SampleRatio != 1 {
		t.Fatalf("ratio should clamp to 1, got %v", s.SampleRatio)
	}
	if clampRatio(-0.5) != 0 || clampRatio(0.25) != 0.25 {
		t.Fatalf("clampRatio")
	}
}

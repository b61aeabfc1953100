package infrastructure

import "testing"

func TestLoggerRespectsLevelThreshold(t *testing.T) {
	l := NewLogger("warn", "text").(*simpleLogger)
	if l.level != warnLevel {
		t.Fatalf("expected warnLevel, got %v", l.level)
	}
	if l.format != textFormat {
		t.Fatalf("expected textFormat, got %v", l.format)
	}
}

func TestLoggerUnknownLevelFallsBackToInfo(t *testing.T) {
	l := NewLogger("not-a-level", "not-a-format").(*simpleLogger)
	if l.level != infoLevel {
		t.Fatalf("expected fallback to infoLevel, got %v", l.level)
	}
	if l.format != textFormat {
		t.Fatalf("expected fallback to textFormat, got %v", l.format)
	}
}

func TestLoggerJSONFormatRecognized(t *testing.T) {
	l := NewLogger("debug", "JSON").(*simpleLogger)
	if l.format != jsonFormat {
		t.Fatalf("expected jsonFormat, got %v", l.format)
	}
}

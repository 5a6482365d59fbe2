package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithAttachesFieldToChildOnly(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	root := New(zap.New(core))

	child := root.With("story_id", "s1")
	child.WarnObj("story missing", "detail", map[string]any{"reason": "gone"})
	root.InfoObj("plain", "detail", "x")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["story_id"]; got != "s1" {
		t.Fatalf("child entry story_id = %v", got)
	}
	if _, ok := entries[1].ContextMap()["story_id"]; ok {
		t.Fatalf("root entry should not carry child field")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if parseLevel("bogus") != zapcore.InfoLevel {
		t.Fatalf("expected info level for unknown input")
	}
	if parseLevel(" WARNING ") != zapcore.WarnLevel {
		t.Fatalf("expected warn level")
	}
}

func TestEnsureReturnsNopForNil(t *testing.T) {
	if _, ok := Ensure(nil).(NopLogger); !ok {
		t.Fatalf("expected NopLogger")
	}
}

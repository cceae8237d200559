package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew(t *testing.T) {
	log, err := New("debug", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("expected text formatter, got %T", log.Formatter)
	}

	log, err = New("warn", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected json formatter, got %T", log.Formatter)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("loud", "text"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

package logger

import (
	"testing"
)

func TestLog_DefaultIsUsable(t *testing.T) {
	if Log == nil {
		t.Fatal("Log should never be nil before Init")
	}
	Log.Infof("discarded %d", 1)
}

func TestInit_Levels(t *testing.T) {
	orig := Log
	defer func() { Log = orig }()

	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		if err := Init(level); err != nil {
			t.Errorf("Init(%q) returned error: %v", level, err)
		}
	}
}

func TestInit_BadLevel(t *testing.T) {
	orig := Log
	defer func() { Log = orig }()

	if err := Init("loud"); err == nil {
		t.Error("Expected an error for an unknown level")
	}
	if Log != orig {
		t.Error("Log should be left untouched when Init fails")
	}
}

func TestSetLevel(t *testing.T) {
	orig := Level()
	defer SetLevel(orig)

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel returned error: %v", err)
	}
	if got := Level(); got != "warn" {
		t.Errorf("Level() = %q, want warn", got)
	}
	if err := SetLevel("loud"); err == nil {
		t.Error("Expected an error for an unknown level")
	}
	if got := Level(); got != "warn" {
		t.Errorf("Level() = %q after a bad SetLevel, want warn", got)
	}
}

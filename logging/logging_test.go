package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.log")
	l, err := New(Options{FilePath: path, Level: "info"})
	if err != nil {
		t.Fatal(err)
	}
	l.Sugar().Debugf("hidden %d", 1)
	l.Sugar().Infof("room=%s tick=%d", "room-1", 3)
	_ = l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	if !strings.Contains(out, "room=room-1 tick=3") {
		t.Fatalf("log file missing info line: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %q", out)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

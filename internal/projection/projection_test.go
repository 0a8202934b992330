package projection

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AxelotlZoons/Word/internal/spotter"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	trimmed := strings.TrimRight(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestOpenTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword_counts.txt")
	if err := os.WriteFile(path, []byte("stale=99\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sink.Close()

	if lines := readLines(t, path); len(lines) != 0 {
		t.Errorf("file should be truncated on open, got %v", lines)
	}
}

func TestOneLinePerUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword_counts.txt")
	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sink.Close()

	sink.OnMatches(nil, spotter.Snapshot{{Keyword: "china", Count: 0}, {Keyword: "fire", Count: 1}})
	sink.OnMatches(nil, spotter.Snapshot{{Keyword: "china", Count: 1}, {Keyword: "fire", Count: 1}})

	lines := readLines(t, path)
	want := []string{"china=0 fire=1", "china=1 fire=1"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
	if sink.Lines() != 2 {
		t.Errorf("Lines() = %d, want 2", sink.Lines())
	}
}

func TestWriteAfterClose(t *testing.T) {
	sink, err := Open(filepath.Join(t.TempDir(), "counts.txt"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := sink.Write(spotter.Snapshot{}); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Write() error = %v, want os.ErrClosed", err)
	}
}

func TestOpenBadPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "counts.txt")); err == nil {
		t.Error("Open() should fail for a missing directory")
	}
}

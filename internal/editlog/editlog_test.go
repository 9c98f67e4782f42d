package editlog

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad line %q: %v", line, err)
		}
		out = append(out, e)
	}
	return out
}

func TestAppend_WritesJSONL(t *testing.T) {
	t.Parallel()

	s, err := New(Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Append(Entry{Event: EventRepairFallback, DocumentID: "doc_1", SessionID: "es_1", Detail: map[string]any{"fallback_indices": []int{0, 2}}})
	s.Append(Entry{Event: EventSessionDone, DocumentID: "doc_1", SessionID: "es_1"})

	entries := readEntries(t, s.ActivePath())
	if len(entries) != 2 {
		t.Fatalf("entries=%d", len(entries))
	}
	if entries[0].Event != EventRepairFallback || entries[0].CreatedAt == "" {
		t.Fatalf("entries[0]=%+v", entries[0])
	}
	if entries[1].Event != EventSessionDone {
		t.Fatalf("entries[1]=%+v", entries[1])
	}
}

func TestAppend_NilStoreIsSafe(t *testing.T) {
	t.Parallel()

	var s *Store
	s.Append(Entry{Event: EventOpSkipped})
	if s.ActivePath() != "" {
		t.Fatalf("nil store has a path")
	}
}

func TestAppend_Rotation(t *testing.T) {
	t.Parallel()

	s, err := New(Options{Dir: t.TempDir(), MaxBytes: 200, MaxBackups: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 30; i++ {
		s.Append(Entry{Event: EventOpSkipped, SessionID: "es_rotate", Detail: map[string]any{"reason": strings.Repeat("x", 40)}})
	}

	if _, err := os.Stat(s.ActivePath() + ".1"); err != nil {
		t.Fatalf("expected rotated file: %v", err)
	}
	// The backup cap holds: .3 must never exist with MaxBackups 2.
	if _, err := os.Stat(s.ActivePath() + ".3"); err == nil {
		t.Fatalf("rotation exceeded MaxBackups")
	}
	info, err := os.Stat(s.ActivePath())
	if err != nil {
		t.Fatalf("active file missing: %v", err)
	}
	if info.Size() > 400 {
		t.Fatalf("active file grew past threshold: %d bytes", info.Size())
	}
}

// Package editlog is the JSONL diagnostics trail of the edit pipeline:
// repair fallbacks, skipped ops, protocol failures and rejected sessions.
// These events are invisible to the end user by design; this file is where
// they stay observable.
package editlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	defaultMaxBytes   = int64(2 << 20) // 2 MiB
	defaultMaxBackups = 3
)

// Event names are short and stable; dashboards grep for them.
const (
	EventRepairFallback  = "repair_fallback"
	EventOpSkipped       = "op_skipped"
	EventProtocolError   = "protocol_error"
	EventSessionRejected = "session_rejected"
	EventSessionDone     = "session_done"
)

type Entry struct {
	CreatedAt string `json:"created_at"`
	Event     string `json:"event"`

	DocumentID string `json:"document_id,omitempty"`
	SectionKey string `json:"section_key,omitempty"`
	SessionID  string `json:"session_id,omitempty"`

	// Detail is a small, event-specific object. Keep it secret-free.
	Detail map[string]any `json:"detail,omitempty"`
}

type Options struct {
	Logger *slog.Logger
	// Dir is the state directory; the log lives at <dir>/editlog/events.jsonl.
	Dir string

	// MaxBytes is the rotation threshold for the active file.
	MaxBytes int64
	// MaxBackups keeps the latest N rotated files.
	MaxBackups int
}

type Store struct {
	log *slog.Logger

	activePath string
	maxBytes   int64
	maxBackups int

	mu sync.Mutex
}

func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("missing Dir")
	}
	dir := filepath.Join(opts.Dir, "editlog")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	return &Store{
		log:        log,
		activePath: filepath.Join(dir, "events.jsonl"),
		maxBytes:   maxBytes,
		maxBackups: maxBackups,
	}, nil
}

// Append writes one entry. Failures are logged, not returned: telemetry must
// never fail an edit.
func (s *Store) Append(e Entry) {
	if s == nil {
		return
	}
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	line, err := json.Marshal(e)
	if err != nil {
		s.log.Warn("editlog: marshal failed", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rotateIfNeeded(int64(len(line) + 1)); err != nil {
		s.log.Warn("editlog: rotate failed", "err", err)
	}
	f, err := os.OpenFile(s.activePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		s.log.Warn("editlog: open failed", "err", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		s.log.Warn("editlog: write failed", "err", err)
	}
}

func (s *Store) rotateIfNeeded(incoming int64) error {
	info, err := os.Stat(s.activePath)
	if err != nil || info.Size()+incoming <= s.maxBytes {
		return nil
	}
	// Shift events.jsonl.N-1 -> events.jsonl.N, oldest falls off.
	for i := s.maxBackups; i >= 2; i-- {
		from := fmt.Sprintf("%s.%d", s.activePath, i-1)
		to := fmt.Sprintf("%s.%d", s.activePath, i)
		if _, err := os.Stat(from); err == nil {
			_ = os.Rename(from, to)
		}
	}
	return os.Rename(s.activePath, s.activePath+".1")
}

// ActivePath returns the current log file path (tests and doctors).
func (s *Store) ActivePath() string {
	if s == nil {
		return ""
	}
	return s.activePath
}

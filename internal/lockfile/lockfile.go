// Package lockfile guards the agent state directory: at most one
// docfold-agent process may own a state dir at a time.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrAlreadyLocked indicates the lock is held by another process.
	ErrAlreadyLocked = errors.New("state dir already locked")
)

// owner is the troubleshooting breadcrumb written into the lock file. The
// lock itself is the flock, not the file content.
type owner struct {
	PID        int    `json:"pid"`
	AcquiredAt string `json:"acquired_at"`
}

type Lock struct {
	path string
	f    *os.File
}

func Acquire(path string) (*Lock, error) {
	if path == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	breadcrumb, _ := json.Marshal(owner{PID: os.Getpid(), AcquiredAt: time.Now().UTC().Format(time.RFC3339)})
	_, _ = f.Write(append(breadcrumb, '\n'))
	_ = f.Sync()

	return &Lock{path: path, f: f}, nil
}

// Holder reports the breadcrumb of the current lock file, if readable. Useful
// in the "already locked" error path to tell the user who owns the dir.
func Holder(path string) (pid int, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	var o owner
	if err := json.Unmarshal(data, &o); err != nil || o.PID <= 0 {
		return 0, false
	}
	return o.PID, true
}

func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unlockErr := unlockFile(l.f)
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}

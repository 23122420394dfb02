package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// backupStamp orders backup files lexicographically by rotation time.
const backupStamp = "20060102T150405"

// rotatingWriter appends to a single audit file and moves it aside once it
// grows past maxSize. Backups carry the rotation timestamp in the file name;
// the retention sweep keeps at most maxBackups of them and drops anything
// older than maxAge. The audit trail is the only durable record of signing
// operations, so retention defaults err on the long side.
type rotatingWriter struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	maxSize    int64
	maxBackups int
	maxAge     time.Duration
	size       int64
}

func newRotatingWriter(path string, maxSizeMB, maxBackups, maxAgeDays int) (*rotatingWriter, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 64
	}
	if maxBackups <= 0 {
		maxBackups = 10
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 90
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	writer := &rotatingWriter{
		path:       path,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		maxAge:     time.Duration(maxAgeDays) * 24 * time.Hour,
	}
	return writer, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureFile(); err != nil {
		return 0, err
	}
	if w.maxSize > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
		if err := w.ensureFile(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.size = 0
	return err
}

func (w *rotatingWriter) ensureFile() error {
	if w.file != nil {
		return nil
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	w.file = file
	w.size = info.Size()
	return nil
}

// backupName yields e.g. audit-20260901T120000.log for path audit.log.
func (w *rotatingWriter) backupName(at time.Time) string {
	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)
	return fmt.Sprintf("%s-%s%s", base, at.UTC().Format(backupStamp), ext)
}

func (w *rotatingWriter) rotate() error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	w.size = 0

	if err := os.Rename(w.path, w.backupName(time.Now())); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate audit log: %w", err)
	}
	w.sweepBackups()
	return nil
}

// sweepBackups enforces the count and age limits on rotated files.
func (w *rotatingWriter) sweepBackups() {
	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)
	matches, err := filepath.Glob(base + "-*" + ext)
	if err != nil || len(matches) == 0 {
		return
	}
	// Newest first; the timestamp format sorts lexicographically.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))

	cutoff := time.Now().Add(-w.maxAge)
	for i, path := range matches {
		if w.maxBackups > 0 && i >= w.maxBackups {
			_ = os.Remove(path)
			continue
		}
		if w.maxAge > 0 {
			if info, err := os.Stat(path); err == nil && info.ModTime().Before(cutoff) {
				_ = os.Remove(path)
			}
		}
	}
}

package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriterAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	w, err := newRotatingWriter(path, 1, 2, 30)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "first\nsecond\n" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestRotatingWriterRotatesPastSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	w, err := newRotatingWriter(path, 1, 2, 30)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer w.Close()
	w.maxSize = 64

	line := []byte(strings.Repeat("a", 40) + "\n")
	for i := 0; i < 3; i++ {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	if int64(len(data)) > w.maxSize {
		t.Fatalf("current file exceeds size limit: %d bytes", len(data))
	}

	backups, err := filepath.Glob(filepath.Join(dir, "audit-*.log"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(backups) == 0 {
		t.Fatalf("expected at least one backup after rotation")
	}
	if len(backups) > w.maxBackups {
		t.Fatalf("backup count %d exceeds limit %d", len(backups), w.maxBackups)
	}
}

func TestRotatingWriterCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := newRotatingWriter(filepath.Join(dir, "audit.log"), 1, 1, 1)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if _, err := w.Write([]byte("x\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

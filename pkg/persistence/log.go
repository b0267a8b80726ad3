package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Log is an append-only file of frames. Every Append is flushed and synced
// before it returns.
type Log struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	path    string
	records int
}

// OpenLog opens or creates the log at path and calls replay with every
// stored payload in write order. A frame cut short at the end of the file,
// as left by a crash during Append, is truncated away. Any other damage is
// returned as an error.
func OpenLog(path string, replay func(payload []byte) error) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	l := &Log{file: file, path: path}
	good, err := l.replay(replay)
	if err != nil {
		file.Close()
		return nil, err
	}
	if err := l.reopenAt(good); err != nil {
		file.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) replay(fn func([]byte) error) (int64, error) {
	r := &countingReader{r: bufio.NewReader(l.file)}
	var good int64
	for {
		payload, err := ReadFrame(r)
		switch {
		case err == io.EOF:
			return good, nil
		case errors.Is(err, ErrIncompleteFrame):
			slog.Warn("truncating incomplete log tail", "path", l.path, "offset", good)
			return good, nil
		case err != nil:
			return 0, fmt.Errorf("log %s at offset %d: %w", l.path, good, err)
		}
		if err := fn(payload); err != nil {
			return 0, fmt.Errorf("log %s at offset %d: %w", l.path, good, err)
		}
		good = r.n
		l.records++
	}
}

// reopenAt drops anything past offset and positions writes there.
func (l *Log) reopenAt(offset int64) error {
	if err := l.file.Truncate(offset); err != nil {
		return fmt.Errorf("truncate log: %w", err)
	}
	if _, err := l.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek log: %w", err)
	}
	l.buf = bufio.NewWriter(l.file)
	return nil
}

// Append writes payload as one frame and syncs it to disk.
func (l *Log) Append(payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := WriteFrame(l.buf, payload); err != nil {
		return err
	}
	if err := l.buf.Flush(); err != nil {
		return err
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	l.records++
	return nil
}

// Records is the number of frames in the log.
func (l *Log) Records() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records
}

// Rewrite replaces the log with the given payloads. The new content is
// written to a temporary file and renamed over the log.
func (l *Log) Rewrite(payloads [][]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".log-rewrite-*")
	if err != nil {
		return fmt.Errorf("rewrite log: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, p := range payloads {
		if err := WriteFrame(w, p); err != nil {
			tmp.Close()
			return fmt.Errorf("rewrite log: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("rewrite log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("rewrite log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("rewrite log: %w", err)
	}

	if err := l.buf.Flush(); err != nil {
		return err
	}
	_ = l.file.Close()
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace log: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("reopen log: %w", err)
	}
	l.file = file
	l.records = len(payloads)
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek log: %w", err)
	}
	return l.reopenAt(end)
}

func (l *Log) Path() string { return l.path }

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.buf.Flush(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Package log writes the audit trail as hourly zstd-compressed JSONL files.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu       sync.Mutex
	curHour  string
	curPath  string
	onClosed func(path string)
	f        *os.File
	enc      *zstd.Encoder
	w        *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

// OnClosed registers fn to run with the path of every file the writer
// finishes, on rotation and on Close.
func (w *JSONLZstdWriter) OnClosed(fn func(path string)) {
	w.mu.Lock()
	w.onClosed = fn
	w.mu.Unlock()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v as one line. Files rotate on the UTC hour.
func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	w.curPath = path
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
		if w.onClosed != nil {
			w.onClosed(w.curPath)
		}
	}
	w.w = nil
	w.curHour = ""
	w.curPath = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

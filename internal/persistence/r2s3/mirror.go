package r2s3

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Uploader is the part of Client the mirror needs.
type Uploader interface {
	PutFile(ctx context.Context, key, localPath string) error
}

type Stats struct {
	Queued   int
	Uploaded uint64
	Failed   uint64
	Dropped  uint64
}

// Mirror uploads files below dataDir in the background. Object keys are
// prefix/<path relative to dataDir>.
type Mirror struct {
	up      Uploader
	dataDir string
	prefix  string
	log     *log.Logger

	// Backoff is the base delay between attempts; attempt n waits n*n*Backoff.
	Backoff  time.Duration
	Attempts int

	mu     sync.RWMutex
	closed bool
	jobs   chan string
	wg     sync.WaitGroup

	uploaded atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

func NewMirror(up Uploader, dataDir, prefix string, workers int, logger *log.Logger) *Mirror {
	if workers <= 0 {
		workers = 1
	}
	m := &Mirror{
		up:       up,
		dataDir:  dataDir,
		prefix:   strings.Trim(filepath.ToSlash(prefix), "/"),
		log:      logger,
		Backoff:  200 * time.Millisecond,
		Attempts: 4,
		jobs:     make(chan string, 256),
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for p := range m.jobs {
				m.upload(p)
			}
		}()
	}
	return m
}

// Enqueue never blocks; when the queue is full the file is dropped and
// counted. Calls after Close are ignored.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.jobs <- localPath:
	default:
		m.dropped.Add(1)
		m.log.Printf("mirror: queue full, dropping %s", filepath.Base(localPath))
	}
}

// Close waits for queued uploads to finish.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Queued:   len(m.jobs),
		Uploaded: m.uploaded.Load(),
		Failed:   m.failed.Load(),
		Dropped:  m.dropped.Load(),
	}
}

func (m *Mirror) upload(localPath string) {
	key, err := m.objectKey(localPath)
	if err != nil {
		m.failed.Add(1)
		m.log.Printf("mirror: skip %s: %v", localPath, err)
		return
	}
	var lastErr error
	for attempt := 1; attempt <= m.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		lastErr = m.up.PutFile(ctx, key, localPath)
		cancel()
		if lastErr == nil {
			m.uploaded.Add(1)
			return
		}
		if attempt < m.Attempts {
			time.Sleep(time.Duration(attempt*attempt) * m.Backoff)
		}
	}
	m.failed.Add(1)
	m.log.Printf("mirror: upload %s failed: %v", key, lastErr)
}

func (m *Mirror) objectKey(localPath string) (string, error) {
	base, err := filepath.Abs(m.dataDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("outside data dir %s", m.dataDir)
	}
	return path.Join(m.prefix, rel), nil
}

// Package snapshot writes completed images to disk.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
)

const (
	defaultDir     = "images"
	defaultWorkers = 2
)

// Kind is the kind of a capture.
type Kind string

// kinds.
const (
	KindBackground Kind = "bg"
	KindForeground Kind = "fg"
)

// ParseKind parses a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindBackground, KindForeground:
		return Kind(s), nil
	}
	return "", fmt.Errorf("invalid capture kind '%s'", s)
}

// Saver writes images to disk in background.
// Files are named <dir>/<label>-<kind>-NNNN.jpg, where NNNN is a per-kind counter.
type Saver struct {
	// Destination directory. It is created if it does not exist.
	// It defaults to "images".
	Dir string

	// Number of concurrent writes.
	// It defaults to 2.
	Workers int

	// logger.
	// It defaults to a no-op logger.
	Logger *zap.Logger

	// called after every write.
	OnSaved func(path string, err error)

	mutex    sync.Mutex
	counters map[Kind]int
	pool     *workerpool.WorkerPool
}

// Initialize initializes Saver.
func (s *Saver) Initialize() error {
	if s.Dir == "" {
		s.Dir = defaultDir
	}
	if s.Workers == 0 {
		s.Workers = defaultWorkers
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if s.OnSaved == nil {
		s.OnSaved = func(string, error) {}
	}

	err := os.MkdirAll(s.Dir, 0o755)
	if err != nil {
		return err
	}

	s.counters = make(map[Kind]int)
	s.pool = workerpool.New(s.Workers)

	return nil
}

// Close waits for pending writes.
func (s *Saver) Close() {
	s.pool.StopWait()
}

// ResetCounters restarts numbering of files from zero.
func (s *Saver) ResetCounters() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	clear(s.counters)
}

// Save queues the write of an image and returns the path of the file.
func (s *Saver) Save(kind Kind, label string, payload []byte) (string, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return "", err
	}
	if label == "" {
		return "", fmt.Errorf("label is empty")
	}
	if payload == nil {
		return "", fmt.Errorf("no image available")
	}

	s.mutex.Lock()
	n := s.counters[kind]
	s.counters[kind]++
	s.mutex.Unlock()

	path := filepath.Join(s.Dir, fmt.Sprintf("%s-%s-%04d.jpg", label, kind, n))

	s.pool.Submit(func() {
		err := os.WriteFile(path, payload, 0o644)
		if err != nil {
			s.Logger.Warn("unable to save image", zap.String("path", path), zap.Error(err))
		} else {
			s.Logger.Info("image saved", zap.String("path", path), zap.Int("size", len(payload)))
		}
		s.OnSaved(path, err)
	})

	return path, nil
}

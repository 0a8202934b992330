package projection

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/AxelotlZoons/Word/internal/pipeline"
	"github.com/AxelotlZoons/Word/internal/spotter"
)

// FileSink appends one line per count update to a file that is truncated
// when the sink is opened. Each line lists every root keyword with its
// count, sorted by keyword.
type FileSink struct {
	pipeline.NopObserver

	mu     sync.Mutex
	path   string
	file   *os.File
	w      *bufio.Writer
	lines  int
	closed bool
	logger *log.Logger
}

func Open(path string) (*FileSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open counts file: %w", err)
	}
	return &FileSink{
		path:   path,
		file:   file,
		w:      bufio.NewWriter(file),
		logger: log.Default().WithPrefix("projection"),
	}, nil
}

func (s *FileSink) Path() string { return s.path }

// Write renders counts as one line and flushes it.
func (s *FileSink) Write(counts spotter.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return os.ErrClosed
	}
	if _, err := s.w.WriteString(counts.String() + "\n"); err != nil {
		return fmt.Errorf("write counts: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush counts: %w", err)
	}
	s.lines++
	return nil
}

// OnMatches records the counts after every increment.
func (s *FileSink) OnMatches(_ []spotter.Match, counts spotter.Snapshot) {
	if err := s.Write(counts); err != nil {
		s.logger.Warn("counts not written", "path", s.path, "err", err)
	}
}

// Lines is the number of updates written so far.
func (s *FileSink) Lines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.w.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"emberstaff/server/logging"
)

// JSONSink appends newline-delimited JSON events to a file, flushing in
// batches so steady-state logging stays off the write syscall path.
type JSONSink struct {
	mu        sync.Mutex
	file      *os.File
	writer    *bufio.Writer
	pending   int
	maxBatch  int
	interval  time.Duration
	lastFlush time.Time
}

func NewJSONSink(cfg logging.JSONConfig) (*JSONSink, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("json sink requires a file path")
	}
	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open json sink: %w", err)
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 32
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &JSONSink{
		file:      file,
		writer:    bufio.NewWriter(file),
		maxBatch:  maxBatch,
		interval:  interval,
		lastFlush: time.Now(),
	}, nil
}

func (s *JSONSink) Write(event logging.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return err
	}
	s.pending++
	if s.pending >= s.maxBatch || time.Since(s.lastFlush) >= s.interval {
		return s.flushLocked()
	}
	return nil
}

func (s *JSONSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flushErr := s.flushLocked()
	closeErr := s.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (s *JSONSink) flushLocked() error {
	s.pending = 0
	s.lastFlush = time.Now()
	return s.writer.Flush()
}

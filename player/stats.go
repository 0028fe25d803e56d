package player

import (
	"log/slog"
	"sync"
	"time"
)

// recentErrorLimit bounds how many frame errors Stats keeps.
const recentErrorLimit = 16

// ErrorRecord is one recorded playback error.
type ErrorRecord struct {
	At      time.Time
	Op      string
	Message string
}

// Stats counts playback errors that are not shown to the user and keeps the
// most recent ones.
type Stats struct {
	mu     sync.Mutex
	total  int
	recent []ErrorRecord
	next   int
	logger *slog.Logger
}

// NewStats creates an empty Stats that logs through logger.
func NewStats(logger *slog.Logger) *Stats {
	return &Stats{logger: logger}
}

// Record counts err under op and logs it at warn level.
func (s *Stats) Record(op string, err error) {
	rec := ErrorRecord{At: time.Now(), Op: op, Message: err.Error()}

	s.mu.Lock()
	s.total++
	if len(s.recent) < recentErrorLimit {
		s.recent = append(s.recent, rec)
	} else {
		s.recent[s.next] = rec
	}
	s.next = (s.next + 1) % recentErrorLimit
	total := s.total
	s.mu.Unlock()

	s.logger.Warn("playback error", "op", op, "error", err, "total", total)
}

// Total returns how many errors were recorded.
func (s *Stats) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Recent returns the kept errors, oldest first.
func (s *Stats) Recent() []ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ErrorRecord, 0, len(s.recent))
	if len(s.recent) < recentErrorLimit {
		return append(out, s.recent...)
	}
	out = append(out, s.recent[s.next:]...)
	return append(out, s.recent[:s.next]...)
}

// LogSummary logs the error total and the kept errors, oldest first. It logs
// nothing when no error was recorded.
func (s *Stats) LogSummary(logger *slog.Logger) {
	total := s.Total()
	if total == 0 {
		return
	}
	logger.Info("playback errors during session", "count", total)
	for _, rec := range s.Recent() {
		logger.Info("recent playback error", "at", rec.At, "op", rec.Op, "error", rec.Message)
	}
}

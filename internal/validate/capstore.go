package validate

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// CapStore tracks per-strategy execution counts per trading day, with JSON
// persistence so the daily cap survives a restart.
type CapStore struct {
	mu       sync.RWMutex
	counts   map[string]map[string]int // date -> strategy -> executions
	filePath string
	log      *slog.Logger
}

// NewCapStore creates a CapStore, loading persisted state from filePath.
func NewCapStore(filePath string, log *slog.Logger) *CapStore {
	s := &CapStore{
		counts:   make(map[string]map[string]int),
		filePath: filePath,
		log:      log,
	}
	s.load()
	return s
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// Count returns today's execution count for the strategy.
func (s *CapStore) Count(strategy string, now time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[dayKey(now)][strategy]
}

// Record increments today's execution count for the strategy and persists.
func (s *CapStore) Record(strategy string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := dayKey(now)
	if s.counts[day] == nil {
		s.counts[day] = make(map[string]int)
	}
	s.counts[day][strategy]++
	s.flush()
}

// load reads the JSON file into memory.
func (s *CapStore) load() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return // File doesn't exist yet — start empty.
	}
	var loaded map[string]map[string]int
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.log.Warn("loading strategy cap file", "error", err)
		return
	}
	s.counts = loaded
	s.log.Info("loaded strategy caps", "days", len(loaded))
}

// flush writes the in-memory state to disk. Must be called with mu held.
func (s *CapStore) flush() {
	data, err := json.Marshal(s.counts)
	if err != nil {
		s.log.Error("marshalling strategy caps", "error", err)
		return
	}
	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		s.log.Error("writing strategy cap file", "error", err)
	}
}

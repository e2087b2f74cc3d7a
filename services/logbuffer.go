package services

import (
	"sync"
	"time"

	"poselink/models"
)

const defaultLogCapacity = 5000

// LogIngestionBuffer retains a bounded window of client-reported log
// entries. Eviction is FIFO once the buffer exceeds capacity; entries are
// immutable once stored.
type LogIngestionBuffer struct {
	entries  []models.LogEntry
	capacity int
	mu       sync.Mutex
}

func NewLogIngestionBuffer(capacity int) *LogIngestionBuffer {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &LogIngestionBuffer{
		entries:  make([]models.LogEntry, 0, capacity),
		capacity: capacity,
	}
}

// Append stamps each entry with the server receive time and appends the
// batch in submission order, evicting oldest entries past capacity.
func (b *LogIngestionBuffer) Append(entries []models.LogEntry) {
	if len(entries) == 0 {
		return
	}

	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range entries {
		entry.ServerReceivedAt = now
		b.entries = append(b.entries, entry)
	}
	if excess := len(b.entries) - b.capacity; excess > 0 {
		b.entries = append(b.entries[:0:0], b.entries[excess:]...)
	}
}

// Query returns entries matching all provided filters, in storage order
func (b *LogIngestionBuffer) Query(filter models.LogFilter) []models.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	matched := make([]models.LogEntry, 0)
	for _, entry := range b.entries {
		if filter.Matches(entry) {
			matched = append(matched, entry)
		}
	}
	return matched
}

// Summary counts entries over the live buffer
func (b *LogIngestionBuffer) Summary() models.LogSummary {
	b.mu.Lock()
	defer b.mu.Unlock()

	summary := models.LogSummary{Total: len(b.entries)}
	for _, entry := range b.entries {
		switch entry.Level {
		case models.LevelError, models.LevelCritical:
			summary.ErrorCount++
		case models.LevelWarning:
			summary.WarningCount++
		}
	}
	return summary
}

// Clear empties the buffer and returns the prior entry count
func (b *LogIngestionBuffer) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := len(b.entries)
	b.entries = b.entries[:0]
	return count
}

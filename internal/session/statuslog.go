package session

import (
	"sync"
	"time"

	"github.com/claude/studiotv/internal/models"
	"github.com/google/uuid"
)

const statusLogCap = 20

// StatusLog is the append-only diagnostics log shown beside the TV display,
// capped at the most recent entries, newest first.
type StatusLog struct {
	mu      sync.Mutex
	entries []models.StatusLogEntry
	clock   func() time.Time
}

func NewStatusLog() *StatusLog {
	return &StatusLog{clock: time.Now}
}

func (l *StatusLog) push(level models.LogLevel, message string, details map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := models.StatusLogEntry{
		ID:        uuid.NewString(),
		Timestamp: l.clock(),
		Level:     level,
		Message:   message,
		Details:   details,
	}

	l.entries = append([]models.StatusLogEntry{entry}, l.entries...)
	if len(l.entries) > statusLogCap {
		l.entries = l.entries[:statusLogCap]
	}
}

// Info appends an info entry.
func (l *StatusLog) Info(message string, details map[string]any) {
	l.push(models.LogInfo, message, details)
}

// Warning appends a warning entry.
func (l *StatusLog) Warning(message string, details map[string]any) {
	l.push(models.LogWarning, message, details)
}

// Error appends an error entry.
func (l *StatusLog) Error(message string, details map[string]any) {
	l.push(models.LogError, message, details)
}

// Entries returns a copy of the log, newest first.
func (l *StatusLog) Entries() []models.StatusLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.StatusLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

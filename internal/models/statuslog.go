package models

import "time"

// LogLevel is the severity of a status log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// StatusLogEntry is one entry of the diagnostics panel shown beside the TV
// display. The log is append-only and capped at the most recent 20 entries.
type StatusLogEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package engine

import (
	"sync"
	"time"

	"github.com/ascensum/gen-image-factory/pkg/events"
	"github.com/ascensum/gen-image-factory/pkg/providers"
)

// Event types published by the engine.
const (
	EventProgress    = "progress"
	EventLog         = "log"
	EventError       = "error"
	EventJobComplete = "job-complete"
)

// The engine publishes through the shared broadcaster.
type (
	Event       = events.Event
	Broadcaster = events.Broadcaster
)

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return events.NewBroadcaster()
}

// Log levels kept in the in-memory buffer.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelError = "error"
)

// LogEntry is one line of the job log feed.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

const logBufferCapacity = 1000

// logBuffer is a fixed-capacity ring of recent log entries. The latest error
// is tracked separately so it survives ring eviction.
type logBuffer struct {
	mu        sync.Mutex
	entries   []LogEntry
	start     int
	lastError *LogEntry
}

func newLogBuffer() *logBuffer {
	return &logBuffer{}
}

func (l *logBuffer) append(level, message string) {
	entry := LogEntry{Level: level, Message: message, Time: time.Now().UTC()}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) < logBufferCapacity {
		l.entries = append(l.entries, entry)
	} else {
		l.entries[l.start] = entry
		l.start = (l.start + 1) % logBufferCapacity
	}
	if level == LogLevelError {
		l.lastError = &entry
	}
}

func (l *logBuffer) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.start = 0
	l.lastError = nil
}

// snapshot returns the buffered entries in order. Debug entries are filtered
// out unless verbose output was requested or debug mode is on. The latest
// error is appended once when the filter dropped it.
func (l *logBuffer) snapshot(verbose bool) []LogEntry {
	verbose = verbose || providers.IsDebugMode()
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]LogEntry, 0, len(l.entries))
	errorIncluded := false
	for i := 0; i < len(l.entries); i++ {
		entry := l.entries[(l.start+i)%len(l.entries)]
		if entry.Level == LogLevelDebug && !verbose {
			continue
		}
		out = append(out, entry)
		if l.lastError != nil && entry == *l.lastError {
			errorIncluded = true
		}
	}
	if l.lastError != nil && !errorIncluded {
		out = append(out, *l.lastError)
	}
	return out
}

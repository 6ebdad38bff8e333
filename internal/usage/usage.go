// Package usage records which context routes agents load and ranks the
// on_demand topics by how often they are used.
package usage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
)

// DefaultTopK is the report size when none is given.
const DefaultTopK = 10

// maxLineSize bounds one record line.
const maxLineSize = 1 << 20

// Record is one route load event.
type Record struct {
	Timestamp time.Time `json:"ts"`
	Topic     string    `json:"topic"`
	Path      string    `json:"path,omitempty"`
}

// Log is the append-only JSON-lines usage store.
type Log struct {
	Path string
	Now  func() time.Time
}

// NewLog opens the store at path. The file is created on first append.
func NewLog(path string) *Log {
	return &Log{Path: path, Now: time.Now}
}

// Append writes one record.
func (l *Log) Append(topic, path string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	rec := Record{Timestamp: l.Now().UTC(), Topic: topic, Path: strings.TrimSpace(path)}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling usage record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return fmt.Errorf("creating usage dir: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening usage log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending usage record: %w", err)
	}
	return nil
}

// MaybeAppend appends only when the environment variable env is truthy.
// It reports whether a record was written.
func (l *Log) MaybeAppend(env, topic, path string) (bool, error) {
	if !config.EnvTruthy(env) {
		slog.Debug("usage logging disabled", "env", env)
		return false, nil
	}
	if err := l.Append(topic, path); err != nil {
		return false, err
	}
	return true, nil
}

// Read returns every well-formed record in append order. Blank, partial
// and malformed lines are skipped and counted. A missing file is empty.
func Read(path string) (records []Record, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("opening usage log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Topic == "" {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("reading usage log: %w", err)
	}
	if skipped > 0 {
		slog.Debug("skipped malformed usage records", "path", path, "count", skipped)
	}
	return records, skipped, nil
}

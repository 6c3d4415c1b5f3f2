// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

// Package audit records open-uri authorization decisions.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/oops"
)

// Mode controls which decisions are logged.
type Mode string

// Audit logging modes.
const (
	ModeOff         Mode = "off"          // nothing
	ModeMinimal     Mode = "minimal"      // default denials only
	ModeDenialsOnly Mode = "denials_only" // every denial
	ModeAll         Mode = "all"          // everything
)

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeOff, ModeMinimal, ModeDenialsOnly, ModeAll:
		return m, nil
	case "":
		return ModeOff, nil
	default:
		return "", oops.In("audit").With("mode", s).Errorf("unknown audit mode %q", s)
	}
}

// Kind classifies a decision for mode filtering.
type Kind string

// Decision kinds.
const (
	KindAllow       Kind = "allow"
	KindDeny        Kind = "deny"         // an explicit denial such as a malformed uri
	KindDefaultDeny Kind = "default_deny" // no rule matched
)

// Entry is a single authorization decision.
type Entry struct {
	Client     string    `json:"client,omitempty"`
	Label      string    `json:"label"`
	Package    string    `json:"package,omitempty"`
	URI        string    `json:"uri"`
	Kind       Kind      `json:"kind"`
	Rule       string    `json:"rule"`
	Reason     string    `json:"reason"`
	DurationUS int64     `json:"duration_us"`
	Timestamp  time.Time `json:"timestamp"`
}

// Writer persists audit entries.
type Writer interface {
	WriteSync(ctx context.Context, entry Entry) error
	WriteAsync(entry Entry) error
	Close() error
}

var (
	channelFullCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediabroker_audit_channel_full_total",
		Help: "Total number of times async audit channel was full",
	})

	failuresCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediabroker_audit_failures_total",
		Help: "Total number of audit logging failures",
	}, []string{"reason"})
)

// Logger routes audit entries based on mode and kind. Denials are written
// synchronously; allows are queued for a background writer.
type Logger struct {
	mode      Mode
	writer    Writer
	asyncChan chan Entry
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewLogger creates a Logger and starts its async consumer.
func NewLogger(mode Mode, writer Writer) *Logger {
	logger := &Logger{
		mode:      mode,
		writer:    writer,
		asyncChan: make(chan Entry, 1000),
		stopChan:  make(chan struct{}),
	}

	logger.wg.Add(1)
	go logger.asyncConsumer()

	return logger
}

// Mode returns the configured mode.
func (l *Logger) Mode() Mode { return l.mode }

// Log records entry if the mode selects it. Write failures are counted and
// logged, never returned to the decision path.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	shouldLog, useSync := l.shouldLog(entry.Kind)
	if !shouldLog {
		return
	}

	if useSync {
		if err := l.writer.WriteSync(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "audit write failed",
				"error", err,
				"label", entry.Label,
				"uri", entry.URI,
				"rule", entry.Rule,
			)
			failuresCounter.WithLabelValues("sync_write_failed").Inc()
		}
		return
	}

	select {
	case l.asyncChan <- entry:
	default:
		channelFullCounter.Inc()
	}
}

// shouldLog returns (shouldLog, useSync).
func (l *Logger) shouldLog(kind Kind) (shouldLog, useSync bool) {
	switch l.mode {
	case ModeMinimal:
		return kind == KindDefaultDeny, true
	case ModeDenialsOnly:
		return kind == KindDeny || kind == KindDefaultDeny, true
	case ModeAll:
		if kind == KindAllow {
			return true, false
		}
		return true, true
	default:
		return false, false
	}
}

func (l *Logger) asyncConsumer() {
	defer l.wg.Done()

	for {
		select {
		case entry := <-l.asyncChan:
			l.writeAsync(entry)
		case <-l.stopChan:
			l.drainAsync()
			return
		}
	}
}

func (l *Logger) drainAsync() {
	for {
		select {
		case entry := <-l.asyncChan:
			l.writeAsync(entry)
		default:
			return
		}
	}
}

func (l *Logger) writeAsync(entry Entry) {
	if err := l.writer.WriteAsync(entry); err != nil {
		slog.Error("async audit write failed",
			"error", err,
			"label", entry.Label,
			"uri", entry.URI,
		)
		failuresCounter.WithLabelValues("async_write_failed").Inc()
	}
}

// Close drains queued entries and closes the writer. Safe to call twice.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
		if cerr := l.writer.Close(); cerr != nil {
			err = oops.In("audit").Wrap(cerr)
		}
	})
	return err
}

// FileWriter appends entries as JSON lines to a file.
type FileWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileWriter opens path for appending, creating it with mode 0600.
func NewFileWriter(path string) (*FileWriter, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, oops.In("audit").With("path", path).Wrapf(err, "open audit log")
	}
	return &FileWriter{path: path, file: file}, nil
}

// WriteSync appends entry and syncs the file.
func (w *FileWriter) WriteSync(_ context.Context, entry Entry) error {
	if err := w.write(entry); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return oops.In("audit").With("path", w.path).Wrap(w.file.Sync())
}

// WriteAsync appends entry without syncing.
func (w *FileWriter) WriteAsync(entry Entry) error {
	return w.write(entry)
}

func (w *FileWriter) write(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return oops.In("audit").Wrap(err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return oops.In("audit").With("path", w.path).Errorf("audit log closed")
	}
	if _, err := w.file.Write(data); err != nil {
		return oops.In("audit").With("path", w.path).Wrap(err)
	}
	return nil
}

// Close closes the file.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return oops.In("audit").With("path", w.path).Wrap(err)
}

// SlogWriter writes entries to a structured logger.
type SlogWriter struct {
	Logger *slog.Logger
}

// WriteSync logs entry at warn level.
func (w SlogWriter) WriteSync(ctx context.Context, entry Entry) error {
	w.logger().WarnContext(ctx, "open-uri decision", entryAttrs(entry)...)
	return nil
}

// WriteAsync logs entry at info level.
func (w SlogWriter) WriteAsync(entry Entry) error {
	w.logger().Info("open-uri decision", entryAttrs(entry)...)
	return nil
}

// Close is a no-op.
func (SlogWriter) Close() error { return nil }

func (w SlogWriter) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func entryAttrs(e Entry) []any {
	return []any{
		"client", e.Client,
		"label", e.Label,
		"uri", e.URI,
		"kind", e.Kind,
		"rule", e.Rule,
		"reason", e.Reason,
		"duration_us", e.DurationUS,
	}
}

// Package audit persists engine events to SQLite: one row per scan, one
// row per masked item (with a markdown rendition of the masked card for
// later review). It implements report.Sink, so it plugs into the engine
// like any other sink.
//
// Writes are asynchronous — a slow disk never blocks a scan. When the
// buffer is full, writes fall back to synchronous inserts rather than
// dropping events.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hushreel/spoilveil/idgen"
	"github.com/hushreel/spoilveil/report"
)

// Store is the SQLite-backed audit sink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	newID  idgen.Generator
	sum    *summariser

	ch   chan any // report.Scan or report.Mask
	stop chan struct{}
	done chan struct{}

	closeOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerator sets a custom ID generator for event IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates an audit store over an open database (see Open) and
// starts its flush goroutine.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
		newID:  idgen.Prefixed("evt_", idgen.Default),
		sum:    newSummariser(),
		ch:     make(chan any, 256),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.flushLoop()
	return s
}

// Send queues a scan report for persistence. Always returns nil: audit
// failures are logged, never surfaced to the scan loop.
func (s *Store) Send(_ context.Context, scan report.Scan) error {
	s.put(scan)
	return nil
}

// SendMask queues a mask event for persistence.
func (s *Store) SendMask(_ context.Context, mask report.Mask) error {
	s.put(mask)
	return nil
}

func (s *Store) put(ev any) {
	select {
	case <-s.stop:
		// A late event after shutdown still gets persisted, synchronously.
		s.insert(context.Background(), ev)
		return
	default:
	}
	select {
	case s.ch <- ev:
	default:
		s.logger.Warn("audit: buffer full, sync fallback")
		s.insert(context.Background(), ev)
	}
}

// Close drains pending events and stops the flush goroutine. The ingest
// channel is never closed, so Send/SendMask stay safe to call at any
// point during shutdown. The database handle stays open — the caller
// owns it. Idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func (s *Store) flushLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			// Drain whatever arrived before the stop signal.
			for {
				select {
				case ev := <-s.ch:
					s.insert(context.Background(), ev)
				default:
					return
				}
			}
		case ev := <-s.ch:
			s.insert(context.Background(), ev)
		}
	}
}

func (s *Store) insert(ctx context.Context, ev any) {
	var err error
	switch e := ev.(type) {
	case report.Scan:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO scan_log (
				scan_id, cause, items, masked, already,
				no_title, no_match, duration_ms, created_at
			) VALUES (?,?,?,?,?,?,?,?,?)`,
			e.ID, e.Trigger, e.Items, e.Masked, e.Already,
			e.NoTitle, e.NoMatch, e.Duration.Milliseconds(), e.Timestamp)
	case report.Mask:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO mask_events (
				event_id, scan_id, category, title, card_md, created_at
			) VALUES (?,?,?,?,?,?)`,
			s.newID(), e.ScanID, e.Category, e.Title,
			s.sum.render(e.CardHTML), e.Timestamp)
	}
	if err != nil {
		s.logger.Error("audit: insert failed", "error", err)
	}
}

// ScanRow is one persisted scan summary.
type ScanRow struct {
	ScanID     string `json:"scan_id"`
	Cause      string `json:"cause"`
	Items      int    `json:"items"`
	Masked     int    `json:"masked"`
	Already    int    `json:"already_masked"`
	NoTitle    int    `json:"no_title"`
	NoMatch    int    `json:"no_match"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  int64  `json:"created_at"`
}

// MaskRow is one persisted mask event.
type MaskRow struct {
	EventID   string `json:"event_id"`
	ScanID    string `json:"scan_id"`
	Category  string `json:"category"`
	Title     string `json:"title"`
	CardMD    string `json:"card_md"`
	CreatedAt int64  `json:"created_at"`
}

// RecentScans returns the newest scan summaries, most recent first.
func (s *Store) RecentScans(ctx context.Context, limit int) ([]ScanRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT scan_id, cause, items, masked, already, no_title, no_match,
		       duration_ms, created_at
		FROM scan_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query scans: %w", err)
	}
	defer rows.Close()

	var out []ScanRow
	for rows.Next() {
		var r ScanRow
		if err := rows.Scan(&r.ScanID, &r.Cause, &r.Items, &r.Masked,
			&r.Already, &r.NoTitle, &r.NoMatch, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentMasks returns the newest mask events, most recent first.
func (s *Store) RecentMasks(ctx context.Context, limit int) ([]MaskRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, scan_id, category, title, card_md, created_at
		FROM mask_events ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query masks: %w", err)
	}
	defer rows.Close()

	var out []MaskRow
	for rows.Next() {
		var r MaskRow
		if err := rows.Scan(&r.EventID, &r.ScanID, &r.Category,
			&r.Title, &r.CardMD, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: mask row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Cleanup deletes rows older than the retention period. Zero or negative
// retention means keep everything.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-retention).UnixMilli()
	for _, table := range []string{"scan_log", "mask_events"} {
		q := "DELETE FROM " + table + " WHERE created_at < ?"
		if _, err := s.db.ExecContext(ctx, q, cutoff); err != nil {
			return fmt.Errorf("audit: cleanup %s: %w", table, err)
		}
	}
	return nil
}

// Package veil wires the full masking engine: keyword set, annotator,
// reconciler, report sinks, audit store and the live browser session. It
// is the surface cmd/spoilveil and the MCP tools program against.
package veil

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hushreel/spoilveil/annotate"
	"github.com/hushreel/spoilveil/audit"
	"github.com/hushreel/spoilveil/browse"
	"github.com/hushreel/spoilveil/dom"
	"github.com/hushreel/spoilveil/keyword"
	"github.com/hushreel/spoilveil/reconcile"
	"github.com/hushreel/spoilveil/report"
)

// Engine owns the assembled masking pipeline for one site.
type Engine struct {
	cfg    *Config
	logger *slog.Logger

	keys   *keyword.Set
	ann    *annotate.Annotator
	router *report.Router
	db     *sql.DB
	store  *audit.Store // nil when audit is disabled

	mu      sync.Mutex
	session *browse.Session
	rec     *reconcile.Reconciler
	cancel  context.CancelFunc
	runDone chan struct{}
	closed  bool
}

// New assembles an Engine from configuration. It opens the audit store
// (when configured) but does not touch the browser; call Start for that.
func New(cfg *Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	keys, err := keyword.NewSet(cfg.Keywords)
	if err != nil {
		return nil, fmt.Errorf("veil: keywords: %w", err)
	}

	ann := annotate.New(annotate.Config{
		Keywords:      keys,
		TitleSelector: cfg.Site.TitleSelector,
		ThumbSelector: cfg.Site.ThumbSelector,
		Sentinel:      cfg.Site.Sentinel,
		OverlayLabel:  cfg.Site.OverlayLabel,
	})

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		keys:   keys,
		ann:    ann,
	}

	var sinks []report.Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, report.NewStdout(os.Stdout))
		case "webhook":
			sinks = append(sinks, report.NewWebhook(sc.URL, report.WithWebhookLogger(logger)))
		}
	}

	if cfg.Audit.DBPath != "" {
		db, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			return nil, fmt.Errorf("veil: open audit db: %w", err)
		}
		e.db = db
		e.store = audit.NewStore(db, audit.WithLogger(logger))
		sinks = append(sinks, e.store)
	}

	e.router = report.NewRouter(logger, sinks...)
	return e, nil
}

// Start opens the browser, injects the observer, and runs the reconcile
// loop in the background until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("veil: engine is stopped")
	}
	if e.session != nil {
		return fmt.Errorf("veil: engine already started")
	}

	session, err := browse.Open(ctx, browse.Config{
		URL:             e.cfg.Site.URL,
		RemoteURL:       e.cfg.Browser.Remote,
		Headful:         e.cfg.Browser.Headful,
		NavigationEvent: e.cfg.Site.NavigationEvent,
		Logger:          e.logger,
	})
	if err != nil {
		return err
	}

	rec := e.newReconciler(session.Tree())

	runCtx, cancel := context.WithCancel(ctx)

	err = session.Subscribe(runCtx, browse.Events{
		OnMutation: func(added, removed int) {
			rec.Mutations(reconcile.Batch{Added: added, Removed: removed})
		},
		OnNavigate: func(string) {
			rec.NavigationFinished()
		},
	})
	if err != nil {
		cancel()
		session.Close()
		return err
	}

	e.session = session
	e.rec = rec
	e.cancel = cancel
	e.runDone = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		rec.Run(runCtx)
	}(e.runDone)

	if e.store != nil && e.cfg.Audit.Retention > 0 {
		go e.auditCleanupLoop(runCtx)
	}

	e.logger.Info("veil: engine started",
		"url", e.cfg.Site.URL,
		"keywords", e.keys.Len(),
		"categories", len(e.cfg.Site.Categories))
	return nil
}

// Stop stops the reconcile loop, closes the browser session, and flushes
// sinks and the audit store.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	// Let any in-flight scan finish before its sinks are closed.
	if e.runDone != nil {
		<-e.runDone
		e.runDone = nil
	}
	if e.session != nil {
		if err := e.session.Close(); err != nil {
			e.logger.Warn("veil: close session", "error", err)
		}
		e.session = nil
	}
	e.rec = nil

	var firstErr error
	if err := e.router.Close(); err != nil {
		firstErr = err
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.db = nil
		e.store = nil
	}
	return firstErr
}

func (e *Engine) newReconciler(tree dom.Tree) *reconcile.Reconciler {
	return reconcile.New(reconcile.Config{
		Tree:        tree,
		Annotator:   e.ann,
		Categories:  e.cfg.categories(),
		SettleDelay: e.cfg.Scan.SettleDelay,
		Damping:     e.cfg.Scan.Damping,
		Sink:        e.router,
		Logger:      e.logger,
	})
}

// ScanAll runs one full scan of the live page immediately. It fails when
// the engine is not started.
func (e *Engine) ScanAll(ctx context.Context) (report.Scan, error) {
	e.mu.Lock()
	rec := e.rec
	e.mu.Unlock()

	if rec == nil {
		return report.Scan{}, fmt.Errorf("veil: engine not started")
	}
	return rec.ScanAll(ctx), nil
}

// ScrubHTML masks an HTML document offline: it parses src, runs one full
// scan against the in-memory tree, and returns the rewritten document.
// Scan and mask events flow to the configured sinks like live scans do.
func (e *Engine) ScrubHTML(ctx context.Context, src string) (string, report.Scan, error) {
	doc, err := dom.Parse(src)
	if err != nil {
		return "", report.Scan{}, fmt.Errorf("veil: parse document: %w", err)
	}

	scan := e.newReconciler(doc).ScanAll(ctx)

	out, err := doc.Render()
	if err != nil {
		return "", report.Scan{}, fmt.Errorf("veil: render document: %w", err)
	}
	return out, scan, nil
}

// Stats returns the live reconciler's counters, or zeros before Start.
func (e *Engine) Stats() reconcile.Stats {
	e.mu.Lock()
	rec := e.rec
	e.mu.Unlock()

	if rec == nil {
		return reconcile.Stats{}
	}
	return rec.Stats()
}

// Keywords returns the configured keyword list.
func (e *Engine) Keywords() []string { return e.keys.Words() }

// Sentinel returns the replacement title applied to masked items.
func (e *Engine) Sentinel() string { return e.ann.Sentinel() }

// Store returns the audit store, or nil when audit is disabled.
func (e *Engine) Store() *audit.Store { return e.store }

// CleanupAudit deletes audit rows older than the configured retention.
// Start runs this periodically; it is exported for one-off invocations.
func (e *Engine) CleanupAudit(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.Cleanup(ctx, e.cfg.Audit.Retention)
}

// auditCleanupLoop enforces the retention period: one pass at startup,
// then one per hour until ctx is cancelled.
func (e *Engine) auditCleanupLoop(ctx context.Context) {
	run := func() {
		if err := e.CleanupAudit(ctx); err != nil && ctx.Err() == nil {
			e.logger.Warn("veil: audit cleanup", "error", err)
		}
	}
	run()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

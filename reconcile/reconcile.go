// Package reconcile owns the scan lifecycle: it enumerates content items
// across a fixed set of container categories, runs the annotator on each,
// and reacts to external change signals (mutation batches, navigation
// events) by rescanning.
//
// Scans are serial. Run processes triggers in arrival order, each scan to
// completion before the next begins; nothing yields mid-scan. The
// reconciler caches nothing between passes — every pass re-derives all
// items from the live tree, so removed nodes can never dangle.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hushreel/spoilveil/annotate"
	"github.com/hushreel/spoilveil/dom"
	"github.com/hushreel/spoilveil/idgen"
	"github.com/hushreel/spoilveil/report"
)

// Trigger names the cause of a scan.
type Trigger string

const (
	TriggerInitial    Trigger = "initial"
	TriggerMutation   Trigger = "mutation"
	TriggerNavigation Trigger = "navigation"
	TriggerSettle     Trigger = "settle"
	TriggerManual     Trigger = "manual"
)

// dampMaxWindows caps how long a sustained mutation storm can postpone a
// damped scan: at most this many damping windows after the burst began.
const dampMaxWindows = 4

// Config for creating a Reconciler.
type Config struct {
	Tree       dom.Tree
	Annotator  *annotate.Annotator
	Categories []Category // default DefaultCategories()

	// SettleDelay schedules exactly one extra scan this long after Run
	// starts, catching content that renders after the initial pass but
	// before any mutation or navigation signal fires. Default: 2s.
	SettleDelay time.Duration

	// Damping, when positive, coalesces bursts of mutation triggers into
	// one scan per quiet window; a storm that never goes quiet still
	// forces a scan after dampMaxWindows windows. Zero (the default)
	// preserves the strict one-scan-per-batch contract.
	Damping time.Duration

	Sink   report.Sink // optional
	Logger *slog.Logger
}

// Reconciler drives scans over one tree. Create with New, start with Run.
type Reconciler struct {
	tree       dom.Tree
	ann        *annotate.Annotator
	categories []Category
	settle     time.Duration
	damping    time.Duration
	sink       report.Sink
	logger     *slog.Logger
	newScanID  idgen.Generator
	newMaskID  idgen.Generator

	// scanMu serialises scan execution between the Run loop and direct
	// ScanAll callers (MCP, admin API).
	scanMu sync.Mutex

	triggerCh chan Trigger

	// Counters, exported via Stats.
	scans     atomic.Int64
	masked    atomic.Int64
	coalesced atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Scans       int64 `json:"scans"`
	ItemsMasked int64 `json:"items_masked"`
	Coalesced   int64 `json:"coalesced_triggers"`
}

// New creates a Reconciler. It does not scan until Run is called.
func New(cfg Config) *Reconciler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}

	return &Reconciler{
		tree:       cfg.Tree,
		ann:        cfg.Annotator,
		categories: cfg.Categories,
		settle:     cfg.SettleDelay,
		damping:    cfg.Damping,
		sink:       cfg.Sink,
		logger:     cfg.Logger,
		newScanID:  idgen.Prefixed("scan_", idgen.Default),
		newMaskID:  idgen.Prefixed("mask_", idgen.Default),
		triggerCh:  make(chan Trigger, 64),
	}
}

// Stats returns the current counters.
func (r *Reconciler) Stats() Stats {
	return Stats{
		Scans:       r.scans.Load(),
		ItemsMasked: r.masked.Load(),
		Coalesced:   r.coalesced.Load(),
	}
}

// Mutations is the change-notification entry point. A batch with at least
// one added node queues one scan; batches of pure removals are ignored —
// removal can never create an unmasked spoiler.
func (r *Reconciler) Mutations(b Batch) {
	if !b.HasAdditions() {
		return
	}
	r.enqueue(TriggerMutation)
}

// NavigationFinished signals an in-place page transition. The payload of
// the host event carries nothing this engine consumes.
func (r *Reconciler) NavigationFinished() {
	r.enqueue(TriggerNavigation)
}

// enqueue hands a trigger to the Run loop. When the queue is full a scan
// is already pending that will observe the same tree state, so the
// trigger is dropped and counted.
func (r *Reconciler) enqueue(t Trigger) {
	select {
	case r.triggerCh <- t:
	default:
		r.coalesced.Add(1)
		r.logger.Debug("reconcile: trigger coalesced", "trigger", t)
	}
}

// Run executes the scan lifecycle until ctx is cancelled: an immediate
// initial scan, one delayed settle scan, then one scan per queued trigger,
// strictly in arrival order.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("reconcile: started",
		"categories", len(r.categories), "settle", r.settle)

	r.runScan(ctx, TriggerInitial)

	settleTimer := time.NewTimer(r.settle)
	defer settleTimer.Stop()
	settleC := settleTimer.C

	// Damping timer, armed only while mutation triggers are being damped.
	// dampDeadline bounds the coalescing: a storm of triggers arriving
	// faster than the window keeps resetting the timer, but never past
	// the deadline set by the first trigger of the burst.
	var dampTimer *time.Timer
	var dampC <-chan time.Time
	var dampDeadline time.Time
	defer func() {
		if dampTimer != nil {
			dampTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconcile: stopped")
			return

		case trig := <-r.triggerCh:
			if trig == TriggerMutation && r.damping > 0 {
				now := time.Now()
				if dampC == nil {
					dampDeadline = now.Add(r.damping * dampMaxWindows)
				}
				wait := r.damping
				if remain := dampDeadline.Sub(now); remain < wait {
					wait = remain
				}
				if wait < 0 {
					wait = 0
				}
				if dampTimer != nil {
					dampTimer.Stop()
				}
				dampTimer = time.NewTimer(wait)
				dampC = dampTimer.C
				continue
			}
			r.runScan(ctx, trig)

		case <-dampC:
			dampC = nil
			r.runScan(ctx, TriggerMutation)

		case <-settleC:
			// The one-shot backstop. Fires exactly once, unconditionally,
			// and is never rescheduled.
			settleC = nil
			r.runScan(ctx, TriggerSettle)
		}
	}
}

// ScanAll runs one full pass synchronously and returns its report. Safe
// to call while Run is active; passes never overlap.
func (r *Reconciler) ScanAll(ctx context.Context) report.Scan {
	return r.runScan(ctx, TriggerManual)
}

func (r *Reconciler) runScan(ctx context.Context, trig Trigger) report.Scan {
	r.scanMu.Lock()
	defer r.scanMu.Unlock()

	start := time.Now()
	scan := report.Scan{
		ID:      r.newScanID(),
		Trigger: string(trig),
		ByCat:   make(map[string]int, len(r.categories)),
	}

	for _, cat := range r.categories {
		items := r.tree.Query(cat.Selector)
		scan.ByCat[cat.Name] = len(items)
		scan.Items += len(items)

		for _, item := range items {
			r.annotateOne(ctx, cat, item, &scan)
		}
	}

	scan.Duration = time.Since(start)
	scan.Timestamp = time.Now().UnixMilli()

	r.scans.Add(1)
	r.masked.Add(int64(scan.Masked))

	r.logger.Debug("reconcile: scan complete",
		"id", scan.ID, "trigger", trig, "items", scan.Items,
		"masked", scan.Masked, "duration", scan.Duration)

	if r.sink != nil {
		if err := r.sink.Send(ctx, scan); err != nil {
			r.logger.Warn("reconcile: send scan report failed", "error", err)
		}
	}
	return scan
}

func (r *Reconciler) annotateOne(ctx context.Context, cat Category, item dom.Node, scan *report.Scan) {
	// Title captured before annotation — afterwards it may be the sentinel.
	var title string
	if r.sink != nil {
		title = r.ann.TitleOf(item)
	}

	switch r.ann.Annotate(item) {
	case annotate.OutcomeMasked:
		scan.Masked++
		if r.sink != nil {
			mask := report.Mask{
				ID:        r.newMaskID(),
				ScanID:    scan.ID,
				Category:  cat.Name,
				Title:     title,
				CardHTML:  item.OuterHTML(),
				Timestamp: time.Now().UnixMilli(),
			}
			if err := r.sink.SendMask(ctx, mask); err != nil {
				r.logger.Warn("reconcile: send mask event failed", "error", err)
			}
		}
	case annotate.OutcomeAlreadyMasked:
		scan.Already++
	case annotate.OutcomeNoTitle:
		scan.NoTitle++
	case annotate.OutcomeNoMatch:
		scan.NoMatch++
	}
}

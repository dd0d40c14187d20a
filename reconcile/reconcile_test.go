package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/hushreel/spoilveil/annotate"
	"github.com/hushreel/spoilveil/dom"
	"github.com/hushreel/spoilveil/keyword"
	"github.com/hushreel/spoilveil/report"
)

const pageHTML = `<html><body>
<ytd-video-renderer>
  <ytd-thumbnail><img src="a.jpg"></ytd-thumbnail>
  <a id="video-title">Season Finale Recap</a>
</ytd-video-renderer>
<ytd-grid-video-renderer>
  <ytd-thumbnail><img src="b.jpg"></ytd-thumbnail>
  <a id="video-title">Unrelated Video</a>
</ytd-grid-video-renderer>
<ytd-compact-video-renderer>
  <a id="video-title">Finale reaction</a>
</ytd-compact-video-renderer>
</body></html>`

func newReconciler(t *testing.T, src string, cfg Config) (*Reconciler, *dom.Document) {
	t.Helper()
	doc, err := dom.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	set, err := keyword.NewSet([]string{"finale"})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	cfg.Tree = doc
	cfg.Annotator = annotate.New(annotate.Config{Keywords: set})
	return New(cfg), doc
}

func TestScanAll_EndToEnd(t *testing.T) {
	r, doc := newReconciler(t, pageHTML, Config{})
	ctx := context.Background()

	scan := r.ScanAll(ctx)
	if scan.Items != 3 {
		t.Errorf("items: got %d, want 3", scan.Items)
	}
	if scan.Masked != 2 {
		t.Errorf("masked: got %d, want 2", scan.Masked)
	}
	if scan.NoMatch != 1 {
		t.Errorf("no_match: got %d, want 1", scan.NoMatch)
	}

	// Masked item: title is the sentinel, exactly one overlay child.
	item := doc.Query("ytd-video-renderer")[0]
	title, _ := item.QueryOne("#video-title")
	if got := title.Text(); got != "Spoiler blocked" {
		t.Errorf("title: got %q, want sentinel", got)
	}
	thumb, _ := item.QueryOne("ytd-thumbnail")
	if got := len(thumb.Query("." + annotate.OverlayClass)); got != 1 {
		t.Errorf("overlay count: got %d, want 1", got)
	}

	// Rescan: nothing changes, same overlay instance count.
	scan2 := r.ScanAll(ctx)
	if scan2.Masked != 0 {
		t.Errorf("rescan masked: got %d, want 0", scan2.Masked)
	}
	if scan2.Already != 2 {
		t.Errorf("rescan already_masked: got %d, want 2", scan2.Already)
	}
	if got := len(thumb.Query("." + annotate.OverlayClass)); got != 1 {
		t.Errorf("overlay count after rescan: got %d, want 1", got)
	}
}

func TestScanAll_CategoryOrderIsDeterministic(t *testing.T) {
	r, _ := newReconciler(t, pageHTML, Config{})
	scan := r.ScanAll(context.Background())

	want := map[string]int{
		"primary": 1, "grid": 1, "compact": 1,
		"playlist": 0, "shelf": 0, "related": 0,
	}
	for cat, n := range want {
		if scan.ByCat[cat] != n {
			t.Errorf("category %s: got %d items, want %d", cat, scan.ByCat[cat], n)
		}
	}
}

func TestScanAll_MissingContainersAreEmptyNotFatal(t *testing.T) {
	r, _ := newReconciler(t, `<html><body><p>nothing here</p></body></html>`, Config{})
	scan := r.ScanAll(context.Background())
	if scan.Items != 0 {
		t.Errorf("items: got %d, want 0", scan.Items)
	}
}

// startRun launches the reconciler loop and returns its stop function.
func startRun(r *Reconciler) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	return cancel
}

func TestRun_OneScanPerMutationBatch(t *testing.T) {
	scans := make(chan report.Scan, 16)
	sink := report.NewCallback(func(_ context.Context, s report.Scan) error {
		scans <- s
		return nil
	}, nil)

	r, _ := newReconciler(t, pageHTML, Config{
		Sink:        sink,
		SettleDelay: time.Hour, // keep the backstop out of this test
	})
	cancel := startRun(r)
	defer cancel()

	// Initial scan.
	waitTrigger(t, scans, "initial")

	// One batch with five added nodes → exactly one scan.
	r.Mutations(Batch{Added: 5})
	waitTrigger(t, scans, "mutation")
	assertNoScan(t, scans)

	// A batch of pure removals never triggers.
	r.Mutations(Batch{Removed: 3})
	assertNoScan(t, scans)

	// Navigation triggers once.
	r.NavigationFinished()
	waitTrigger(t, scans, "navigation")
	assertNoScan(t, scans)
}

func TestRun_SettleScanFiresExactlyOnce(t *testing.T) {
	scans := make(chan report.Scan, 16)
	sink := report.NewCallback(func(_ context.Context, s report.Scan) error {
		scans <- s
		return nil
	}, nil)

	r, _ := newReconciler(t, pageHTML, Config{
		Sink:        sink,
		SettleDelay: 30 * time.Millisecond,
	})
	cancel := startRun(r)
	defer cancel()

	waitTrigger(t, scans, "initial")
	waitTrigger(t, scans, "settle")
	assertNoScan(t, scans)
}

func TestRun_DampingCoalescesBursts(t *testing.T) {
	scans := make(chan report.Scan, 16)
	sink := report.NewCallback(func(_ context.Context, s report.Scan) error {
		scans <- s
		return nil
	}, nil)

	r, _ := newReconciler(t, pageHTML, Config{
		Sink:        sink,
		SettleDelay: time.Hour,
		Damping:     50 * time.Millisecond,
	})
	cancel := startRun(r)
	defer cancel()

	waitTrigger(t, scans, "initial")

	// A storm of batches within the damping window → one scan.
	for i := 0; i < 10; i++ {
		r.Mutations(Batch{Added: 1})
	}
	waitTrigger(t, scans, "mutation")
	assertNoScan(t, scans)
}

func TestRun_DampingBoundedUnderSustainedStorm(t *testing.T) {
	scans := make(chan report.Scan, 16)
	sink := report.NewCallback(func(_ context.Context, s report.Scan) error {
		scans <- s
		return nil
	}, nil)

	r, _ := newReconciler(t, pageHTML, Config{
		Sink:        sink,
		SettleDelay: time.Hour,
		Damping:     50 * time.Millisecond,
	})
	cancel := startRun(r)
	defer cancel()

	waitTrigger(t, scans, "initial")

	// Batches arriving faster than the damping window, without pause.
	// The deadline bound must force a scan mid-storm instead of letting
	// each batch push the timer out indefinitely.
	stormDone := make(chan struct{})
	go func() {
		defer close(stormDone)
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		end := time.After(600 * time.Millisecond)
		for {
			select {
			case <-tick.C:
				r.Mutations(Batch{Added: 1})
			case <-end:
				return
			}
		}
	}()

	select {
	case s := <-scans:
		if s.Trigger != "mutation" {
			t.Fatalf("scan trigger: got %q, want %q", s.Trigger, "mutation")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("no scan fired during a sustained mutation storm")
	}
	<-stormDone
}

func TestStats(t *testing.T) {
	r, _ := newReconciler(t, pageHTML, Config{})
	r.ScanAll(context.Background())
	r.ScanAll(context.Background())

	st := r.Stats()
	if st.Scans != 2 {
		t.Errorf("scans: got %d, want 2", st.Scans)
	}
	if st.ItemsMasked != 2 {
		t.Errorf("items_masked: got %d, want 2 (second pass masks nothing)", st.ItemsMasked)
	}
}

func TestMaskEventsCarryOriginalTitle(t *testing.T) {
	var masks []report.Mask
	sink := report.NewCallback(nil, func(_ context.Context, m report.Mask) error {
		masks = append(masks, m)
		return nil
	})

	r, _ := newReconciler(t, pageHTML, Config{Sink: sink})
	scan := r.ScanAll(context.Background())

	if len(masks) != scan.Masked {
		t.Fatalf("mask events: got %d, want %d", len(masks), scan.Masked)
	}
	if masks[0].Title != "Season Finale Recap" {
		t.Errorf("mask title: got %q, want the pre-mask title", masks[0].Title)
	}
	if masks[0].ScanID != scan.ID {
		t.Errorf("mask scan ref: got %q, want %q", masks[0].ScanID, scan.ID)
	}
	if masks[0].Category != "primary" {
		t.Errorf("mask category: got %q, want %q", masks[0].Category, "primary")
	}
}

func waitTrigger(t *testing.T, scans <-chan report.Scan, trigger string) {
	t.Helper()
	select {
	case s := <-scans:
		if s.Trigger != trigger {
			t.Fatalf("scan trigger: got %q, want %q", s.Trigger, trigger)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q scan", trigger)
	}
}

func assertNoScan(t *testing.T, scans <-chan report.Scan) {
	t.Helper()
	select {
	case s := <-scans:
		t.Fatalf("unexpected extra scan: trigger %q", s.Trigger)
	case <-time.After(150 * time.Millisecond):
	}
}

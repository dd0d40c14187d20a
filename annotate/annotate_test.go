package annotate

import (
	"testing"

	"github.com/hushreel/spoilveil/dom"
	"github.com/hushreel/spoilveil/keyword"
)

func newAnnotator(t *testing.T, words ...string) *Annotator {
	t.Helper()
	set, err := keyword.NewSet(words)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return New(Config{Keywords: set})
}

func itemFrom(t *testing.T, src string) dom.Node {
	t.Helper()
	doc, err := dom.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	items := doc.Query("ytd-video-renderer")
	if len(items) != 1 {
		t.Fatalf("test fixture: got %d items, want 1", len(items))
	}
	return items[0]
}

const fullItem = `<ytd-video-renderer>
  <ytd-thumbnail><img src="a.jpg"></ytd-thumbnail>
  <a id="video-title">Season Finale Recap</a>
</ytd-video-renderer>`

func TestAnnotate_MasksMatchingItem(t *testing.T) {
	a := newAnnotator(t, "finale")
	item := itemFrom(t, fullItem)

	if got := a.Annotate(item); got != OutcomeMasked {
		t.Fatalf("Annotate: got %s, want %s", got, OutcomeMasked)
	}

	title, _ := item.QueryOne("#video-title")
	if got := title.Text(); got != a.Sentinel() {
		t.Errorf("title: got %q, want sentinel %q", got, a.Sentinel())
	}

	thumb, _ := item.QueryOne("ytd-thumbnail")
	if got := len(thumb.Query("." + OverlayClass)); got != 1 {
		t.Errorf("overlay count: got %d, want 1", got)
	}
	if got := thumb.Style("position"); got != "relative" {
		t.Errorf("thumbnail position: got %q, want %q", got, "relative")
	}
	if got := item.Attr(MarkerAttr); got != "masked" {
		t.Errorf("marker attr: got %q, want %q", got, "masked")
	}
}

func TestAnnotate_Idempotent(t *testing.T) {
	a := newAnnotator(t, "finale")
	item := itemFrom(t, fullItem)

	if got := a.Annotate(item); got != OutcomeMasked {
		t.Fatalf("first pass: got %s, want %s", got, OutcomeMasked)
	}

	thumb, _ := item.QueryOne("ytd-thumbnail")
	beforeHTML := thumb.OuterHTML()

	// Second pass: zero mutations.
	if got := a.Annotate(item); got != OutcomeAlreadyMasked {
		t.Fatalf("second pass: got %s, want %s", got, OutcomeAlreadyMasked)
	}
	if got := len(thumb.Query("." + OverlayClass)); got != 1 {
		t.Errorf("overlay count after rescan: got %d, want 1", got)
	}
	if thumb.OuterHTML() != beforeHTML {
		t.Error("thumbnail subtree mutated on rescan")
	}
	title, _ := item.QueryOne("#video-title")
	if got := title.Text(); got != a.Sentinel() {
		t.Errorf("title after rescan: got %q, want sentinel", got)
	}
}

func TestAnnotate_NoMatchLeavesItemUntouched(t *testing.T) {
	a := newAnnotator(t, "finale")
	item := itemFrom(t, `<ytd-video-renderer>
	  <ytd-thumbnail></ytd-thumbnail>
	  <a id="video-title">Cooking Stream</a>
	</ytd-video-renderer>`)

	if got := a.Annotate(item); got != OutcomeNoMatch {
		t.Fatalf("Annotate: got %s, want %s", got, OutcomeNoMatch)
	}
	title, _ := item.QueryOne("#video-title")
	if got := title.Text(); got != "Cooking Stream" {
		t.Errorf("title: got %q, want untouched", got)
	}

	// Stays eligible: a keyword list containing the title later would
	// mask it, and meanwhile every rescan repeats no_match.
	if got := a.Annotate(item); got != OutcomeNoMatch {
		t.Errorf("rescan: got %s, want %s", got, OutcomeNoMatch)
	}
}

func TestAnnotate_MissingTitle(t *testing.T) {
	a := newAnnotator(t, "finale")

	tests := []struct {
		name string
		src  string
	}{
		{"no title slot", `<ytd-video-renderer><ytd-thumbnail></ytd-thumbnail></ytd-video-renderer>`},
		{"empty title", `<ytd-video-renderer><a id="video-title"></a></ytd-video-renderer>`},
		{"whitespace title", "<ytd-video-renderer><a id=\"video-title\">  \n\t </a></ytd-video-renderer>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := itemFrom(t, tt.src)
			if got := a.Annotate(item); got != OutcomeNoTitle {
				t.Errorf("Annotate: got %s, want %s", got, OutcomeNoTitle)
			}
		})
	}
}

func TestAnnotate_PartialMaskWithoutThumbnailIsTerminal(t *testing.T) {
	a := newAnnotator(t, "finale")
	item := itemFrom(t, `<ytd-video-renderer>
	  <a id="video-title">Season Finale Recap</a>
	</ytd-video-renderer>`)

	// Title overwrite happens even without a thumbnail slot.
	if got := a.Annotate(item); got != OutcomeMasked {
		t.Fatalf("Annotate: got %s, want %s", got, OutcomeMasked)
	}
	title, _ := item.QueryOne("#video-title")
	if got := title.Text(); got != a.Sentinel() {
		t.Errorf("title: got %q, want sentinel", got)
	}

	// Title-only masking counts as done: rescans short-circuit on the
	// sentinel half alone and never re-run the matcher.
	if got := a.Annotate(item); got != OutcomeAlreadyMasked {
		t.Errorf("rescan: got %s, want %s", got, OutcomeAlreadyMasked)
	}
}

func TestAnnotate_RepairsMissingOverlay(t *testing.T) {
	a := newAnnotator(t, "finale")
	// Sentinel title already in place but the thumbnail rendered late and
	// carries no overlay yet.
	item := itemFrom(t, `<ytd-video-renderer>
	  <ytd-thumbnail><img src="a.jpg"></ytd-thumbnail>
	  <a id="video-title">Spoiler blocked</a>
	</ytd-video-renderer>`)

	if got := a.Annotate(item); got != OutcomeMasked {
		t.Fatalf("repair pass: got %s, want %s", got, OutcomeMasked)
	}
	thumb, _ := item.QueryOne("ytd-thumbnail")
	if got := len(thumb.Query("." + OverlayClass)); got != 1 {
		t.Errorf("overlay count: got %d, want 1", got)
	}

	if got := a.Annotate(item); got != OutcomeAlreadyMasked {
		t.Errorf("pass after repair: got %s, want %s", got, OutcomeAlreadyMasked)
	}
}

func TestAnnotate_MarkerAttrAloneShortCircuits(t *testing.T) {
	a := newAnnotator(t, "finale")
	// Item carries the processed marker but a fresh (rewritten) title.
	// The marker wins: no re-match, no mutation.
	item := itemFrom(t, `<ytd-video-renderer data-spoilveil="masked">
	  <a id="video-title">Season Finale Recap</a>
	</ytd-video-renderer>`)

	if got := a.Annotate(item); got != OutcomeAlreadyMasked {
		t.Fatalf("Annotate: got %s, want %s", got, OutcomeAlreadyMasked)
	}
	title, _ := item.QueryOne("#video-title")
	if got := title.Text(); got != "Season Finale Recap" {
		t.Errorf("title: got %q, want untouched", got)
	}
}

func TestAnnotate_PreservesIntentionalPositioning(t *testing.T) {
	a := newAnnotator(t, "finale")
	item := itemFrom(t, `<ytd-video-renderer>
	  <ytd-thumbnail style="position: sticky"><img src="a.jpg"></ytd-thumbnail>
	  <a id="video-title">Finale</a>
	</ytd-video-renderer>`)

	if got := a.Annotate(item); got != OutcomeMasked {
		t.Fatalf("Annotate: got %s, want %s", got, OutcomeMasked)
	}
	thumb, _ := item.QueryOne("ytd-thumbnail")
	if got := thumb.Style("position"); got != "sticky" {
		t.Errorf("position clobbered: got %q, want %q", got, "sticky")
	}
}

func TestNew_SanitisesOverlayLabel(t *testing.T) {
	set, err := keyword.NewSet([]string{"finale"})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	a := New(Config{Keywords: set, OverlayLabel: `<script>alert(1)</script>HIDDEN`})

	item := itemFrom(t, fullItem)
	if got := a.Annotate(item); got != OutcomeMasked {
		t.Fatalf("Annotate: got %s, want %s", got, OutcomeMasked)
	}
	thumb, _ := item.QueryOne("ytd-thumbnail")
	if scripts := thumb.Query("script"); len(scripts) != 0 {
		t.Errorf("script survived sanitisation: %d nodes", len(scripts))
	}
	ov, _ := thumb.QueryOne("." + OverlayClass)
	if got := ov.Text(); got != "HIDDEN" {
		t.Errorf("overlay label: got %q, want %q", got, "HIDDEN")
	}
}

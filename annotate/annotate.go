// Package annotate applies the per-item masking state machine.
//
// Each content item is inspected independently: if its title matches the
// keyword set, the title is overwritten with a fixed sentinel and the
// thumbnail is covered with an opaque overlay. The whole operation is
// idempotent — an already-masked item is recognised and skipped before the
// matcher ever runs, so repeated scan passes cause no flicker and no
// re-triggering.
package annotate

import (
	"fmt"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hushreel/spoilveil/dom"
	"github.com/hushreel/spoilveil/keyword"
)

// Outcome is the result of annotating one item. Every condition the
// annotator can meet is a normal outcome, never an error.
type Outcome string

const (
	// OutcomeMasked — the item matched and was masked this pass (or a
	// missing overlay was repaired on an already-sentinelled title).
	OutcomeMasked Outcome = "masked"

	// OutcomeAlreadyMasked — the idempotence guard fired; zero mutations.
	OutcomeAlreadyMasked Outcome = "already_masked"

	// OutcomeNoTitle — no title slot, or its text is empty.
	OutcomeNoTitle Outcome = "no_title"

	// OutcomeNoMatch — the title matched no keyword. The item stays
	// eligible for every future pass.
	OutcomeNoMatch Outcome = "no_match"
)

const (
	// MarkerAttr is the out-of-band processed marker set on the item
	// container at mask time. The title-sentinel check below remains as
	// a fallback for trees that strip unknown attributes.
	MarkerAttr = "data-spoilveil"

	// OverlayClass identifies the mask overlay child under the thumbnail.
	OverlayClass = "spoilveil-overlay"

	markerDone = "masked"
)

// Config for an Annotator. Zero values get defaults.
type Config struct {
	Keywords      *keyword.Set
	TitleSelector string // default "#video-title"
	ThumbSelector string // default "ytd-thumbnail"
	Sentinel      string // default "Spoiler blocked"
	OverlayLabel  string // default "SPOILER"
}

// Annotator masks matching content items. Safe to reuse across scan
// passes; it holds no per-item state.
type Annotator struct {
	keywords    *keyword.Set
	titleSel    string
	thumbSel    string
	sentinel    string
	overlayHTML string
}

// New creates an Annotator. The overlay fragment is built once: the
// configured label passes through a strict bluemonday policy so a hostile
// config value cannot smuggle markup into the page.
func New(cfg Config) *Annotator {
	if cfg.TitleSelector == "" {
		cfg.TitleSelector = "#video-title"
	}
	if cfg.ThumbSelector == "" {
		cfg.ThumbSelector = "ytd-thumbnail"
	}
	if cfg.Sentinel == "" {
		cfg.Sentinel = "Spoiler blocked"
	}
	if cfg.OverlayLabel == "" {
		cfg.OverlayLabel = "SPOILER"
	}

	label := bluemonday.StrictPolicy().Sanitize(cfg.OverlayLabel)

	return &Annotator{
		keywords: cfg.Keywords,
		titleSel: cfg.TitleSelector,
		thumbSel: cfg.ThumbSelector,
		sentinel: cfg.Sentinel,
		overlayHTML: fmt.Sprintf(
			`<div class=%q style="position: absolute; top: 0; left: 0; width: 100%%; height: 100%%; background: #000; color: #fff; display: flex; align-items: center; justify-content: center; font-weight: bold; z-index: 100">%s</div>`,
			OverlayClass, label),
	}
}

// Sentinel returns the fixed replacement title.
func (a *Annotator) Sentinel() string { return a.sentinel }

// TitleOf returns the item's current title text, or "" when the title
// slot is absent. Read-only; used by callers that need the title before
// annotation may overwrite it.
func (a *Annotator) TitleOf(item dom.Node) string {
	t, ok := item.QueryOne(a.titleSel)
	if !ok {
		return ""
	}
	return t.Text()
}

// Annotate runs the masking state machine on one content item.
//
// The already-masked check intentionally precedes the matcher: after
// masking, the title text is the sentinel, and re-matching against it
// would be meaningless (the sentinel itself could contain a keyword).
func (a *Annotator) Annotate(item dom.Node) Outcome {
	title, ok := item.QueryOne(a.titleSel)
	if !ok {
		return OutcomeNoTitle
	}
	text := title.Text()
	if text == "" {
		return OutcomeNoTitle
	}

	thumb, hasThumb := item.QueryOne(a.thumbSel)
	overlayPresent := false
	if hasThumb {
		_, overlayPresent = thumb.QueryOne("." + OverlayClass)
	}

	if item.Attr(MarkerAttr) == markerDone || text == a.sentinel {
		if hasThumb && !overlayPresent {
			// Sentinel title without its overlay: a partially masked item
			// whose thumbnail slot appeared later. Finish the job without
			// re-running the matcher.
			item.SetAttr(MarkerAttr, markerDone)
			a.applyOverlay(thumb)
			return OutcomeMasked
		}
		// When the thumbnail slot is absent, the sentinel title alone is
		// terminal: title-only masking counts as done.
		return OutcomeAlreadyMasked
	}

	if !a.keywords.Matches(text) {
		return OutcomeNoMatch
	}

	title.SetText(a.sentinel)
	item.SetAttr(MarkerAttr, markerDone)
	if hasThumb && !overlayPresent {
		a.applyOverlay(thumb)
	}
	return OutcomeMasked
}

// applyOverlay gives the thumbnail slot a positioning context (only when
// its current positioning is the unset default, to avoid clobbering
// deliberate site styling) and inserts the overlay as its last child,
// stacked above the existing visual content.
func (a *Annotator) applyOverlay(thumb dom.Node) {
	if pos := thumb.Style("position"); pos == "" || pos == "static" {
		thumb.SetStyle("position", "relative")
	}
	// The fragment is static and built at construction time; parsing it
	// cannot fail against a well-formed element context.
	_ = thumb.AppendHTML(a.overlayHTML)
}

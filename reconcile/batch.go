package reconcile

// Batch summarises one delivery from the change-notification mechanism:
// all tree changes since the previous delivery, reduced to counts. The
// reconciler only cares whether a batch contains additions — one batch
// triggers at most one full scan, regardless of how many nodes it added.
type Batch struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// HasAdditions reports whether the batch added at least one node.
func (b Batch) HasAdditions() bool { return b.Added > 0 }

// Category pairs a presentation context name with its container selector.
// The set of categories is fixed for the reconciler's lifetime; selectors
// are never constructed dynamically.
type Category struct {
	Name     string `yaml:"name" json:"name"`
	Selector string `yaml:"selector" json:"selector"`
}

// DefaultCategories covers the distinct listing contexts of the default
// target site. Overridable per profile in configuration.
func DefaultCategories() []Category {
	return []Category{
		{Name: "primary", Selector: "ytd-video-renderer"},
		{Name: "grid", Selector: "ytd-grid-video-renderer"},
		{Name: "compact", Selector: "ytd-compact-video-renderer"},
		{Name: "playlist", Selector: "ytd-playlist-video-renderer"},
		{Name: "shelf", Selector: "ytd-rich-item-renderer"},
		{Name: "related", Selector: "ytd-compact-autoplay-renderer"},
	}
}

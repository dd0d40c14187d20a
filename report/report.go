// Package report defines the structured events emitted by the masking
// engine and the sink interface they are delivered through. Consumers plug
// in a sink (stdout JSON lines, webhook, in-process callback) to follow
// what the engine is doing without touching its scan loop.
package report

import "time"

// Scan summarises one full reconciliation pass over the tree.
type Scan struct {
	ID        string         `json:"id"`
	Trigger   string         `json:"trigger"` // initial | mutation | navigation | settle | manual
	Items     int            `json:"items"`   // content items enumerated
	Masked    int            `json:"masked"`
	Already   int            `json:"already_masked"`
	NoTitle   int            `json:"no_title"`
	NoMatch   int            `json:"no_match"`
	ByCat     map[string]int `json:"by_category,omitempty"` // items per category
	Duration  time.Duration  `json:"duration"`
	Timestamp int64          `json:"timestamp"` // epoch milliseconds
}

// Mask records one item masked during a scan.
type Mask struct {
	ID        string `json:"id"`
	ScanID    string `json:"scan_id"`
	Category  string `json:"category"`
	Title     string `json:"title"`     // title text as read before masking
	CardHTML  string `json:"card_html"` // container subtree after masking
	Timestamp int64  `json:"timestamp"`
}

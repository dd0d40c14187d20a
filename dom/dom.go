// Package dom defines the tree lookup surface the masking engine works
// against, plus an in-memory implementation backed by golang.org/x/net/html.
//
// The engine never holds references to nodes across scan passes: every pass
// re-queries the live tree, so a Node is only valid for the duration of the
// pass that produced it. The live-browser implementation lives in package
// browse; this package's Document is used by tests and the offline scrub
// mode.
package dom

// Tree is the root query surface of a document.
type Tree interface {
	// Query returns all nodes matching the selector, in document order.
	// An unknown or unmatched selector yields an empty slice, never an error.
	Query(selector string) []Node
}

// Node is a transient handle to one element in the tree.
type Node interface {
	// Query returns matching descendant nodes in document order.
	Query(selector string) []Node

	// QueryOne returns the first matching descendant, if any.
	QueryOne(selector string) (Node, bool)

	// Text returns the node's visible text content, whitespace-normalised.
	Text() string

	// SetText replaces the node's content with a single text child.
	SetText(text string)

	// Attr returns the value of an attribute, or "" if absent.
	Attr(key string) string

	// SetAttr sets an attribute, replacing any existing value.
	SetAttr(key, val string)

	// Style returns the value of one styling property on the node, or ""
	// when the property is unset.
	Style(prop string) string

	// SetStyle sets one styling property on the node.
	SetStyle(prop, val string)

	// AppendHTML parses an HTML fragment and appends it as the node's last
	// children. The fragment must already be sanitised by the caller.
	AppendHTML(fragment string) error

	// OuterHTML serialises the node and its subtree.
	OuterHTML() string
}

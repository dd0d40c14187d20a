package dom

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Document is the in-memory Tree implementation. It owns a parsed HTML
// document and hands out element handles that mutate it in place.
type Document struct {
	root *html.Node
}

// Parse builds a Document from raw HTML.
func Parse(src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{root: root}, nil
}

// Query returns all elements matching the selector, in document order.
func (d *Document) Query(selector string) []Node {
	return wrapAll(querySelectorAll(d.root, selector))
}

// Render serialises the whole document back to HTML.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("dom: render: %w", err)
	}
	return buf.String(), nil
}

// element wraps one *html.Node as a Node handle.
type element struct {
	n *html.Node
}

func wrapAll(nodes []*html.Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{n: n})
	}
	return out
}

func (e *element) Query(selector string) []Node {
	return wrapAll(querySelectorAll(e.n, selector))
}

func (e *element) QueryOne(selector string) (Node, bool) {
	matches := querySelectorAll(e.n, selector)
	if len(matches) == 0 {
		return nil, false
	}
	return &element{n: matches[0]}, true
}

// Text collects all descendant text, whitespace-normalised the way a
// browser renders it: runs of whitespace collapse to single spaces.
func (e *element) Text() string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// SetText discards the node's children and replaces them with one text node.
func (e *element) SetText(text string) {
	for e.n.FirstChild != nil {
		e.n.RemoveChild(e.n.FirstChild)
	}
	e.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func (e *element) Attr(key string) string {
	return getAttr(e.n, key)
}

func (e *element) SetAttr(key, val string) {
	setAttr(e.n, key, val)
}

// Style returns one property from the inline style attribute.
func (e *element) Style(prop string) string {
	for _, decl := range strings.Split(getAttr(e.n, "style"), ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(k) == prop {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// SetStyle sets one property in the inline style attribute, replacing any
// existing declaration for the same property.
func (e *element) SetStyle(prop, val string) {
	var decls []string
	for _, decl := range strings.Split(getAttr(e.n, "style"), ";") {
		k, _, ok := strings.Cut(decl, ":")
		if !ok || strings.TrimSpace(k) == prop {
			continue
		}
		decls = append(decls, strings.TrimSpace(decl))
	}
	decls = append(decls, prop+": "+val)
	setAttr(e.n, "style", strings.Join(decls, "; "))
}

// AppendHTML parses a fragment in the context of this element and appends
// the resulting nodes as its last children.
func (e *element) AppendHTML(fragment string) error {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), e.n)
	if err != nil {
		return fmt.Errorf("dom: parse fragment: %w", err)
	}
	for _, n := range nodes {
		e.n.AppendChild(n)
	}
	return nil
}

func (e *element) OuterHTML() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, e.n); err != nil {
		return ""
	}
	return buf.String()
}

package browse

import (
	"log/slog"

	"github.com/go-rod/rod"

	"github.com/hushreel/spoilveil/dom"
)

// PageTree exposes a live Rod page as a dom.Tree. Query failures on a
// live page (detached nodes, in-flight navigation) degrade to empty
// results; the next scan pass re-queries from scratch anyway.
type PageTree struct {
	page   *rod.Page
	logger *slog.Logger
}

// Query returns all elements matching the CSS selector, in document order.
func (t *PageTree) Query(selector string) []dom.Node {
	els, err := t.page.Elements(selector)
	if err != nil {
		t.logger.Debug("browse: page query failed", "selector", selector, "error", err)
		return nil
	}
	return wrapElements(els, t.logger)
}

func wrapElements(els rod.Elements, logger *slog.Logger) []dom.Node {
	if len(els) == 0 {
		return nil
	}
	nodes := make([]dom.Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, &pageNode{el: el, logger: logger})
	}
	return nodes
}

// pageNode adapts one live element to dom.Node. Mutation failures are
// logged and swallowed: a node that detached mid-pass is simply picked
// up again on the next scan.
type pageNode struct {
	el     *rod.Element
	logger *slog.Logger
}

func (n *pageNode) Query(selector string) []dom.Node {
	els, err := n.el.Elements(selector)
	if err != nil {
		n.logger.Debug("browse: element query failed", "selector", selector, "error", err)
		return nil
	}
	return wrapElements(els, n.logger)
}

func (n *pageNode) QueryOne(selector string) (dom.Node, bool) {
	nodes := n.Query(selector)
	if len(nodes) == 0 {
		return nil, false
	}
	return nodes[0], true
}

func (n *pageNode) Text() string {
	text, err := n.el.Text()
	if err != nil {
		n.logger.Debug("browse: element text failed", "error", err)
		return ""
	}
	return text
}

func (n *pageNode) SetText(text string) {
	_, err := n.el.Eval(`(t) => { this.textContent = t; }`, text)
	if err != nil {
		n.logger.Warn("browse: set text failed", "error", err)
	}
}

func (n *pageNode) Attr(key string) string {
	val, err := n.el.Attribute(key)
	if err != nil || val == nil {
		return ""
	}
	return *val
}

func (n *pageNode) SetAttr(key, val string) {
	_, err := n.el.Eval(`(k, v) => { this.setAttribute(k, v); }`, key, val)
	if err != nil {
		n.logger.Warn("browse: set attribute failed", "key", key, "error", err)
	}
}

func (n *pageNode) Style(prop string) string {
	res, err := n.el.Eval(`(p) => getComputedStyle(this).getPropertyValue(p)`, prop)
	if err != nil {
		n.logger.Debug("browse: read style failed", "prop", prop, "error", err)
		return ""
	}
	return res.Value.Str()
}

func (n *pageNode) SetStyle(prop, val string) {
	_, err := n.el.Eval(`(p, v) => { this.style.setProperty(p, v); }`, prop, val)
	if err != nil {
		n.logger.Warn("browse: set style failed", "prop", prop, "error", err)
	}
}

func (n *pageNode) AppendHTML(fragment string) error {
	_, err := n.el.Eval(`(h) => { this.insertAdjacentHTML('beforeend', h); }`, fragment)
	if err != nil {
		return err
	}
	return nil
}

func (n *pageNode) OuterHTML() string {
	html, err := n.el.HTML()
	if err != nil {
		n.logger.Debug("browse: outer HTML failed", "error", err)
		return ""
	}
	return html
}

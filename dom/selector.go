package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// querySelectorAll returns all nodes under root matching a CSS selector.
// Supported syntax:
//   - tag: "article", "ytd-thumbnail"
//   - .class: ".content"
//   - #id: "#video-title"
//   - tag.class, tag#id
//   - tag[attr], tag[attr=val]
//   - descendant combinator: "div.list a.title"
//   - selector groups separated by commas
//
// Matches in a group are returned group-by-group; within one selector,
// document order.
func querySelectorAll(root *html.Node, selector string) []*html.Node {
	var matches []*html.Node
	for _, sel := range strings.Split(selector, ",") {
		parts := strings.Fields(sel)
		if len(parts) == 0 {
			continue
		}

		found := matchSimple(root, parts[0])

		// Descendant combinator: filter through subsequent parts. Nested
		// ancestors can both match an earlier part and yield the same
		// descendant twice, so each step deduplicates.
		for i := 1; i < len(parts); i++ {
			var next []*html.Node
			seen := make(map[*html.Node]struct{})
			for _, parent := range found {
				for _, n := range matchSimple(parent, parts[i]) {
					if _, dup := seen[n]; dup {
						continue
					}
					seen[n] = struct{}{}
					next = append(next, n)
				}
			}
			found = next
		}

		matches = append(matches, found...)
	}
	return matches
}

// matchSimple finds all descendants of root matching a single selector part.
// root itself is never a match — selectors scope to the subtree below.
func matchSimple(root *html.Node, sel string) []*html.Node {
	m := parseSimpleSelector(sel)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n != root && matchesSelector(n, m) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	// Attribute selector: tag[attr] or tag[attr=val].
	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = sel
	return s
}

// matchesSelector checks if a node matches a parsed simple selector.
func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}

	if s.tag != "" && n.Data != s.tag {
		return false
	}

	if s.id != "" && getAttr(n, "id") != s.id {
		return false
	}

	if s.class != "" {
		found := false
		for _, c := range strings.Fields(getAttr(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if s.attrKey != "" {
		if s.attrVal != "" {
			if getAttr(n, s.attrKey) != s.attrVal {
				return false
			}
		} else if !hasAttr(n, s.attrKey) {
			return false
		}
	}

	return true
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

package scrape

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Parse parses a page into a node tree.
func Parse(page string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Attr returns the value of attribute key on n, or "" if absent.
func Attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Matcher selects element nodes.
type Matcher func(*html.Node) bool

// Tag matches elements with the given tag name and attribute values.
// An attribute value of "*" only requires the attribute to be present.
func Tag(name string, attrs ...string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != name {
			return false
		}
		for i := 0; i+1 < len(attrs); i += 2 {
			v, ok := lookupAttr(n, attrs[i])
			if !ok {
				return false
			}
			if attrs[i+1] != "*" && v != attrs[i+1] {
				return false
			}
		}
		return true
	}
}

// ID matches the element with the given id attribute.
func ID(id string) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && Attr(n, "id") == id
	}
}

// Find returns the first descendant of root (depth-first, document order)
// that matches m, or nil.
func Find(root *html.Node, m Matcher) *html.Node {
	if root == nil {
		return nil
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if m(c) {
			return c
		}
		if found := Find(c, m); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant of root that matches m, in document order.
func FindAll(root *html.Node, m Matcher) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if m(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// Text returns the concatenated text content of n and its descendants.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

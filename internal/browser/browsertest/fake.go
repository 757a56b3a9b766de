// Package browsertest provides in-memory Page and Navigator fakes.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"prodcrawl/internal/browser"
)

// Node is a fake element: its own text and attributes plus child matches
// keyed by selector.
type Node struct {
	Body       string
	Attributes map[string]string
	Children   map[string][]*Node
}

// El builds a node with text and optional attribute pairs.
func El(text string, attrs ...string) *Node {
	n := &Node{Body: text, Attributes: map[string]string{}}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attributes[attrs[i]] = attrs[i+1]
	}
	return n
}

// With attaches children under selector and returns n.
func (n *Node) With(selector string, children ...*Node) *Node {
	if n.Children == nil {
		n.Children = map[string][]*Node{}
	}
	n.Children[selector] = append(n.Children[selector], children...)
	return n
}

func (n *Node) Text(selector string) (string, bool) {
	if selector == "" {
		t := strings.TrimSpace(n.Body)
		return t, t != ""
	}
	for _, c := range n.Children[selector] {
		if t, ok := c.Text(""); ok {
			return t, true
		}
	}
	return "", false
}

func (n *Node) Texts(selector string) []string {
	var out []string
	for _, c := range n.Children[selector] {
		if t, ok := c.Text(""); ok {
			out = append(out, t)
		}
	}
	return out
}

func (n *Node) Attr(selector, name string) (string, bool) {
	if selector == "" {
		v := strings.TrimSpace(n.Attributes[name])
		return v, v != ""
	}
	for _, c := range n.Children[selector] {
		if v, ok := c.Attr("", name); ok {
			return v, true
		}
	}
	return "", false
}

func (n *Node) Attrs(selector, name string) []string {
	var out []string
	for _, c := range n.Children[selector] {
		if v, ok := c.Attr("", name); ok {
			out = append(out, v)
		}
	}
	return out
}

func (n *Node) All(selector string) []browser.Node {
	out := make([]browser.Node, 0, len(n.Children[selector]))
	for _, c := range n.Children[selector] {
		out = append(out, c)
	}
	return out
}

// Page is a fake loaded document.
type Page struct {
	Root    *Node
	PageURL string
	// Scripts maps a JS expression to its canned result.
	Scripts map[string]string
}

// NewPage creates an empty fake page at url.
func NewPage(url string) *Page {
	return &Page{Root: El(""), PageURL: url, Scripts: map[string]string{}}
}

// With attaches root-level matches for selector.
func (p *Page) With(selector string, nodes ...*Node) *Page {
	p.Root.With(selector, nodes...)
	return p
}

// Script registers a canned Eval result.
func (p *Page) Script(js, result string) *Page {
	p.Scripts[js] = result
	return p
}

func (p *Page) URL() string { return p.PageURL }
func (p *Page) Text(s string) (string, bool) { return p.Root.Text(s) }
func (p *Page) Texts(s string) []string { return p.Root.Texts(s) }
func (p *Page) Attr(s, name string) (string, bool) { return p.Root.Attr(s, name) }
func (p *Page) Attrs(s, name string) []string { return p.Root.Attrs(s, name) }
func (p *Page) All(s string) []browser.Node { return p.Root.All(s) }

func (p *Page) Eval(js string) (string, error) {
	if r, ok := p.Scripts[js]; ok {
		return r, nil
	}
	return "", nil
}

// Navigator serves fake pages by URL and records every visit.
type Navigator struct {
	mu       sync.Mutex
	Pages    map[string]*Page
	Errors   map[string][]error
	Visits   []string
	Opened   int
	Released int
}

// NewNavigator creates an empty fake navigator.
func NewNavigator() *Navigator {
	return &Navigator{Pages: map[string]*Page{}, Errors: map[string][]error{}}
}

// Serve registers page under its URL.
func (n *Navigator) Serve(p *Page) *Navigator {
	n.Pages[p.PageURL] = p
	return n
}

// Fail queues errors returned by successive opens of url before it succeeds.
func (n *Navigator) Fail(url string, errs ...error) *Navigator {
	n.Errors[url] = append(n.Errors[url], errs...)
	return n
}

// Open implements browser.Navigator.
func (n *Navigator) Open(ctx context.Context, url string) (browser.Page, func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.Visits = append(n.Visits, url)
	if q := n.Errors[url]; len(q) > 0 {
		n.Errors[url] = q[1:]
		return nil, nil, q[0]
	}
	p, ok := n.Pages[url]
	if !ok {
		return nil, nil, fmt.Errorf("failed to load %s: net::ERR_NAME_NOT_RESOLVED", url)
	}
	n.Opened++
	return p, func() {
		n.mu.Lock()
		n.Released++
		n.mu.Unlock()
	}, nil
}

// VisitCount returns how many times url was opened.
func (n *Navigator) VisitCount(url string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, v := range n.Visits {
		if v == url {
			c++
		}
	}
	return c
}

package browser

import (
	"context"
	"errors"
)

// ErrNavigationTimeout is returned when a page does not finish loading in time.
var ErrNavigationTimeout = errors.New("page load timed out")

// Node is a queryable part of a loaded document. Lookups never wait: a
// selector that matches nothing yields ("", false) or an empty slice.
type Node interface {
	// Text returns the trimmed text of the first match. An empty selector
	// addresses the node itself.
	Text(selector string) (string, bool)
	Texts(selector string) []string
	Attr(selector, name string) (string, bool)
	Attrs(selector, name string) []string
	All(selector string) []Node
}

// Page is a loaded document.
type Page interface {
	Node
	URL() string
	// Eval runs a JS function expression, e.g. `() => JSON.stringify(x)`,
	// and returns its string result.
	Eval(js string) (string, error)
}

// Navigator acquires loaded pages. Callers must invoke release exactly once
// when err is nil.
type Navigator interface {
	Open(ctx context.Context, url string) (page Page, release func(), err error)
}

package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// Options configures the browser session.
type Options struct {
	// Bin is the browser executable. Empty means look it up.
	Bin         string
	Headless    bool
	PageTimeout time.Duration
	UserAgent   string
}

// Session owns one browser process for the lifetime of a crawl run.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	opts     Options
	log      logrus.FieldLogger
}

// Launch starts a browser and connects to it. Failure here is fatal for the run.
// The process is not bound to any context: it lives until Close, so a stop
// signal can never tear it down in the middle of an item.
func Launch(opts Options, logger logrus.FieldLogger) (*Session, error) {
	log := logger.WithField("component", "browser")
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}

	path := opts.Bin
	if path == "" {
		var exists bool
		path, exists = launcher.LookPath()
		if !exists {
			log.Error("Cannot find browser executable for rod")
			return nil, errors.New("rod browser dependency not found")
		}
	}

	l := launcher.New().Bin(path).Headless(opts.Headless)
	u, err := l.Launch()
	if err != nil {
		log.WithError(err).Error("Failed to launch browser")
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		log.WithError(err).Error("Failed to connect to rod browser")
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	log.WithField("bin", path).Info("Browser session started")
	return &Session{launcher: l, browser: b, opts: opts, log: log}, nil
}

// Close tears down the browser process.
func (s *Session) Close() error {
	err := s.browser.Close()
	if err != nil {
		s.log.WithError(err).Error("Error closing rod browser instance")
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
	s.log.Info("Browser session closed")
	if err != nil {
		return fmt.Errorf("error closing browser: %w", err)
	}
	return nil
}

// Open creates a tab, navigates to url and waits for the load event. The load
// is bounded by the page timeout; the returned page is bound to ctx.
func (s *Session) Open(ctx context.Context, url string) (Page, func(), error) {
	log := s.log.WithField("url", url)

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create page: %w", err)
	}
	release := func() {
		if closeErr := page.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Error closing rod page")
		}
	}

	if s.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.opts.UserAgent}); err != nil {
			log.WithError(err).Warn("Failed to set user agent")
		}
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.opts.PageTimeout)
	defer cancel()

	loading := page.Context(loadCtx)
	err = loading.Navigate(url)
	if err == nil {
		err = loading.WaitLoad()
	}
	if err != nil {
		release()
		if errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
			log.WithError(err).Warn("Page load timed out")
			return nil, nil, fmt.Errorf("%w: %s", ErrNavigationTimeout, url)
		}
		return nil, nil, fmt.Errorf("failed to load %s: %w", url, err)
	}

	log.Debug("Page loaded")
	return newRodPage(page.Context(ctx), url, s.opts.PageTimeout), release, nil
}

// rodPage adapts a *rod.Page to Page. Script evaluation is bounded by
// evalTimeout; element lookups do not wait and need no bound.
type rodPage struct {
	page        *rod.Page
	requested   string
	evalTimeout time.Duration
}

func newRodPage(page *rod.Page, requested string, evalTimeout time.Duration) *rodPage {
	if evalTimeout <= 0 {
		evalTimeout = 30 * time.Second
	}
	return &rodPage{page: page, requested: requested, evalTimeout: evalTimeout}
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil || info == nil || info.URL == "" {
		return p.requested
	}
	return info.URL
}

func (p *rodPage) Eval(js string) (string, error) {
	bounded := p.page.Timeout(p.evalTimeout)
	defer bounded.CancelTimeout()

	res, err := bounded.Eval(js)
	if err != nil {
		return "", fmt.Errorf("eval failed: %w", err)
	}
	return res.Value.Str(), nil
}

func (p *rodPage) Text(selector string) (string, bool) { return firstText(p.page, selector) }
func (p *rodPage) Texts(selector string) []string { return allTexts(p.page, selector) }
func (p *rodPage) Attr(selector, name string) (string, bool) {
	return firstAttr(p.page, selector, name)
}
func (p *rodPage) Attrs(selector, name string) []string { return allAttrs(p.page, selector, name) }
func (p *rodPage) All(selector string) []Node { return allNodes(p.page, selector) }

// rodNode adapts a *rod.Element to Node.
type rodNode struct {
	el *rod.Element
}

func (n *rodNode) Text(selector string) (string, bool) {
	if selector == "" {
		return elementText(n.el)
	}
	return firstText(n.el, selector)
}
func (n *rodNode) Texts(selector string) []string { return allTexts(n.el, selector) }
func (n *rodNode) Attr(selector, name string) (string, bool) {
	if selector == "" {
		return elementAttr(n.el, name)
	}
	return firstAttr(n.el, selector, name)
}
func (n *rodNode) Attrs(selector, name string) []string { return allAttrs(n.el, selector, name) }
func (n *rodNode) All(selector string) []Node { return allNodes(n.el, selector) }

// finder is satisfied by both *rod.Page and *rod.Element. Elements does not
// wait for matches to appear.
type finder interface {
	Elements(selector string) (rod.Elements, error)
}

func elements(f finder, selector string) rod.Elements {
	els, err := f.Elements(selector)
	if err != nil {
		return nil
	}
	return els
}

func elementText(el *rod.Element) (string, bool) {
	t, err := el.Text()
	if err != nil {
		return "", false
	}
	t = strings.TrimSpace(t)
	return t, t != ""
}

func elementAttr(el *rod.Element, name string) (string, bool) {
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	s := strings.TrimSpace(*v)
	return s, s != ""
}

func firstText(f finder, selector string) (string, bool) {
	for _, el := range elements(f, selector) {
		if t, ok := elementText(el); ok {
			return t, true
		}
	}
	return "", false
}

func allTexts(f finder, selector string) []string {
	var out []string
	for _, el := range elements(f, selector) {
		if t, ok := elementText(el); ok {
			out = append(out, t)
		}
	}
	return out
}

func firstAttr(f finder, selector, name string) (string, bool) {
	for _, el := range elements(f, selector) {
		if v, ok := elementAttr(el, name); ok {
			return v, true
		}
	}
	return "", false
}

func allAttrs(f finder, selector, name string) []string {
	var out []string
	for _, el := range elements(f, selector) {
		if v, ok := elementAttr(el, name); ok {
			out = append(out, v)
		}
	}
	return out
}

func allNodes(f finder, selector string) []Node {
	els := elements(f, selector)
	out := make([]Node, 0, len(els))
	for _, el := range els {
		out = append(out, &rodNode{el: el})
	}
	return out
}

// Package browse attaches the masking engine to a live Chrome page via
// Rod: it launches (or connects to) a browser, injects a MutationObserver,
// and exposes the page as a dom.Tree so the reconciler can scan it.
package browse

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

//go:embed observer.js
var observerJS string

const bindingName = "__spoilveil_binding"

// Config configures a browse Session.
type Config struct {
	// URL is the page to open and watch.
	URL string

	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headful disables headless mode for debugging.
	Headful bool

	// NavigationEvent is the DOM event that signals an in-page (SPA)
	// navigation has finished. Default: "yt-navigate-finish".
	NavigationEvent string

	// NavigateTimeout bounds the initial page load. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigationEvent == "" {
		c.NavigationEvent = "yt-navigate-finish"
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Events receives page signals decoded from the injected observer.
type Events struct {
	// OnMutation is called with the added/removed node counts of each
	// MutationObserver batch.
	OnMutation func(added, removed int)
	// OnNavigate is called when the configured navigation event fires.
	OnNavigate func(url string)
}

// Session owns one Chrome connection and one watched page.
type Session struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page

	mu     sync.Mutex
	closed bool
}

// Open launches or connects to Chrome, opens the configured URL with
// stealth applied, and waits for the initial load.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	cfg.defaults()
	log := cfg.Logger

	s := &Session{cfg: cfg}

	var wsURL string
	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		log.Info("browse: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(!cfg.Headful)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browse: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		log.Info("browse: launched local chrome", "url", wsURL, "headful", cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browse: connect: %w", err)
	}
	s.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("browse: create page: %w", err)
	}
	s.page = page

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(cfg.URL); err != nil {
		s.Close()
		return nil, fmt.Errorf("browse: navigate %s: %w", cfg.URL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browse: wait load timeout", "url", cfg.URL, "error", err)
	}

	return s, nil
}

// Tree returns the live page as a dom.Tree.
func (s *Session) Tree() *PageTree {
	return &PageTree{page: s.page, logger: s.cfg.Logger}
}

// Subscribe injects the MutationObserver and starts forwarding page
// signals to ev until ctx is cancelled.
func (s *Session) Subscribe(ctx context.Context, ev Events) error {
	page := s.page
	log := s.cfg.Logger

	err := proto.RuntimeAddBinding{Name: bindingName}.Call(page)
	if err != nil {
		log.Warn("browse: addBinding failed (may already exist)", "error", err)
	}

	go s.listenBinding(ctx, ev)

	setup := fmt.Sprintf("window.__spoilveil_navevent = %q;", s.cfg.NavigationEvent)
	if _, err := page.Eval(setup); err != nil {
		log.Warn("browse: set navigation event failed", "error", err)
	}

	if _, err := page.Eval(observerJS); err != nil {
		return fmt.Errorf("browse: inject observer.js: %w", err)
	}

	log.Debug("browse: observer injected", "url", s.cfg.URL)
	return nil
}

// listenBinding receives calls from the injected JS via Runtime.bindingCalled.
func (s *Session) listenBinding(ctx context.Context, ev Events) {
	s.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		sig, err := parseSignal(e.Payload)
		if err != nil {
			s.cfg.Logger.Warn("browse: parse binding payload", "error", err)
			return
		}
		switch sig.Type {
		case "batch":
			if ev.OnMutation != nil {
				ev.OnMutation(sig.Added, sig.Removed)
			}
		case "navigate":
			s.cfg.Logger.Info("browse: navigation finished", "url", sig.URL)
			if ev.OnNavigate != nil {
				ev.OnNavigate(sig.URL)
			}
		default:
			s.cfg.Logger.Warn("browse: unknown signal", "type", sig.Type)
		}
	})()
}

// signal is one message posted by the injected observer.
type signal struct {
	Type    string `json:"type"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	URL     string `json:"url"`
}

func parseSignal(payload string) (signal, error) {
	var sig signal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		return signal{}, fmt.Errorf("browse: decode signal: %w", err)
	}
	if sig.Type == "" {
		return signal{}, fmt.Errorf("browse: signal missing type")
	}
	return sig, nil
}

// Close closes the page and the browser.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.page != nil {
		if err := s.page.Close(); err != nil {
			s.cfg.Logger.Warn("browse: close page", "error", err)
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			return fmt.Errorf("browse: close browser: %w", err)
		}
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
	return nil
}

// Package scraper drives a headless Chromium instance to search retailer
// sites, extract product listings and pull price history off the aggregator.
package scraper

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"
)

// Config controls the browser launch.
type Config struct {
	Headless   bool
	BrowserBin string
	MaxPages   int
}

// Session owns the browser process and a reusable page pool. It is safe for
// concurrent use; callers serialize higher up when site politeness requires it.
type Session struct {
	browser *rod.Browser
	pool    rod.Pool[rod.Page]
}

// NewSession launches Chromium with anti-automation flags and connects to it.
func NewSession(cfg Config) (*Session, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	log.Info().Str("control_url", controlURL).Msg("browser launched")

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 4
	}

	return &Session{
		browser: browser,
		pool:    rod.NewPagePool(maxPages),
	}, nil
}

// withPage borrows a tab from the pool, injects the stealth script, binds the
// caller's context and guarantees the tab is parked on about:blank and
// returned to the pool afterwards.
func (s *Session) withPage(ctx context.Context, fn func(*rod.Page) error) error {
	page, err := s.pool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return fmt.Errorf("acquire page: %w", err)
	}
	defer func() {
		// Cleanup uses the original handle so it still works after the
		// request context expired.
		if navErr := page.Navigate("about:blank"); navErr != nil {
			log.Warn().Err(navErr).Msg("cleanup: failed to park page on about:blank")
		}
		s.pool.Put(page)
	}()

	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		log.Warn().Err(evalErr).Msg("stealth injection failed, proceeding without it")
	}

	return fn(page.Context(ctx))
}

// Close drains the page pool and kills the browser process.
func (s *Session) Close() {
	s.pool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	s.browser.MustClose()
	log.Info().Msg("browser session closed")
}

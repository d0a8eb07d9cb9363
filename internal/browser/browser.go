// Package browser owns the shared Chrome session reused across accounts.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config holds Chrome launch options.
type Config struct {
	ExecPath     string
	Headless     bool
	WindowWidth  int
	WindowHeight int
	Timeout      time.Duration
}

// DefaultConfig returns the launch options used by a normal run.
func DefaultConfig() Config {
	return Config{
		Headless:     true,
		WindowWidth:  1920,
		WindowHeight: 1080,
		Timeout:      2 * time.Hour,
	}
}

// Session is the process-wide browser handle. Exactly one exists per run and
// it is reconfigured in place between accounts: a fresh tab replaces the
// previous account's tab, and the download directory is swapped to the new
// account's directory. Callers must serialize all access; nothing here is
// safe for concurrent use.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc

	tabCtx    context.Context
	tabCancel context.CancelFunc

	log *zap.Logger
}

// New launches Chrome and returns the session handle.
func New(cfg Config, log *zap.Logger) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(cfg.ExecPath),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	rootCtx, ctxCancel := chromedp.NewContext(allocCtx)
	rootCtx, timeoutCancel := context.WithTimeout(rootCtx, cfg.Timeout)
	rootCancel := func() {
		timeoutCancel()
		ctxCancel()
	}

	// Start the browser process now so every later tab attaches to the same
	// instance.
	if err := chromedp.Run(rootCtx); err != nil {
		rootCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
		log:         log,
	}, nil
}

// NewTab tears down the previous account's tab, if any, and opens a fresh
// one. Teardown is best effort; a leftover tab must not block the next
// account.
func (s *Session) NewTab(ctx context.Context) (context.Context, error) {
	if s.tabCancel != nil {
		s.tabCancel()
		s.tabCancel = nil
		s.tabCtx = nil
		s.log.Debug("previous tab closed")
	}

	tabCtx, tabCancel := chromedp.NewContext(s.rootCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	s.tabCtx = tabCtx
	s.tabCancel = tabCancel
	return tabCtx, nil
}

// Reset points the browser's downloads at dir, creating it if needed.
// Downloads land under CDP-assigned names and are renamed on completion
// (see jobtable), so the final filename stays under our control.
func (s *Session) Reset(dir string) error {
	if s.tabCtx == nil {
		return errors.New("browser: no open tab")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	if err := chromedp.Run(s.tabCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	); err != nil {
		return fmt.Errorf("set download directory: %w", err)
	}
	s.log.Info("download directory set", zap.String("dir", dir))
	return nil
}

// Close shuts down the tab, the browser and its allocator.
func (s *Session) Close() {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.rootCancel != nil {
		s.rootCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// Navigate loads url in the given tab and gives the page a settle period.
func Navigate(ctx context.Context, url string) error {
	return chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.Sleep(3*time.Second),
	)
}

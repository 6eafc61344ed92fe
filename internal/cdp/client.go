// Package cdp attaches to a running Chromium over the DevTools protocol
// and feeds per-tab navigation and network events into the detection
// core. One CDP target of type "page" maps to one detection session.
package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/streamlens/streamlens/internal/capture"
	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/domscan"
	"github.com/streamlens/streamlens/internal/session"
	"github.com/streamlens/streamlens/internal/types"
)

const scanTimeout = 15 * time.Second

// Client manages CDP connections to browser tabs.
type Client struct {
	cfg      *config.Config
	capture  *capture.ResponseCapture
	sessions *session.Manager
	scanner  *domscan.Scanner

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabs        map[target.ID]*TabContext
	tabsMu      sync.RWMutex
	closing     bool
}

type TabContext struct {
	ID     target.ID
	URL    string
	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(cfg *config.Config, cap *capture.ResponseCapture, sessions *session.Manager, scanner *domscan.Scanner) *Client {
	return &Client{
		cfg:      cfg,
		capture:  cap,
		sessions: sessions,
		scanner:  scanner,
		tabs:     make(map[target.ID]*TabContext),
	}
}

// Connect attaches to every page target matching the configured URL
// filter. At least one matching tab is required.
func (c *Client) Connect(ctx context.Context) error {
	cdpURL := c.cfg.GetCDPURL()
	slog.Info("Connecting to Chromium", "url", cdpURL)

	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(ctx, cdpURL)

	tempCtx, tempCancel := chromedp.NewContext(c.allocCtx)
	defer tempCancel()

	if err := chromedp.Run(tempCtx); err != nil {
		return newError(CodeCDPUnavailable, "failed to connect to browser", err)
	}

	targets, err := chromedp.Targets(tempCtx)
	if err != nil {
		return newError(CodeCDPUnavailable, "failed to enumerate targets", err)
	}

	slog.Info("Found browser targets", "count", len(targets))

	attachedCount := 0
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if !c.matchesTabURL(t.URL) {
			slog.Debug("Skipping tab (url filter)", "url", t.URL)
			continue
		}
		if err := c.attachToTab(t.TargetID, t.URL); err != nil {
			slog.Error("Failed to attach to tab", "target_id", t.TargetID, "url", t.URL, "error", err)
			continue
		}
		attachedCount++
	}

	if attachedCount == 0 {
		return newError(CodeCDPUnavailable, fmt.Sprintf("no tabs found matching SNIFFER_TAB_URL_FILTER=%q", c.cfg.TabURLFilter), nil)
	}

	slog.Info("Attached to tabs", "count", attachedCount, "tab_url_filter", c.cfg.TabURLFilter)
	return nil
}

func (c *Client) attachToTab(targetID target.ID, url string) error {
	c.sessions.Register(string(targetID), url)

	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx, chromedp.WithTargetID(targetID))
	tab := &TabContext{ID: targetID, URL: url, ctx: tabCtx, cancel: tabCancel}

	c.tabsMu.Lock()
	c.tabs[targetID] = tab
	c.tabsMu.Unlock()

	if err := chromedp.Run(tabCtx, network.Enable(), network.SetCacheDisabled(true), page.Enable()); err != nil {
		tabCancel()
		c.sessions.CloseSession(string(targetID))
		return fmt.Errorf("failed to enable network/page domains: %w", err)
	}

	slog.Info("Attached to tab", "session_id", targetID, "url", truncateURL(url))
	chromedp.ListenTarget(tabCtx, c.createEventHandler(string(targetID)))

	// The tab context dies when the tab closes; that is the session's
	// Closed transition.
	go func() {
		<-tabCtx.Done()
		c.tabsMu.Lock()
		closing := c.closing
		delete(c.tabs, targetID)
		c.tabsMu.Unlock()
		if !closing {
			c.sessions.CloseSession(string(targetID))
		}
	}()

	if c.cfg.ReloadOnAttach {
		reloadCtx, reloadCancel := context.WithTimeout(tabCtx, 30*time.Second)
		defer reloadCancel()
		if err := chromedp.Run(reloadCtx, chromedp.Reload()); err != nil {
			slog.Warn("Failed to reload tab (continuing)", "session_id", targetID, "error", err)
		} else {
			slog.Info("Reloaded tab after attach", "session_id", targetID, "url", truncateURL(url))
		}
	}

	return nil
}

func (c *Client) createEventHandler(sessionID string) func(ev interface{}) {
	return func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			// Top-level document navigation resets the session; iframe
			// navigations inside the page do not.
			if e.Frame.ParentID == "" {
				c.sessions.NavigationStarted(sessionID, e.Frame.URL)
			}
		case *page.EventNavigatedWithinDocument:
			c.sessions.SetURL(sessionID, e.URL)
		case *network.EventResponseReceived:
			c.capture.OnResponseReceived(sessionID, e)
		case *network.EventLoadingFinished:
			c.capture.OnLoadingFinished(sessionID, e)
		case *network.EventLoadingFailed:
			c.capture.OnLoadingFailed(sessionID, e)
		}
	}
}

// ScanSession fetches the tab's current outer HTML and runs the DOM
// media scanner over it.
func (c *Client) ScanSession(ctx context.Context, sessionID string) ([]types.VideoCandidate, error) {
	c.tabsMu.RLock()
	tab, ok := c.tabs[target.ID(sessionID)]
	c.tabsMu.RUnlock()
	if !ok {
		return nil, newError(CodeSessionNotFound, fmt.Sprintf("no session %q", sessionID), nil)
	}

	pageURL, _ := c.sessions.URL(sessionID)

	scanCtx, cancel := context.WithTimeout(tab.ctx, scanTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(scanCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		if scanCtx.Err() == context.DeadlineExceeded {
			return nil, newError(CodeEvalTimeout, "outer HTML fetch timed out", err)
		}
		return nil, newError(CodeScanFailure, "outer HTML fetch failed", err)
	}

	candidates, err := c.scanner.ScanHTML(html, pageURL)
	if err != nil {
		return nil, newError(CodeScanFailure, "document parse failed", err)
	}
	return candidates, nil
}

func (c *Client) Close() error {
	c.tabsMu.Lock()
	c.closing = true
	c.tabs = make(map[target.ID]*TabContext)
	c.tabsMu.Unlock()

	if c.allocCancel != nil {
		c.allocCancel()
	}

	slog.Info("CDP client closed")
	return nil
}

func (c *Client) GetTabCount() int {
	c.tabsMu.RLock()
	defer c.tabsMu.RUnlock()
	return len(c.tabs)
}

func (c *Client) matchesTabURL(url string) bool {
	if c.cfg.TabURLFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(c.cfg.TabURLFilter))
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}

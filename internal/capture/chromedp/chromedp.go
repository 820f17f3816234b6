// Package chromedp implements the capture.Engine interface with a headless
// Chrome driven over the DevTools protocol.
package chromedp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cdp "github.com/chromedp/chromedp"

	"github.com/sakif/linkstash/internal/capture"
)

// Engine launches one isolated browser process per Capture call. Nothing is
// shared or reused across invocations: a hostile or memory-heavy page can
// only poison its own short-lived browser, and release is a pair of deferred
// cancels that run on every exit path.
type Engine struct {
	config Config
	logger *slog.Logger
}

var _ capture.Engine = (*Engine)(nil)

// New creates an Engine. No browser is launched until Capture is called.
func New(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		config: cfg,
		logger: logger,
	}
}

// Capture navigates to the request URL and rasterizes the viewport.
//
// Phases, each bounded:
//  1. launch browser + navigate until DOM-ready (NavigationTimeout)
//  2. settle delay, then screenshot of the current viewport
//
// with OverallTimeout capping the whole attempt. Every failure comes back as
// a *capture.Error; the browser process is torn down before returning.
func (e *Engine) Capture(ctx context.Context, req capture.Request) (*capture.Result, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.config.OverallTimeout)
	defer cancel()

	opts := append(cdp.DefaultExecAllocatorOptions[:],
		cdp.UserAgent(e.config.UserAgent),
		cdp.WindowSize(e.config.ViewportWidth, e.config.ViewportHeight),
		cdp.Flag("force-device-scale-factor", "1"),
	)
	if e.config.ExecPath != "" {
		opts = append(opts, cdp.ExecPath(e.config.ExecPath))
	}

	allocCtx, cancelAlloc := cdp.NewExecAllocator(ctx, opts...)
	// Cancelling the allocator kills the browser process. Deferred on every
	// exit path: success, timeout, navigation error, crash.
	defer cancelAlloc()

	browserCtx, cancelBrowser := cdp.NewContext(allocCtx)
	defer cancelBrowser()

	navCtx, cancelNav := context.WithTimeout(browserCtx, e.config.NavigationTimeout)
	defer cancelNav()

	err := cdp.Run(navCtx,
		cdp.EmulateViewport(int64(e.config.ViewportWidth), int64(e.config.ViewportHeight)),
		cdp.Navigate(req.URL),
		cdp.WaitReady("body", cdp.ByQuery),
	)
	if err != nil {
		e.logger.Warn("navigation failed",
			slog.String("url", req.URL),
			slog.String("error", err.Error()),
		)
		return nil, capture.Failure(classify(err), fmt.Errorf("navigating %s: %w", req.URL, err))
	}

	var buf []byte
	err = cdp.Run(browserCtx,
		cdp.Sleep(e.config.SettleDelay),
		cdp.CaptureScreenshot(&buf),
	)
	if err != nil {
		e.logger.Warn("screenshot failed",
			slog.String("url", req.URL),
			slog.String("error", err.Error()),
		)
		return nil, capture.Failure(classify(err), fmt.Errorf("rasterizing %s: %w", req.URL, err))
	}

	e.logger.Debug("captured screenshot",
		slog.String("url", req.URL),
		slog.Int("bytes", len(buf)),
		slog.Duration("duration", time.Since(start)),
	)

	return &capture.Result{
		Image:    buf,
		Duration: time.Since(start),
	}, nil
}

// classify maps a chromedp/Chrome error onto the closed failure taxonomy.
// Chrome surfaces network failures as "net::ERR_*" strings, so this is
// necessarily a string match; anything unrecognized counts as a renderer
// crash.
func classify(err error) capture.Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return capture.NavigationTimeout
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "net::ERR_NAME_NOT_RESOLVED"),
		strings.Contains(msg, "net::ERR_CONNECTION"),
		strings.Contains(msg, "net::ERR_ADDRESS"),
		strings.Contains(msg, "net::ERR_CERT"),
		strings.Contains(msg, "net::ERR_SSL"),
		strings.Contains(msg, "net::ERR_INTERNET_DISCONNECTED"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection refused"):
		return capture.ConnectionFailed
	case strings.Contains(msg, "net::ERR_TIMED_OUT"):
		return capture.NavigationTimeout
	default:
		return capture.RenderCrash
	}
}

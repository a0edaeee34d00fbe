package capture

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	DefaultWidth   = 800
	DefaultHeight  = 600
	DefaultTimeout = 30 * time.Second
)

// Options defines parameters for a Chromium-based screenshot of the spiral
// page.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/spiral".
	URL string

	// OutputPath is where the PNG screenshot is written.
	OutputPath string

	// Width and Height are the browser viewport in CSS pixels. Zero uses the
	// defaults.
	Width  int
	Height int

	// DeviceScale is the device pixel ratio the page is rendered at. Zero
	// means 1.
	DeviceScale float64

	// Timeout bounds the whole capture.
	Timeout time.Duration
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if o.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.DeviceScale <= 0 {
		o.DeviceScale = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// SpiralPNG loads the /spiral page in headless Chromium, waits for the
// spiral image to report data-ready="true", and writes a PNG screenshot.
func SpiralPNG(parentCtx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height), chromedp.EmulateScale(opts.DeviceScale)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`#spiral[data-ready="true"]`, chromedp.ByQuery),
		// let the last paint land
		chromedp.Sleep(200 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}

// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/actions"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("browser session is closed")

const (
	// Per-operation ceilings for input dispatch.
	mouseTimeout = 10 * time.Second
	keyTimeout   = 5 * time.Second
	// networkQuietPeriod is how long the network must stay idle for a page
	// to count as stable.
	networkQuietPeriod = 500 * time.Millisecond
)

// Session is one Chrome tab driven over CDP. It implements actions.Surface
// together with the capture and lifecycle operations the executor needs.
type Session struct {
	id     string
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	tracker     *networkTracker
	isStarted   bool
	isClosed    bool
}

var (
	_ actions.Surface = (*Session)(nil)
	_ Driver          = (*Session)(nil)
)

// NewSession creates an unstarted session. No browser process exists until
// Start is called.
func NewSession(cfg config.BrowserConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	return &Session{
		id:     id,
		cfg:    cfg,
		logger: logger.Named("browser").With(zap.String("session_id", id)),
	}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Viewport returns the emulated viewport size.
func (s *Session) Viewport() (int, int) { return s.cfg.Width, s.cfg.Height }

// Start launches Chrome, opens a tab and applies the viewport.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return ErrSessionClosed
	}
	if s.isStarted {
		return nil
	}

	// The browser must outlive the caller's start context.
	root := Detach(ctx)
	allocCtx, allocCancel := chromedp.NewExecAllocator(root, DefaultAllocatorOptions(s.cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(s.logger.Sugar().Debugf),
		chromedp.WithErrorf(s.logger.Sugar().Debugf),
	)

	// The first Run launches the process and must use the tab context itself:
	// chromedp ties the browser's lifetime to the context of that call.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	startCtx, cancel := CombineContext(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(startCtx, chromedp.EmulateViewport(int64(s.cfg.Width), int64(s.cfg.Height))); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("failed to apply viewport: %w", err)
	}

	tracker := newNetworkTracker(tabCtx, s.logger)
	if err := tracker.Start(ctx); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("failed to enable network tracking: %w", err)
	}

	s.ctx, s.cancel, s.allocCancel = tabCtx, tabCancel, allocCancel
	s.tracker = tracker
	s.isStarted = true
	s.logger.Info("Browser session started.",
		zap.Int("width", s.cfg.Width), zap.Int("height", s.cfg.Height), zap.Bool("headless", s.cfg.Headless))
	return nil
}

// Close shuts down the tab and the browser process. It is safe to call more
// than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	tracker, cancel, allocCancel := s.tracker, s.cancel, s.allocCancel
	sessionCtx := s.ctx
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	if tracker != nil {
		tracker.Stop()
	}

	var err error
	if sessionCtx != nil {
		// Ask Chrome to exit cleanly before tearing down the contexts.
		closeCtx, closeCancel := CombineContext(sessionCtx, ctx)
		err = chromedp.Cancel(closeCtx)
		closeCancel()
	}
	if cancel != nil {
		cancel()
	}
	if allocCancel != nil {
		allocCancel()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// runActions executes actions on the tab, bounded by the operational ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	sessionCtx, started, closed := s.ctx, s.isStarted, s.isClosed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if !started {
		return errors.New("browser session not started")
	}

	runCtx, cancel := CombineContext(sessionCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// runWithTimeout wraps runActions with a per-operation deadline.
func (s *Session) runWithTimeout(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.runActions(opCtx, actions...)
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		s.logger.Debug("CDP operation timed out.", zap.String("op", op), zap.Duration("timeout", timeout))
		return fmt.Errorf("%s timed out after %v: %w", op, timeout, opCtx.Err())
	}
	return err
}

// -- Navigation --

func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if err := s.runWithTimeout(ctx, "navigate", timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (s *Session) GoBack(ctx context.Context) error {
	return s.runWithTimeout(ctx, "go_back", 30*time.Second, chromedp.NavigateBack())
}

func (s *Session) GoForward(ctx context.Context) error {
	return s.runWithTimeout(ctx, "go_forward", 30*time.Second, chromedp.NavigateForward())
}

// -- Pointer --

func (s *Session) mouse(ctx context.Context, p *input.DispatchMouseEventParams) error {
	return s.runWithTimeout(ctx, "mouse_event", mouseTimeout, p)
}

func (s *Session) MouseMove(ctx context.Context, x, y float64) error {
	return s.mouse(ctx, input.DispatchMouseEvent(input.MouseMoved, x, y))
}

func (s *Session) MouseDown(ctx context.Context, x, y float64) error {
	return s.mouse(ctx, input.DispatchMouseEvent(input.MousePressed, x, y).
		WithButton(input.Left).WithButtons(1).WithClickCount(1))
}

func (s *Session) MouseUp(ctx context.Context, x, y float64) error {
	return s.mouse(ctx, input.DispatchMouseEvent(input.MouseReleased, x, y).
		WithButton(input.Left).WithClickCount(1))
}

func (s *Session) MouseClick(ctx context.Context, x, y float64) error {
	if err := s.MouseDown(ctx, x, y); err != nil {
		return err
	}
	return s.MouseUp(ctx, x, y)
}

func (s *Session) MouseWheel(ctx context.Context, x, y, deltaX, deltaY float64) error {
	return s.mouse(ctx, input.DispatchMouseEvent(input.MouseWheel, x, y).
		WithDeltaX(deltaX).WithDeltaY(deltaY))
}

// -- Keyboard --

func (s *Session) TypeText(ctx context.Context, text string) error {
	// Budget scales with length; KeyEvent sends one event pair per rune.
	timeout := keyTimeout + time.Duration(len(text))*20*time.Millisecond
	return s.runWithTimeout(ctx, "type_text", timeout, chromedp.KeyEvent(text))
}

func (s *Session) PressKeys(ctx context.Context, combo string) error {
	chord, err := ParseKeyChord(combo)
	if err != nil {
		return err
	}
	down, up := chord.events()
	if err := s.runWithTimeout(ctx, "key_chord", keyTimeout, down, up); err != nil {
		return fmt.Errorf("failed to press %q: %w", combo, err)
	}
	return nil
}

// -- Scrolling and feedback --

func (s *Session) ScrollBy(ctx context.Context, dx, dy int) error {
	script := fmt.Sprintf("window.scrollBy(%d, %d)", dx, dy)
	return s.runWithTimeout(ctx, "scroll_by", keyTimeout, chromedp.Evaluate(script, nil))
}

func (s *Session) Highlight(ctx context.Context, x, y float64) error {
	var ok bool
	if err := s.runWithTimeout(ctx, "highlight", keyTimeout, chromedp.Evaluate(buildHighlightScript(x, y), &ok)); err != nil {
		// Feedback is cosmetic; a page that refuses scripts still works.
		s.logger.Debug("Pointer highlight failed.", zap.Error(err))
	}
	return nil
}

// -- Capture --

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.runWithTimeout(ctx, "screenshot", 30*time.Second, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// URL returns the tab's current location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.runWithTimeout(ctx, "location", 10*time.Second, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read current URL: %w", err)
	}
	return loc, nil
}

// WaitStable blocks until the document body is ready and the network has
// been quiet for a short period, or ctx is done.
func (s *Session) WaitStable(ctx context.Context) error {
	if err := s.runActions(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return err
	}
	s.mu.Lock()
	tracker := s.tracker
	s.mu.Unlock()
	if tracker == nil {
		return nil
	}
	return tracker.WaitNetworkIdle(ctx, networkQuietPeriod)
}

package browser

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/domain"
)

// Session wraps one automated browser for one room. The underlying
// resource is not safe for concurrent use, so every operation is
// submitted to a dedicated worker goroutine and executed FIFO; callers
// park on the result channel while the worker runs.
type Session struct {
	room    domain.RoomCode
	driver  Driver
	running atomic.Bool

	// Resource handles, touched only by the worker goroutine.
	engine  Engine
	browser Browser
	bctx    Context
	page    Page

	ops       chan task
	opMu      sync.RWMutex
	opsClosed bool

	popupMu       sync.Mutex
	blockedPopups []string
}

type task struct {
	fn   func() error
	done chan error
}

func NewSession(room domain.RoomCode, driver Driver) *Session {
	s := &Session{
		room:   room,
		driver: driver,
		ops:    make(chan task, 64),
	}
	go s.worker()
	return s
}

func (s *Session) worker() {
	for t := range s.ops {
		t.done <- t.fn()
	}
}

// submit hands fn to the worker and waits for its result. After the
// session shuts down, submissions fail with ErrNotStarted.
func (s *Session) submit(fn func() error) error {
	s.opMu.RLock()
	if s.opsClosed {
		s.opMu.RUnlock()
		return domain.ErrNotStarted
	}
	done := make(chan error, 1)
	s.ops <- task{fn: fn, done: done}
	s.opMu.RUnlock()
	return <-done
}

func (s *Session) closeOps() {
	s.opMu.Lock()
	if !s.opsClosed {
		s.opsClosed = true
		close(s.ops)
	}
	s.opMu.Unlock()
}

// Running reports whether the session has a live page. It flips false
// at the very start of Stop, before any teardown, so streaming loops
// observe shutdown within one iteration.
func (s *Session) Running() bool { return s.running.Load() }

func (s *Session) Room() domain.RoomCode { return s.room }

// Start acquires the browsing resource. No-op when already running.
func (s *Session) Start(width, height int) error {
	if s.running.Load() {
		return nil
	}
	return s.submit(func() error { return s.start(width, height) })
}

func (s *Session) start(width, height int) error {
	if s.running.Load() {
		return nil
	}

	engine, err := s.driver.Start()
	if err != nil {
		return err
	}
	browser, err := engine.Launch(LaunchOptions{Width: width, Height: height})
	if err != nil {
		_ = engine.Stop()
		return err
	}
	bctx, err := browser.NewContext(width, height)
	if err != nil {
		_ = browser.Close()
		_ = engine.Stop()
		return err
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = engine.Stop()
		return err
	}

	s.engine, s.browser, s.bctx, s.page = engine, browser, bctx, page

	// Registered after the primary page exists, so the hook only ever
	// sees secondary surfaces.
	bctx.OnPage(s.handlePopup)

	s.running.Store(true)
	log.Info().Str("module", "browser").Str("room", string(s.room)).
		Int("width", width).Int("height", height).Msg("session started")
	return nil
}

// Stop releases every handle in reverse acquisition order, best effort.
// Idempotent; safe when start only partially succeeded.
func (s *Session) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	err := s.submit(s.stop)
	s.closeOps()
	return err
}

func (s *Session) stop() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, err)
		}
		s.page = nil
	}
	if s.bctx != nil {
		if err := s.bctx.Close(); err != nil {
			errs = append(errs, err)
		}
		s.bctx = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, err)
		}
		s.browser = nil
	}
	if s.engine != nil {
		if err := s.engine.Stop(); err != nil {
			errs = append(errs, err)
		}
		s.engine = nil
	}

	s.popupMu.Lock()
	blocked := len(s.blockedPopups)
	s.popupMu.Unlock()
	log.Info().Str("module", "browser").Str("room", string(s.room)).
		Int("blocked_popups", blocked).Msg("session stopped")
	return errors.Join(errs...)
}

func (s *Session) handlePopup(p Page) {
	url := p.URL()
	if url == "" {
		url = "about:blank"
	}
	s.popupMu.Lock()
	s.blockedPopups = append(s.blockedPopups, url)
	s.popupMu.Unlock()
	if err := p.Close(); err != nil {
		log.Warn().Err(err).Str("module", "browser").Str("room", string(s.room)).Msg("closing popup")
		return
	}
	log.Info().Str("module", "browser").Str("room", string(s.room)).
		Str("url", url).Msg("blocked popup")
}

// BlockedPopups returns the URLs of popups closed so far, diagnostics only.
func (s *Session) BlockedPopups() []string {
	s.popupMu.Lock()
	defer s.popupMu.Unlock()
	return append([]string(nil), s.blockedPopups...)
}

// Navigate loads a URL, defaulting the scheme to https and waiting for
// basic document readiness.
func (s *Session) Navigate(rawURL string) error {
	return s.submit(func() error {
		if s.page == nil {
			return domain.ErrNotStarted
		}
		url := rawURL
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			url = "https://" + url
		}
		if err := s.page.Goto(url); err != nil {
			return err
		}
		log.Info().Str("module", "browser").Str("room", string(s.room)).
			Str("url", url).Msg("navigated")
		return nil
	})
}

func (s *Session) Click(x, y int) error {
	return s.submit(func() error {
		if s.page == nil {
			return domain.ErrNotStarted
		}
		return s.page.Click(float64(x), float64(y))
	})
}

func (s *Session) TypeText(text string) error {
	return s.submit(func() error {
		if s.page == nil {
			return domain.ErrNotStarted
		}
		return s.page.Type(text)
	})
}

func (s *Session) PressKey(key string) error {
	return s.submit(func() error {
		if s.page == nil {
			return domain.ErrNotStarted
		}
		return s.page.Press(key)
	})
}

func (s *Session) Scroll(deltaX, deltaY int) error {
	return s.submit(func() error {
		if s.page == nil {
			return domain.ErrNotStarted
		}
		return s.page.Wheel(float64(deltaX), float64(deltaY))
	})
}

// Screenshot captures the current page as a compressed jpeg.
func (s *Session) Screenshot() ([]byte, error) {
	var shot []byte
	err := s.submit(func() error {
		if s.page == nil {
			return domain.ErrNotStarted
		}
		var err error
		shot, err = s.page.Screenshot()
		return err
	})
	return shot, err
}

func (s *Session) CurrentURL() (string, error) {
	var url string
	err := s.submit(func() error {
		if s.page == nil {
			return domain.ErrNotStarted
		}
		url = s.page.URL()
		return nil
	})
	return url, err
}

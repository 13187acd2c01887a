package browser

import (
	"fmt"
	"io"

	"github.com/playwright-community/playwright-go"
)

// jpeg quality for frame capture; transfer size matters more than
// fidelity at 20 fps.
const screenshotQuality = 50

// PlaywrightDriver adapts playwright-go to the capability interfaces.
// Each session runs its own playwright instance so sessions never share
// driver state.
type PlaywrightDriver struct{}

func NewPlaywrightDriver() *PlaywrightDriver { return &PlaywrightDriver{} }

// Install downloads the browser binaries once at startup.
func (PlaywrightDriver) Install() error {
	return playwright.Install(&playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	})
}

func (PlaywrightDriver) Start() (Engine, error) {
	pw, err := playwright.Run(&playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	return &pwEngine{pw: pw}, nil
}

type pwEngine struct {
	pw *playwright.Playwright
}

// Launch opens a headed Chromium positioned outside any visible display
// region: audio keeps playing and CDP screenshots keep working without
// a window on screen.
func (e *pwEngine) Launch(opts LaunchOptions) (Browser, error) {
	browser, err := e.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(false),
		Args: []string{
			"--window-position=-32000,-32000",
			fmt.Sprintf("--window-size=%d,%d", opts.Width, opts.Height),
			"--autoplay-policy=no-user-gesture-required",
			"--disable-background-timer-throttling",
			"--disable-backgrounding-occluded-windows",
			"--disable-renderer-backgrounding",
			"--force-device-scale-factor=1",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	return &pwBrowser{browser: browser}, nil
}

func (e *pwEngine) Stop() error { return e.pw.Stop() }

type pwBrowser struct {
	browser playwright.Browser
}

func (b *pwBrowser) NewContext(width, height int) (Context, error) {
	ctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: width, Height: height},
	})
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	return &pwContext{ctx: ctx}, nil
}

func (b *pwBrowser) Close() error { return b.browser.Close() }

type pwContext struct {
	ctx playwright.BrowserContext
}

func (c *pwContext) NewPage() (Page, error) {
	page, err := c.ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &pwPage{page: page}, nil
}

func (c *pwContext) OnPage(fn func(Page)) {
	c.ctx.OnPage(func(p playwright.Page) { fn(&pwPage{page: p}) })
}

func (c *pwContext) Close() error { return c.ctx.Close() }

type pwPage struct {
	page playwright.Page
}

func (p *pwPage) Goto(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (p *pwPage) Click(x, y float64) error { return p.page.Mouse().Click(x, y) }

func (p *pwPage) Type(text string) error { return p.page.Keyboard().Type(text) }

func (p *pwPage) Press(key string) error { return p.page.Keyboard().Press(key) }

func (p *pwPage) Wheel(deltaX, deltaY float64) error {
	return p.page.Mouse().Wheel(deltaX, deltaY)
}

func (p *pwPage) Screenshot() ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypeJpeg,
		Quality: playwright.Int(screenshotQuality),
	})
}

func (p *pwPage) URL() string { return p.page.URL() }

func (p *pwPage) Close() error { return p.page.Close() }

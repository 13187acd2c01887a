// Package browser owns the per-room automated browsing session: the
// resource wrapper, its serialized execution, the session manager with
// controller records, and the shared audio capture device.
package browser

// The automation engine is consumed through these capability
// interfaces. Acquisition order is fixed: Driver starts an Engine, the
// Engine launches a Browser (the off-screen browsing surface), the
// Browser opens a Context sized to the viewport, and the Context opens
// the Page all participants see.

type Driver interface {
	Start() (Engine, error)
}

type Engine interface {
	Launch(opts LaunchOptions) (Browser, error)
	Stop() error
}

type LaunchOptions struct {
	Width  int
	Height int
}

type Browser interface {
	NewContext(width, height int) (Context, error)
	Close() error
}

type Context interface {
	NewPage() (Page, error)
	// OnPage registers a hook for pages opened after the primary one,
	// i.e. popups and secondary tabs.
	OnPage(fn func(Page))
	Close() error
}

type Page interface {
	Goto(url string) error
	Click(x, y float64) error
	Type(text string) error
	Press(key string) error
	Wheel(deltaX, deltaY float64) error
	Screenshot() ([]byte, error)
	URL() string
	Close() error
}

package app

import "termbridge/internal/render"

// hostMode is how the app reads local input.
type hostMode string

const (
	// hostScreen polls tcell events from the accelerated screen.
	hostScreen hostMode = "screen"
	// hostRaw reads stdin in raw mode next to the canvas renderer.
	hostRaw hostMode = "raw"
)

func hostModeFor(kind render.Kind) hostMode {
	if kind == render.KindScreen {
		return hostScreen
	}
	return hostRaw
}

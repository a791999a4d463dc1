package compositor

// Backends available to Builder.Backend.
import (
	_ "github.com/bnema/wlcore/backend/evdev"
	_ "github.com/bnema/wlcore/backend/headless"
	_ "github.com/bnema/wlcore/backend/wayland"
)

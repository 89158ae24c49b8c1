//go:build windows

package visibility

import "context"

// No job control on Windows, the console window is always foreground.
func watchJobControl(ctx context.Context, t *Tracker) {}

//go:build !windows

package visibility

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// watchJobControl marks the tracker background on Ctrl-Z and foreground
// again on resume, then suspends the process as the shell expects.
func watchJobControl(ctx context.Context, t *Tracker) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTSTP, syscall.SIGCONT)
	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				switch sig {
				case syscall.SIGTSTP:
					logrus.Debugln("Suspended, pausing refresh")
					t.Set(false)
					signal.Reset(syscall.SIGTSTP)
					if err := syscall.Kill(syscall.Getpid(), syscall.SIGTSTP); err != nil {
						logrus.WithError(err).Warn("Failed to suspend")
					}
					signal.Notify(sigCh, syscall.SIGTSTP)
				case syscall.SIGCONT:
					logrus.Debugln("Resumed")
					t.Set(true)
				}
			}
		}
	}()
}

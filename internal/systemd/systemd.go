// Package systemd reports worker state to systemd for Type=notify units.
// Every call is a no-op when the process is not started by systemd.
package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

func notify(state string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		slog.Warn("failed to notify systemd", slog.String("state", state), slog.Any("error", err))
		return false
	}
	return sent
}

// Ready reports that the worker finished starting up.
func Ready() bool {
	return notify(daemon.SdNotifyReady)
}

func Stopping() bool {
	return notify(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func Status(status string) bool {
	return notify("STATUS=" + status)
}

// Watchdog pings the systemd watchdog at half the configured interval for
// as long as healthy reports true. It returns immediately when the unit has
// no WatchdogSec.
func Watchdog(ctx context.Context, healthy func() bool) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !healthy() {
					slog.Warn("worker unhealthy, withholding watchdog ping")
					continue
				}
				notify(daemon.SdNotifyWatchdog)
			}
		}
	}()
}

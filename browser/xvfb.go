package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// x11SocketDir is where an X server listening on :N creates socket XN.
var x11SocketDir = "/tmp/.X11-unix"

// displaySocket maps ":99" or ":99.0" to the X server's unix socket path.
func displaySocket(display string) (string, error) {
	num, ok := strings.CutPrefix(display, ":")
	if !ok {
		return "", fmt.Errorf("display %q: want :N", display)
	}
	num, _, _ = strings.Cut(num, ".")
	if _, err := strconv.Atoi(num); err != nil {
		return "", fmt.Errorf("display %q: want :N", display)
	}
	return filepath.Join(x11SocketDir, "X"+num), nil
}

// startXvfb runs a virtual display for a headful browser and waits until the
// server socket accepts Chrome, at most xvfbReadyTimeout.
func (m *Manager) startXvfb(ctx context.Context) error {
	if m.xvfb != nil {
		return nil
	}
	display := m.cfg.XvfbDisplay
	sock, err := displaySocket(display)
	if err != nil {
		return err
	}

	cmd := exec.Command("Xvfb", display, "-screen", "0", "1280x1024x24", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	if err := waitForFile(ctx, sock, xvfbReadyTimeout); err != nil {
		m.stopXvfb()
		return fmt.Errorf("xvfb %s not ready: %w", display, err)
	}
	m.cfg.Logger.Info("browser: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return nil
}

const xvfbReadyTimeout = 5 * time.Second

func waitForFile(ctx context.Context, path string, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// stopXvfb asks the display server to exit and kills it if it lingers.
func (m *Manager) stopXvfb() {
	if m.xvfb == nil || m.xvfb.Process == nil {
		m.xvfb = nil
		return
	}
	proc := m.xvfb
	m.xvfb = nil

	done := make(chan struct{})
	go func() {
		proc.Wait()
		close(done)
	}()
	proc.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		proc.Process.Kill()
		<-done
	}
	m.cfg.Logger.Info("browser: xvfb stopped")
}

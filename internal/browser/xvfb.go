package browser

import (
	"fmt"
	"os/exec"
	"time"
)

// xvfbSettle is how long Xvfb gets to open its socket before Chrome starts.
const xvfbSettle = 500 * time.Millisecond

// screenSize is the Xvfb screen, sized to the viewport when one is set.
func (c Config) screenSize() string {
	w, h := 1920, 1080
	if c.Viewport.Width > 0 && c.Viewport.Height > 0 {
		w, h = c.Viewport.Width, c.Viewport.Height
	}
	return fmt.Sprintf("%dx%dx24", w, h)
}

// startXvfb runs a virtual display for headful mode. Caller holds m.mu.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil
	}
	cmd := exec.Command("Xvfb", m.cfg.XvfbDisplay, "-screen", "0", m.cfg.screenSize(), "-ac")
	if err := cmd.Start(); err != nil {
		return err
	}
	m.xvfb = cmd
	time.Sleep(xvfbSettle)
	m.cfg.Logger.Info("browser: xvfb started", "display", m.cfg.XvfbDisplay, "pid", cmd.Process.Pid)
	return nil
}

// stopXvfb kills the display process if one is running. Caller holds m.mu.
func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	_ = m.xvfb.Process.Kill()
	_ = m.xvfb.Wait()
	m.xvfb = nil
	m.cfg.Logger.Info("browser: xvfb stopped")
}

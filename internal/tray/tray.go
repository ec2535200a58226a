// Package tray provides a system tray interface for live ROM capture.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/app"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/rom"
)

// Tray represents the system tray application.
type Tray struct {
	onStart    func()
	onCapture  func()
	onSkip     func()
	onSettings func()
	onQuit     func()
	status     string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuStart   *systray.MenuItem
	menuCapture *systray.MenuItem
	menuSkip    *systray.MenuItem
	menuStatus  *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{status: "Idle"}
}

// OnStart sets the callback for the start session menu item.
func (t *Tray) OnStart(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnCapture sets the callback for the capture now menu item.
func (t *Tray) OnCapture(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCapture = fn
}

// OnSkip sets the callback for the skip menu item.
func (t *Tray) OnSkip(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSkip = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("ShoulderCare")
	systray.SetTooltip("ShoulderCare range-of-motion capture")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Capture status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuStart = systray.AddMenuItem("Start session", "Start a guided ROM measurement")
	t.menuCapture = systray.AddMenuItem("Capture now", "Record the current step's maximum")
	t.menuSkip = systray.AddMenuItem("Skip", "End the session without recording")
	t.menuCapture.Disable()
	t.menuSkip.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open in browser...", "Open the capture page")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit ShoulderCare")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuStart.ClickedCh:
				t.call(func() func() { return t.onStart })
			case <-t.menuCapture.ClickedCh:
				t.call(func() func() { return t.onCapture })
			case <-t.menuSkip.ClickedCh:
				t.call(func() func() { return t.onSkip })
			case <-menuSettings.ClickedCh:
				t.call(func() func() { return t.onSettings })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// call runs the callback returned by get outside the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.call(func() func() { return t.onQuit })
	systray.Quit()
}

// Update reflects a session update in the menu.
func (t *Tray) Update(u app.Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = StatusLine(u)
	if t.menuStatus == nil {
		return
	}
	t.menuStatus.SetTitle(t.status)

	running := u.Kind != app.UpdateCompleted && u.Kind != app.UpdateStopped
	for _, item := range []*systray.MenuItem{t.menuCapture, t.menuSkip} {
		if running {
			item.Enable()
		} else {
			item.Disable()
		}
	}
	if running {
		t.menuStart.Disable()
	} else {
		t.menuStart.Enable()
	}
}

// Status returns the current status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// StatusLine renders a one-line summary of a session update.
func StatusLine(u app.Update) string {
	switch u.Kind {
	case app.UpdateStopped:
		return "Idle"
	case app.UpdateCompleted:
		if u.Result != nil && u.Result.Skipped {
			return "Session skipped"
		}
		return "Session complete: " + summary(u.Session.Result)
	}

	s := u.Session
	if !s.Step.Measuring() {
		return "Ready: " + string(s.Step)
	}
	if u.Event != nil && u.Event.Type == rom.EventLowVisibility {
		return fmt.Sprintf("%s: move into view", s.Step)
	}
	if s.Captured {
		return fmt.Sprintf("%s: captured %.0f°", s.Step, s.MaxAngle)
	}
	return fmt.Sprintf("%s: %.0f° (max %.0f°, hold %.0f%%)", s.Step, s.CurrentAngle, s.MaxAngle, s.HoldProgress()*100)
}

func summary(r rom.Result) string {
	return fmt.Sprintf("flexion %s, abduction %s, rotation %s",
		degrees(r.Flexion), degrees(r.Abduction), degrees(r.ExternalRotation))
}

func degrees(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f°", *v)
}

// Quit stops the tray event loop, returning from Run.
func Quit() {
	systray.Quit()
}

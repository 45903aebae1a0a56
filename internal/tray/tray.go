// Package tray provides the system tray menu for Aureum.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/aureum/internal/controller"
)

// Tray is the system tray menu. It shows the formation state and lets the
// user connect the hand tracker without opening the viewer.
type Tray struct {
	onToggle func(enabled bool) error
	onOpen   func()
	onQuit   func()
	tracking bool
	status   string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuState  *systray.MenuItem
}

// New creates a Tray with tracking shown as disconnected.
func New() *Tray {
	return &Tray{status: statusLine(controller.Frame{})}
}

// OnToggle sets the callback for the Connect/Disconnect Hands item. If it
// returns an error the menu keeps its previous state.
func (t *Tray) OnToggle(fn func(enabled bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback for the Open Viewer item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback for the Quit item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Aureum")
	systray.SetTooltip("Aureum photo formation")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.tracking), "Connect or disconnect the hand tracker")
	systray.AddSeparator()
	t.menuState = systray.AddMenuItem(t.status, "Current formation")
	t.menuState.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Viewer...", "Open the viewer in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Aureum")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// handleToggle flips tracking through the callback, outside the lock.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	want := !t.tracking
	callback := t.onToggle
	t.mu.RUnlock()

	if callback != nil {
		if err := callback(want); err != nil {
			return
		}
	}
	t.SetTracking(want)
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetTracking updates the toggle item, for changes made elsewhere such
// as the web viewer.
func (t *Tray) SetTracking(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracking = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// Update shows f in the state line. Identical lines are not re-set.
func (t *Tray) Update(f controller.Frame) {
	line := statusLine(f)

	t.mu.Lock()
	defer t.mu.Unlock()

	if line == t.status {
		return
	}
	t.status = line
	if t.menuState != nil {
		t.menuState.SetTitle(line)
	}
}

// Tracking reports what the toggle item currently shows.
func (t *Tray) Tracking() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tracking
}

// Status returns the current state line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func toggleTitle(tracking bool) string {
	if tracking {
		return "● Disconnect Hands"
	}
	return "○ Connect Hands"
}

func statusLine(f controller.Frame) string {
	photos := "photos"
	if len(f.Photos) == 1 {
		photos = "photo"
	}
	return fmt.Sprintf("%s · %d %s", f.State, len(f.Photos), photos)
}

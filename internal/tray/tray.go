// Package tray provides the system tray interface: one checkbox per control
// flag, a live hand status line and Quit.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/handsfree/internal/state"
)

// DefaultRefresh is how often the status line and checkboxes are synced.
const DefaultRefresh = 500 * time.Millisecond

// Controller is the part of the status query interface the tray uses.
type Controller interface {
	Toggle(t state.Target) bool
	Flags() state.Flags
	Pointer() state.Pointer
}

// Tray represents the system tray application.
type Tray struct {
	ctrl    Controller
	refresh time.Duration
	onQuit  func()
	mu      sync.RWMutex
	done    chan struct{}
	once    sync.Once

	// Menu items stored for later updates
	menuFlags map[state.Target]*systray.MenuItem
	menuHand  *systray.MenuItem
}

var flagLabels = map[state.Target]string{
	state.TargetMouse:    "Mouse control",
	state.TargetSpeech:   "Speech control",
	state.TargetAutoType: "Auto-type",
}

// New creates a new Tray bound to ctrl.
func New(ctrl Controller) *Tray {
	return &Tray{
		ctrl:      ctrl,
		refresh:   DefaultRefresh,
		done:      make(chan struct{}),
		menuFlags: make(map[state.Target]*systray.MenuItem),
	}
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	t.stopRefresh()
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("handsfree")
	systray.SetTooltip("Hand pointer and dictation")

	flags := t.ctrl.Flags()
	t.mu.Lock()
	for _, target := range state.Targets {
		label := flagLabels[target]
		t.menuFlags[target] = systray.AddMenuItemCheckbox(label, "Toggle "+label, flags.Get(target))
	}
	systray.AddSeparator()

	t.menuHand = systray.AddMenuItem(HandStatus(t.ctrl.Pointer()), "Hand tracking status")
	t.menuHand.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit handsfree")

	for _, target := range state.Targets {
		go t.watch(target, t.menuFlags[target])
	}

	go func() {
		select {
		case <-menuQuit.ClickedCh:
			t.handleQuit()
		case <-t.done:
		}
	}()

	go t.refreshLoop()
}

// watch forwards clicks on one checkbox.
func (t *Tray) watch(target state.Target, item *systray.MenuItem) {
	for {
		select {
		case <-item.ClickedCh:
			t.handleToggle(target)
		case <-t.done:
			return
		}
	}
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	t.stopRefresh()
}

// handleToggle flips one flag and reflects the result in the menu.
func (t *Tray) handleToggle(target state.Target) {
	t.ctrl.Toggle(target)
	t.sync()
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	t.Quit()
}

// refreshLoop keeps the menu in step with changes made elsewhere, such as
// hotkeys or the HTTP surface.
func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(t.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.sync()
		}
	}
}

// sync updates the checkboxes and hand status line from the controller.
func (t *Tray) sync() {
	flags := t.ctrl.Flags()
	status := HandStatus(t.ctrl.Pointer())

	t.mu.RLock()
	defer t.mu.RUnlock()

	for target, item := range t.menuFlags {
		if item == nil {
			continue
		}
		if flags.Get(target) {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
	if t.menuHand != nil {
		t.menuHand.SetTitle(status)
	}
}

func (t *Tray) stopRefresh() {
	t.once.Do(func() { close(t.done) })
}

// HandStatus renders the hand status line.
func HandStatus(p state.Pointer) string {
	if !p.Visible {
		return "Hand: not visible"
	}
	return fmt.Sprintf("Hand: visible (%d, %d)", p.X, p.Y)
}

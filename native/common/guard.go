package common

import "errors"

// ErrModulePaused is returned when a mutating entry point is invoked while
// its module is administratively paused.
var ErrModulePaused = errors.New("module paused")

// PauseView reports the pause state of named modules.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the named module is paused. A nil view
// or empty module name never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

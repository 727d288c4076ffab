package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports the pause toggle for a named module.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails fast with ErrModulePaused when the named module is paused.
// A nil view or empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

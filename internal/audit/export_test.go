package audit

import "time"

// SetClock replaces the engine's time source in tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

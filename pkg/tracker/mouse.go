package tracker

import "time"

// MouseTracker translates raw mouse samples into records. Each event is
// self-contained, so no pairing state exists and no masking applies: pointer
// geometry carries no content-privacy concern.
type MouseTracker struct {
	translated int
}

// NewMouseTracker constructs a mouse tracker.
func NewMouseTracker() *MouseTracker {
	return &MouseTracker{}
}

// OnMove translates a pointer movement sample.
func (t *MouseTracker) OnMove(x, y float64, at time.Time) MouseRecord {
	t.translated++
	return MouseRecord{Action: MouseActionMove, Time: at, X: x, Y: y}
}

// OnScroll translates a scroll sample.
func (t *MouseTracker) OnScroll(x, y, dx, dy float64, at time.Time) MouseRecord {
	t.translated++
	return MouseRecord{Action: MouseActionScroll, Time: at, X: x, Y: y, DX: dx, DY: dy}
}

// OnClick translates a button press or release sample.
func (t *MouseTracker) OnClick(x, y float64, button string, pressed bool, at time.Time) MouseRecord {
	t.translated++
	return MouseRecord{Action: MouseActionClick, Time: at, X: x, Y: y, Button: button, Pressed: pressed}
}

// Translated reports how many records this tracker has produced.
func (t *MouseTracker) Translated() int {
	return t.translated
}

package tracker

import "time"

// EventKind discriminates the raw event union delivered by capture sources.
type EventKind int

const (
	KeyDown EventKind = iota
	KeyUp
	MouseMove
	MouseScroll
	MouseClick
)

// String returns the wire name of the kind.
func (k EventKind) String() string {
	switch k {
	case KeyDown:
		return "key_down"
	case KeyUp:
		return "key_up"
	case MouseMove:
		return "mouse_move"
	case MouseScroll:
		return "mouse_scroll"
	case MouseClick:
		return "mouse_click"
	default:
		return "unknown"
	}
}

// RawEvent is one timestamped sample from an OS input hook. Only the fields
// implied by Kind are meaningful; the rest stay at their zero values.
type RawEvent struct {
	Kind EventKind
	Time time.Time

	// Key identity for KeyDown/KeyUp. Opaque token: a character for
	// printable keys, a name such as "shift" or "backspace" otherwise.
	Key string

	// Pointer coordinates for the mouse kinds.
	X float64
	Y float64

	// Scroll deltas for MouseScroll.
	DX float64
	DY float64

	// Button identity and state for MouseClick.
	Button  string
	Pressed bool
}

// IsKey reports whether the event belongs to the keyboard stream.
func (e RawEvent) IsKey() bool {
	return e.Kind == KeyDown || e.Kind == KeyUp
}

// IsMouse reports whether the event belongs to the mouse stream.
func (e RawEvent) IsMouse() bool {
	return e.Kind == MouseMove || e.Kind == MouseScroll || e.Kind == MouseClick
}

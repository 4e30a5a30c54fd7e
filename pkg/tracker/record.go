package tracker

import "time"

// KeyAction distinguishes the two record flavours of the key stream.
type KeyAction string

const (
	KeyPress   KeyAction = "press"
	KeyRelease KeyAction = "release"
)

// KeyRecord is one finalized, privacy-masked keyboard observation.
// Duration is meaningful only when Action is KeyRelease; press records
// carry no duration and exist for debug observability.
type KeyRecord struct {
	Action   KeyAction
	Key      string
	Time     time.Time
	Duration time.Duration
}

// HasDuration reports whether the record carries a press/release span.
func (r KeyRecord) HasDuration() bool {
	return r.Action == KeyRelease
}

// MouseAction distinguishes the mouse record flavours.
type MouseAction string

const (
	MouseActionMove   MouseAction = "move"
	MouseActionScroll MouseAction = "scroll"
	MouseActionClick  MouseAction = "click"
)

// MouseRecord is one self-contained mouse observation. Button and Pressed
// are meaningful only for clicks, DX/DY only for scrolls; absent fields are
// persisted empty, never fabricated.
type MouseRecord struct {
	Action  MouseAction
	Time    time.Time
	X       float64
	Y       float64
	Button  string
	Pressed bool
	DX      float64
	DY      float64
}

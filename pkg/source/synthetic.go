package source

import (
	"context"
	"time"

	"github.com/offlinefirst/keytrace/pkg/tracker"
)

// SyntheticOptions controls the scripted event timelines used when no OS
// hook is available.
type SyntheticOptions struct {
	// Step is the spacing between scripted events. Defaults to 50ms.
	Step time.Duration
	// Clock anchors the timeline start.
	Clock func() time.Time
}

func (o SyntheticOptions) normalized() SyntheticOptions {
	if o.Step <= 0 {
		o.Step = 50 * time.Millisecond
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// NewSyntheticKeySource returns a source replaying a short typing burst:
// a few character keys with held overlaps and a modifier, the shapes a
// real keyboard hook produces.
func NewSyntheticKeySource(opts SyntheticOptions) Source {
	opts = opts.normalized()
	return SourceFunc(func(ctx context.Context, emit func(tracker.RawEvent) error) error {
		start := opts.Clock().UTC()
		step := opts.Step
		timeline := []tracker.RawEvent{
			{Kind: tracker.KeyDown, Time: start, Key: "h"},
			{Kind: tracker.KeyUp, Time: start.Add(step), Key: "h"},
			{Kind: tracker.KeyDown, Time: start.Add(2 * step), Key: "shift"},
			{Kind: tracker.KeyDown, Time: start.Add(3 * step), Key: "i"},
			{Kind: tracker.KeyUp, Time: start.Add(4 * step), Key: "i"},
			{Kind: tracker.KeyUp, Time: start.Add(5 * step), Key: "shift"},
			{Kind: tracker.KeyDown, Time: start.Add(6 * step), Key: "space"},
			{Kind: tracker.KeyUp, Time: start.Add(7 * step), Key: "space"},
			{Kind: tracker.KeyDown, Time: start.Add(8 * step), Key: "enter"},
			{Kind: tracker.KeyUp, Time: start.Add(9 * step), Key: "enter"},
		}
		return replay(ctx, timeline, emit)
	})
}

// NewSyntheticMouseSource returns a source replaying pointer movement, a
// scroll and a click pair.
func NewSyntheticMouseSource(opts SyntheticOptions) Source {
	opts = opts.normalized()
	return SourceFunc(func(ctx context.Context, emit func(tracker.RawEvent) error) error {
		start := opts.Clock().UTC()
		step := opts.Step
		timeline := []tracker.RawEvent{
			{Kind: tracker.MouseMove, Time: start, X: 100, Y: 100},
			{Kind: tracker.MouseMove, Time: start.Add(step), X: 160.5, Y: 112},
			{Kind: tracker.MouseScroll, Time: start.Add(2 * step), X: 160.5, Y: 112, DY: -3},
			{Kind: tracker.MouseMove, Time: start.Add(3 * step), X: 240, Y: 180},
			{Kind: tracker.MouseClick, Time: start.Add(4 * step), X: 240, Y: 180, Button: "left", Pressed: true},
			{Kind: tracker.MouseClick, Time: start.Add(5 * step), X: 240, Y: 180, Button: "left", Pressed: false},
		}
		return replay(ctx, timeline, emit)
	})
}

func replay(ctx context.Context, timeline []tracker.RawEvent, emit func(tracker.RawEvent) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, event := range timeline {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(event); err != nil {
			return err
		}
	}
	return nil
}

// Package source provides raw input event streams: OS hook environments
// where available, synthetic timelines everywhere else.
package source

import (
	"context"

	"github.com/offlinefirst/keytrace/pkg/tracker"
)

// Device identifies which input device a source observes.
type Device string

const (
	DeviceKey   Device = "key"
	DeviceMouse Device = "mouse"
)

// Source streams raw input events until its context is cancelled or the
// underlying hook ends. Implementations call emit for each observed event
// and stop on the first emit error.
type Source interface {
	Stream(ctx context.Context, emit func(tracker.RawEvent) error) error
}

// SourceFunc adapts a plain function into a Source.
type SourceFunc func(ctx context.Context, emit func(tracker.RawEvent) error) error

// Stream implements Source.
func (f SourceFunc) Stream(ctx context.Context, emit func(tracker.RawEvent) error) error {
	return f(ctx, emit)
}

// Package dispatch fans raw events from the device sources into a single
// consumer that owns all tracker and session state. The channel between
// producers and consumer is the serialization point: no tracker or session
// method runs concurrently.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/offlinefirst/keytrace/pkg/session"
	"github.com/offlinefirst/keytrace/pkg/source"
	"github.com/offlinefirst/keytrace/pkg/tracker"
)

// rotationTick is how often the consumer checks whether the active session
// has outlived its configured length.
const rotationTick = time.Second

// Options wires a dispatcher.
type Options struct {
	Sessions *session.Manager
	Keys     *tracker.KeyTracker
	Mouse    *tracker.MouseTracker

	// KeySource and MouseSource stream raw events; either may be nil when
	// that device stream is disabled.
	KeySource   source.Source
	MouseSource source.Source

	Logger zerolog.Logger
	Clock  func() time.Time

	// QueueSize bounds the event channel between producers and consumer.
	QueueSize int
}

// Summary reports what one dispatcher run produced.
type Summary struct {
	KeyRecords   int
	MouseRecords int
	Dropped      int
	Rotations    int
	Sessions     []session.Closed
}

// Dispatcher runs the capture loop.
type Dispatcher struct {
	sessions    *session.Manager
	keys        *tracker.KeyTracker
	mouse       *tracker.MouseTracker
	keySource   source.Source
	mouseSource source.Source
	logger      zerolog.Logger
	clock       func() time.Time
	queueSize   int
}

// New validates options and constructs a dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session manager must be provided")
	}
	if opts.KeySource == nil && opts.MouseSource == nil {
		return nil, errors.New("at least one event source must be provided")
	}
	if opts.KeySource != nil && opts.Keys == nil {
		return nil, errors.New("key source needs a key tracker")
	}
	if opts.MouseSource != nil && opts.Mouse == nil {
		return nil, errors.New("mouse source needs a mouse tracker")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Dispatcher{
		sessions:    opts.Sessions,
		keys:        opts.Keys,
		mouse:       opts.Mouse,
		keySource:   opts.KeySource,
		mouseSource: opts.MouseSource,
		logger:      opts.Logger,
		clock:       clock,
		queueSize:   queueSize,
	}, nil
}

// Run opens the first session and captures until ctx is cancelled or every
// source ends. Events already queued when cancellation arrives are drained
// into the active session before it closes, so no observed event is lost.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	summary := Summary{}

	if err := d.sessions.Open(d.clock()); err != nil {
		return summary, fmt.Errorf("open initial session: %w", err)
	}

	events := make(chan tracker.RawEvent, d.queueSize)
	errs := make(chan error, 2)

	var wg sync.WaitGroup
	start := func(name string, src source.Source) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := src.Stream(ctx, func(ev tracker.RawEvent) error {
				select {
				case events <- ev:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error().Err(err).Str("source", name).Msg("event source failed")
				errs <- fmt.Errorf("%s source: %w", name, err)
				return
			}
			d.logger.Debug().Str("source", name).Msg("event source finished")
		}()
	}
	if d.keySource != nil {
		start("key", d.keySource)
	}
	if d.mouseSource != nil {
		start("mouse", d.mouseSource)
	}

	// Closing the channel after the producers exit lets the consumer drain
	// every queued event before shutdown.
	go func() {
		wg.Wait()
		close(events)
	}()

	ticker := time.NewTicker(rotationTick)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				d.finish(&summary)
				return summary, firstError(errs)
			}
			d.handle(ev, &summary)
		case <-ticker.C:
			rotated, err := d.sessions.RotateIfDue(d.clock())
			if err != nil {
				d.logger.Error().Err(err).Msg("session rotation failed")
			}
			if rotated {
				summary.Rotations++
			}
		}
	}
}

func (d *Dispatcher) handle(ev tracker.RawEvent, summary *Summary) {
	switch ev.Kind {
	case tracker.KeyDown:
		if rec, ok := d.keys.OnPress(ev.Key, ev.Time); ok {
			d.writeKey(rec, summary)
		}
	case tracker.KeyUp:
		rec, ok := d.keys.OnRelease(ev.Key, ev.Time)
		if !ok {
			d.sessions.NoteDropped()
			summary.Dropped++
			d.logger.Debug().Msg("release without matching press dropped")
			return
		}
		d.writeKey(rec, summary)
	case tracker.MouseMove:
		d.writeMouse(d.mouse.OnMove(ev.X, ev.Y, ev.Time), summary)
	case tracker.MouseScroll:
		d.writeMouse(d.mouse.OnScroll(ev.X, ev.Y, ev.DX, ev.DY, ev.Time), summary)
	case tracker.MouseClick:
		d.writeMouse(d.mouse.OnClick(ev.X, ev.Y, ev.Button, ev.Pressed, ev.Time), summary)
	default:
		d.logger.Warn().Str("kind", ev.Kind.String()).Msg("unknown event kind ignored")
	}
}

func (d *Dispatcher) writeKey(rec tracker.KeyRecord, summary *Summary) {
	if err := d.sessions.WriteKey(rec); err != nil {
		// A write failure loses one record, never the run.
		d.logger.Error().Err(err).Msg("key record write failed")
		return
	}
	summary.KeyRecords++
}

func (d *Dispatcher) writeMouse(rec tracker.MouseRecord, summary *Summary) {
	if err := d.sessions.WriteMouse(rec); err != nil {
		d.logger.Error().Err(err).Msg("mouse record write failed")
		return
	}
	summary.MouseRecords++
}

func (d *Dispatcher) finish(summary *Summary) {
	if _, ok, err := d.sessions.Close(d.clock()); err != nil {
		d.logger.Error().Err(err).Msg("final session close failed")
	} else if ok {
		d.logger.Info().Msg("final session closed")
	}
	summary.Sessions = d.sessions.ClosedSessions()
}

func firstError(errs chan error) error {
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

package session

import (
	"testing"
	"time"

	"github.com/offlinefirst/keytrace/pkg/tracker"
)

func TestFormatKeyRecordRelease(t *testing.T) {
	at := time.Unix(1717408800, 123456000).UTC()
	rec := tracker.KeyRecord{
		Action:   tracker.KeyRelease,
		Key:      "masked",
		Time:     at,
		Duration: 85 * time.Millisecond,
	}

	got := FormatKeyRecord(rec)
	want := "release,masked,1717408800.123456,0.085000"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFormatKeyRecordPressHasEmptyDuration(t *testing.T) {
	at := time.Unix(1717408800, 0).UTC()
	rec := tracker.KeyRecord{Action: tracker.KeyPress, Key: "shift", Time: at}

	got := FormatKeyRecord(rec)
	want := "press,shift,1717408800.000000,"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFormatMouseRecordVariants(t *testing.T) {
	at := time.Unix(1717408801, 500000000).UTC()

	move := FormatMouseRecord(tracker.MouseRecord{
		Action: tracker.MouseActionMove, Time: at, X: 120.5, Y: 44,
	})
	if move != "move,1717408801.500000,120.5,44,,,," {
		t.Fatalf("unexpected move line %q", move)
	}

	scroll := FormatMouseRecord(tracker.MouseRecord{
		Action: tracker.MouseActionScroll, Time: at, X: 10, Y: 20, DX: 0, DY: -3,
	})
	if scroll != "scroll,1717408801.500000,10,20,,,0,-3" {
		t.Fatalf("unexpected scroll line %q", scroll)
	}

	click := FormatMouseRecord(tracker.MouseRecord{
		Action: tracker.MouseActionClick, Time: at, X: 5, Y: 6, Button: "left", Pressed: true,
	})
	if click != "click,1717408801.500000,5,6,left,true,," {
		t.Fatalf("unexpected click line %q", click)
	}
}

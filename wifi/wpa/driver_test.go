package wpa

import (
	"testing"

	"github.com/the-lightning-land/provd/wifi"
)

func newStateDriver(t *testing.T, state string) (*Driver, chan wifi.DriverEvent) {
	t.Helper()

	events := make(chan wifi.DriverEvent, 32)

	d := &Driver{
		log:    noopLogger{},
		events: events,
		state:  state,
		done:   make(chan struct{}),
	}

	t.Cleanup(func() {
		close(d.done)
		d.wg.Wait()
	})

	return d, events
}

func drain(events chan wifi.DriverEvent) []wifi.DriverEvent {
	var got []wifi.DriverEvent

	for {
		select {
		case ev := <-events:
			got = append(got, ev)
		default:
			return got
		}
	}
}

func TestScanCyclesFailAttempt(t *testing.T) {
	d, events := newStateDriver(t, "disconnected")

	d.arm(false)

	d.handleState("scanning", "no network found")
	d.handleState("disconnected", "no network found")

	got := drain(events)
	if len(got) != 1 || got[0].Kind != wifi.DriverDisconnected {
		t.Fatalf("expected one disconnect for the failed attempt, got %v", got)
	}

	// without a new attempt further cycles stay quiet
	for i := 0; i < 3; i++ {
		d.handleState("scanning", "")
		d.handleState("inactive", "")
	}

	if got := drain(events); len(got) != 0 {
		t.Fatalf("expected no events without an attempt, got %v", got)
	}

	d.arm(false)

	d.handleState("scanning", "")
	d.handleState("inactive", "")

	if got := drain(events); len(got) != 1 {
		t.Fatalf("expected the re-issued attempt to fail once, got %v", got)
	}
}

func TestReplacingAssociationIsNotReported(t *testing.T) {
	d, events := newStateDriver(t, "completed")

	d.arm(true)

	d.handleState("disconnected", "station leaving")

	if got := drain(events); len(got) != 0 {
		t.Fatalf("expected the teardown to be swallowed, got %v", got)
	}

	d.handleState("scanning", "")
	d.handleState("associating", "")
	d.handleState("disconnected", "4-way handshake timeout")

	got := drain(events)
	if len(got) != 1 || got[0].Reason != "4-way handshake timeout" {
		t.Fatalf("expected the failed attempt to be reported, got %v", got)
	}
}

func TestLinkLossIsReported(t *testing.T) {
	d, events := newStateDriver(t, "completed")

	d.handleState("disconnected", "beacon loss")

	got := drain(events)
	if len(got) != 1 || got[0].Reason != "beacon loss" {
		t.Fatalf("expected the drop to be reported, got %v", got)
	}
}

func TestDisarmedCyclesStayQuiet(t *testing.T) {
	d, events := newStateDriver(t, "disconnected")

	d.arm(false)
	d.disarm()

	d.handleState("scanning", "")
	d.handleState("disconnected", "")

	if got := drain(events); len(got) != 0 {
		t.Fatalf("expected no events once disarmed, got %v", got)
	}
}

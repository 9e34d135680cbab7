package engine_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/askuula/rytmi"
	"github.com/askuula/rytmi/engine"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTimeline(name string, cueSamples ...int) *rytmi.Timeline {
	tl := rytmi.NewTimeline(name, 44100)
	tr := rytmi.NewCueTrack("beat")
	for _, s := range cueSamples {
		tr.AddCue(&rytmi.Cue{StartSample: s, EndSample: s})
	}
	tl.AddTrack(tr)
	return tl
}

func TestLoadTimeline(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	tl := testTimeline("song", 100)
	if err := eng.LoadTimeline(tl); err != nil {
		t.Fatalf("LoadTimeline failed: %v", err)
	}
	if !eng.IsLoaded(tl) {
		t.Errorf("timeline should be loaded")
	}
	if got := eng.LoadedTimelines(nil); len(got) != 1 || got[0] != tl {
		t.Errorf("LoadedTimelines = %v", got)
	}
	// loading again is a no-op, not a duplicate
	if err := eng.LoadTimeline(tl); err != nil {
		t.Fatalf("re-loading failed: %v", err)
	}
	if got := eng.LoadedTimelines(nil); len(got) != 1 {
		t.Errorf("re-loading should not duplicate the timeline, got %v entries", len(got))
	}
	eng.UnloadTimeline(tl)
	if eng.IsLoaded(tl) {
		t.Errorf("timeline should be unloaded")
	}
}

func TestLoadTimelineRejectsInvalid(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	bad := &rytmi.Timeline{SourceName: "bad", SampleRate: 0}
	if err := eng.LoadTimeline(bad); err == nil {
		t.Errorf("loading an invalid timeline should fail")
	}
	if eng.IsLoaded(bad) {
		t.Errorf("a rejected timeline must not be loaded")
	}
}

func TestLoadTimelineResetsCursor(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	tl := testTimeline("song")
	tl.Update(0, 5000, rytmi.TimeSlice{})
	if err := eng.LoadTimeline(tl); err != nil {
		t.Fatalf("LoadTimeline failed: %v", err)
	}
	if tl.SampleTime() != 0 {
		t.Errorf("loading should reset the timeline cursor, got %v", tl.SampleTime())
	}
}

// Registration before load and after load both end up subscribed.
func TestRegistrationOrderIndependence(t *testing.T) {
	for _, registerFirst := range []bool{true, false} {
		eng := engine.New(nil, quietLogger())
		tl := testTimeline("song", 100)
		fired := 0
		owner := "o"
		if registerFirst {
			eng.RegisterForEvents("beat", owner, func(c *rytmi.Cue) { fired++ })
			if err := eng.LoadTimeline(tl); err != nil {
				t.Fatal(err)
			}
		} else {
			if err := eng.LoadTimeline(tl); err != nil {
				t.Fatal(err)
			}
			eng.RegisterForEvents("beat", owner, func(c *rytmi.Cue) { fired++ })
		}
		eng.ProcessTick("song", 0, 200, 0.1)
		if fired != 1 {
			t.Errorf("registerFirst=%v: cue fired %v times, want 1", registerFirst, fired)
		}
	}
}

func TestProcessTickRoutesByClip(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	a := testTimeline("a", 100)
	b := testTimeline("b", 100)
	if err := eng.LoadTimeline(a); err != nil {
		t.Fatal(err)
	}
	if err := eng.LoadTimeline(b); err != nil {
		t.Fatal(err)
	}
	var fired []string
	aTrack := a.TrackByID("beat")
	bTrack := b.TrackByID("beat")
	aTrack.RegisterHandler("t", func(c *rytmi.Cue) { fired = append(fired, "a") })
	bTrack.RegisterHandler("t", func(c *rytmi.Cue) { fired = append(fired, "b") })
	eng.ProcessTick("a", 0, 200, 0.1)
	if len(fired) != 1 || fired[0] != "a" {
		t.Errorf("only timeline a should have processed the tick; fired %v", fired)
	}
	if b.SampleTime() != 0 {
		t.Errorf("timeline b's cursor should not move on a's tick")
	}
}

func TestProcessTickInvertedRange(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	tl := testTimeline("song", 100)
	if err := eng.LoadTimeline(tl); err != nil {
		t.Fatal(err)
	}
	fired := 0
	eng.RegisterForEvents("beat", "o", func(c *rytmi.Cue) { fired++ })
	eng.ProcessTick("song", 200, 0, 0.1)
	if fired != 1 {
		t.Errorf("an inverted range should be swapped and processed; fired %v", fired)
	}
	if tl.SampleTime() != 200 {
		t.Errorf("cursor should end at the high end of the swapped range, got %v", tl.SampleTime())
	}
}

// Cross-owner ordering: all bare callbacks for an event run before all timed
// callbacks, in registration order.
func TestDispatchBareBeforeTimed(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	tl := testTimeline("song", 100)
	if err := eng.LoadTimeline(tl); err != nil {
		t.Fatal(err)
	}
	var order []string
	eng.RegisterForEventsWithTime("beat", "x", func(c *rytmi.Cue, sampleTime, sampleDelta int, slice rytmi.TimeSlice) {
		order = append(order, "timedX")
	})
	eng.RegisterForEvents("beat", "y", func(c *rytmi.Cue) { order = append(order, "bareY") })
	eng.RegisterForEvents("beat", "x", func(c *rytmi.Cue) { order = append(order, "bareX") })
	eng.ProcessTick("song", 0, 200, 0.1)
	want := []string{"bareY", "bareX", "timedX"}
	if len(order) != len(want) {
		t.Fatalf("got calls %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("call order %v, want %v", order, want)
		}
	}
}

func TestUnregisterForEvents(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	tl := testTimeline("song", 100)
	if err := eng.LoadTimeline(tl); err != nil {
		t.Fatal(err)
	}
	var fired []string
	eng.RegisterForEvents("beat", "a", func(c *rytmi.Cue) { fired = append(fired, "a") })
	eng.RegisterForEvents("beat", "b", func(c *rytmi.Cue) { fired = append(fired, "b") })
	eng.UnregisterForEvents("beat", "a")
	eng.ProcessTick("song", 0, 200, 0.1)
	if len(fired) != 1 || fired[0] != "b" {
		t.Errorf("owner a should be unregistered; fired %v", fired)
	}
}

func TestUnregisterLastHandlerDropsSubscription(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	tl := testTimeline("song", 100)
	if err := eng.LoadTimeline(tl); err != nil {
		t.Fatal(err)
	}
	eng.RegisterForEvents("beat", "a", func(c *rytmi.Cue) {})
	eng.UnregisterForEvents("beat", "a")
	if tl.TrackByID("beat").HasHandlers() {
		t.Errorf("the track should have no subscription once the last listener is gone")
	}
}

func TestUnregisterAllForOwner(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	tl := rytmi.NewTimeline("song", 44100)
	for _, id := range []string{"kick", "snare"} {
		tr := rytmi.NewCueTrack(id)
		tr.AddCue(&rytmi.Cue{StartSample: 100, EndSample: 100})
		tl.AddTrack(tr)
	}
	if err := eng.LoadTimeline(tl); err != nil {
		t.Fatal(err)
	}
	var fired []string
	eng.RegisterForEvents("kick", "a", func(c *rytmi.Cue) { fired = append(fired, "kickA") })
	eng.RegisterForEvents("snare", "a", func(c *rytmi.Cue) { fired = append(fired, "snareA") })
	eng.RegisterForEvents("kick", "b", func(c *rytmi.Cue) { fired = append(fired, "kickB") })
	eng.UnregisterAllForOwner("a")
	eng.ProcessTick("song", 0, 200, 0.1)
	if len(fired) != 1 || fired[0] != "kickB" {
		t.Errorf("only owner b's handlers should remain; fired %v", fired)
	}
}

// Unloading a timeline unsubscribes it; loading a fresh one picks up the
// existing registrations.
func TestUnloadUnsubscribes(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	tl := testTimeline("song", 100)
	if err := eng.LoadTimeline(tl); err != nil {
		t.Fatal(err)
	}
	fired := 0
	eng.RegisterForEvents("beat", "o", func(c *rytmi.Cue) { fired++ })
	eng.UnloadTimeline(tl)
	if tl.TrackByID("beat").HasHandlers() {
		t.Errorf("unloading should unsubscribe the track")
	}
	replacement := testTimeline("song", 100)
	if err := eng.LoadTimeline(replacement); err != nil {
		t.Fatal(err)
	}
	eng.ProcessTick("song", 0, 200, 0.1)
	if fired != 1 {
		t.Errorf("the registration should carry over to a newly loaded timeline; fired %v", fired)
	}
}

func TestSetLatencyDelayClampsNegative(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	eng.SetLatencyDelay(-1)
	if got := eng.LatencyDelay(); got != 0 {
		t.Errorf("negative delay should clamp to 0, got %v", got)
	}
	eng.SetLatencyDelay(0.25)
	if got := eng.LatencyDelay(); got != 0.25 {
		t.Errorf("LatencyDelay = %v, want 0.25", got)
	}
}

package engine_test

import (
	"math"
	"testing"

	"github.com/askuula/rytmi"
	"github.com/askuula/rytmi/engine"
)

// fakeAudio is a canned playback component for the Music Time queries.
type fakeAudio struct {
	current string
	playing map[string]bool
	total   map[string]int
	pitch   float64
}

func (f *fakeAudio) SampleTime(clip string) int      { return 0 }
func (f *fakeAudio) TotalSampleTime(clip string) int { return f.total[clip] }
func (f *fakeAudio) IsPlaying(clip string) bool      { return f.playing[clip] }
func (f *fakeAudio) Pitch(clip string) float64       { return f.pitch }
func (f *fakeAudio) CurrentClipName() string         { return f.current }

func musicTestEngine(t *testing.T) (*engine.Engine, *rytmi.Timeline) {
	t.Helper()
	audio := &fakeAudio{
		current: "song",
		playing: map[string]bool{"song": true},
		total:   map[string]int{"song": 441000},
		pitch:   1.5,
	}
	eng := engine.New(audio, quietLogger())
	tl := rytmi.NewTimeline("song", 44100)
	if err := eng.LoadTimeline(tl); err != nil {
		t.Fatal(err)
	}
	// advance one second, half a second in the last tick
	eng.ProcessTick("song", 0, 22049, 0.5)
	eng.ProcessTick("song", 22050, 44099, 0.5)
	return eng, tl
}

func TestMusicTimeQueries(t *testing.T) {
	eng, _ := musicTestEngine(t)
	if got := eng.SampleRate("song"); got != 44100 {
		t.Errorf("SampleRate = %v, want 44100", got)
	}
	if got := eng.SampleTime("song"); got != 44099 {
		t.Errorf("SampleTime = %v, want 44099", got)
	}
	if got := eng.SampleTimeDelta("song"); got != 22049 {
		t.Errorf("SampleTimeDelta = %v, want 22049", got)
	}
	if got := eng.TotalSampleTime("song"); got != 441000 {
		t.Errorf("TotalSampleTime = %v, want 441000", got)
	}
	if got := eng.SecondsLength("song"); math.Abs(got-10.0) > 1e-9 {
		t.Errorf("SecondsLength = %v, want 10.0", got)
	}
	if got := eng.BPM("song"); got != 120.0 {
		t.Errorf("BPM = %v, want 120", got)
	}
	if got := eng.BeatTime("song", 1); math.Abs(got-2.0) > 1e-3 {
		t.Errorf("BeatTime = %v, want ~2.0", got)
	}
	if got := eng.BeatLength("song", 1); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("BeatLength = %v, want 0.5", got)
	}
	if got := eng.MeasureTime("song"); math.Abs(got-0.5) > 1e-3 {
		t.Errorf("MeasureTime = %v, want ~0.5", got)
	}
	if !eng.IsPlaying("song") {
		t.Errorf("IsPlaying should report the playback component's state")
	}
	if got := eng.Pitch("song"); got != 1.5 {
		t.Errorf("Pitch = %v, want 1.5", got)
	}
}

// An empty clip name resolves to the currently playing clip.
func TestMusicTimeCurrentClip(t *testing.T) {
	eng, _ := musicTestEngine(t)
	if got := eng.SampleTime(""); got != 44099 {
		t.Errorf("SampleTime of the current clip = %v, want 44099", got)
	}
	if eng.TimelineFor("") == nil {
		t.Errorf("TimelineFor of the current clip should resolve")
	}
}

// Queries about unknown clips return zero values instead of panicking.
func TestMusicTimeUnknownClip(t *testing.T) {
	eng, _ := musicTestEngine(t)
	if got := eng.SampleTime("nope"); got != 0 {
		t.Errorf("SampleTime of an unknown clip = %v, want 0", got)
	}
	if got := eng.BPM("nope"); got != 0 {
		t.Errorf("BPM of an unknown clip = %v, want 0", got)
	}
	if eng.TimelineFor("nope") != nil {
		t.Errorf("TimelineFor of an unknown clip should be nil")
	}
}

// An engine without a playback component answers what it can and defaults
// the rest.
func TestMusicTimeWithoutAudio(t *testing.T) {
	eng := engine.New(nil, quietLogger())
	tl := rytmi.NewTimeline("song", 44100)
	if err := eng.LoadTimeline(tl); err != nil {
		t.Fatal(err)
	}
	if got := eng.SampleRate("song"); got != 44100 {
		t.Errorf("SampleRate = %v, want 44100", got)
	}
	if got := eng.TotalSampleTime("song"); got != 0 {
		t.Errorf("TotalSampleTime without audio = %v, want 0", got)
	}
	if eng.IsPlaying("song") {
		t.Errorf("IsPlaying without audio should be false")
	}
	if got := eng.Pitch("song"); got != 1 {
		t.Errorf("Pitch without audio = %v, want 1", got)
	}
}

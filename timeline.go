package rytmi

import (
	"errors"
	"fmt"
	"math"
)

// Timeline is the per-audio-clip aggregate: a tempo map plus a set of cue
// tracks, unique by event ID, and a processing cursor recording the last
// sample range the timeline has seen. SourceName identifies the audio clip
// the timeline is bound to.
type Timeline struct {
	SourceName string
	SampleRate int

	// IgnoreLatencyOffset opts the timeline out of the engine-wide latency
	// compensation: its updates are always delivered immediately.
	IgnoreLatencyOffset bool `yaml:",omitempty" json:",omitempty"`

	TempoMap TempoMap
	Tracks   []*CueTrack

	lastStart int
	lastEnd   int
}

// NewTimeline builds a Timeline with a single default tempo section (120 BPM
// in 4/4 at the given sample rate), the usual starting point for
// programmatic construction.
func NewTimeline(sourceName string, sampleRate int) *Timeline {
	if sampleRate < 1 {
		sampleRate = 1
	}
	m, _ := NewTempoMap([]TempoSection{{
		SamplesPerBeat:  float64(sampleRate) * 60 / 120,
		BeatsPerMeasure: 4,
	}})
	return &Timeline{SourceName: sourceName, SampleRate: sampleRate, TempoMap: m}
}

// Validate checks the timeline invariants: a positive sample rate, at least
// one tempo section and no two tracks sharing an event ID.
func (t *Timeline) Validate() error {
	if t.SampleRate < 1 {
		return errors.New("timeline sample rate should be > 0")
	}
	if len(t.TempoMap.Sections) == 0 {
		return errors.New("timeline tempo map contains no sections")
	}
	seen := make(map[string]bool, len(t.Tracks))
	for _, tr := range t.Tracks {
		if seen[tr.EventID] {
			return fmt.Errorf("timeline contains more than one track with event ID %q", tr.EventID)
		}
		seen[tr.EventID] = true
	}
	return nil
}

// sanitize repairs a timeline deserialized from raw data: coerces degenerate
// tempo values, re-sorts sections and cues, and fixes inverted cue spans.
func (t *Timeline) sanitize() {
	if t.SampleRate < 1 {
		t.SampleRate = 1
	}
	for i := range t.TempoMap.Sections {
		t.TempoMap.Sections[i].sanitize()
	}
	t.TempoMap.ensureOrder()
	for _, tr := range t.Tracks {
		for _, c := range tr.Cues {
			c.sanitize()
		}
		tr.EnsureOrder()
	}
}

// Update records the processed range as the new cursor and asks every owned
// track to fire the cues the range covers. Tracks are processed in
// registration order.
func (t *Timeline) Update(startSample, endSample int, slice TimeSlice) {
	if startSample < 0 {
		startSample = 0
	}
	if endSample < startSample {
		endSample = startSample
	}
	t.lastStart = startSample
	t.lastEnd = endSample
	for _, tr := range t.Tracks {
		tr.CheckForCues(startSample, endSample, slice)
	}
}

// ResetTimings zeroes the processing cursor. Call it when (re)loading the
// timeline so the first real update is not interpreted as a huge delta.
func (t *Timeline) ResetTimings() {
	t.lastStart = 0
	t.lastEnd = 0
}

// CanAddTrack reports whether the track could be added without breaking the
// unique-event-ID invariant.
func (t *Timeline) CanAddTrack(track *CueTrack) bool {
	if track == nil {
		return false
	}
	return t.TrackByID(track.EventID) == nil
}

// AddTrack adds a track; it returns false if a track with the same event ID
// already exists.
func (t *Timeline) AddTrack(track *CueTrack) bool {
	if !t.CanAddTrack(track) {
		return false
	}
	t.Tracks = append(t.Tracks, track)
	return true
}

// RemoveTrack removes the track by identity; a no-op if the track is not on
// the timeline.
func (t *Timeline) RemoveTrack(track *CueTrack) {
	for i, tr := range t.Tracks {
		if tr == track {
			t.Tracks = append(t.Tracks[:i], t.Tracks[i+1:]...)
			return
		}
	}
}

// TrackByID returns the track with the given event ID, or nil.
func (t *Timeline) TrackByID(eventID string) *CueTrack {
	for _, tr := range t.Tracks {
		if tr.EventID == eventID {
			return tr
		}
	}
	return nil
}

// EventIDs appends the event IDs of all tracks to dst, in track order.
func (t *Timeline) EventIDs(dst []string) []string {
	for _, tr := range t.Tracks {
		dst = append(dst, tr.EventID)
	}
	return dst
}

// SampleTime returns the end of the last processed range.
func (t *Timeline) SampleTime() int {
	return t.lastEnd
}

// SampleTimeDelta returns the width of the last processed range.
func (t *Timeline) SampleTimeDelta() int {
	return t.lastEnd - t.lastStart
}

// SecondsTime returns the current playback position in seconds.
func (t *Timeline) SecondsTime() float64 {
	return float64(t.lastEnd) / float64(t.SampleRate)
}

// SecondsTimeDelta returns the width of the last processed range in seconds.
func (t *Timeline) SecondsTimeDelta() float64 {
	return float64(t.lastEnd-t.lastStart) / float64(t.SampleRate)
}

// BeatTime returns the current playback position in (subdivided) beats.
func (t *Timeline) BeatTime(subdivisions int) float64 {
	return t.TempoMap.BeatTimeFromSample(t.lastEnd, subdivisions)
}

// BeatTimeDelta returns the beats elapsed over the last processed range,
// summed per section; see TempoMap.BeatTimeDelta for why this is not a
// subtraction of two absolute beat times.
func (t *Timeline) BeatTimeDelta(subdivisions int) float64 {
	return t.TempoMap.BeatTimeDelta(t.lastStart, t.lastEnd, subdivisions)
}

// BeatTimeNormalized returns how far into the current (subdivided) beat the
// playback position is, in [0,1).
func (t *Timeline) BeatTimeNormalized(subdivisions int) float64 {
	bt := t.BeatTime(subdivisions)
	return bt - math.Floor(bt)
}

// MeasureTime returns the current playback position in measures.
func (t *Timeline) MeasureTime() float64 {
	return t.TempoMap.MeasureTimeFromSample(t.lastEnd)
}

// BeatsWithinMeasure returns how many beats into its measure the playback
// position is.
func (t *Timeline) BeatsWithinMeasure() float64 {
	return t.TempoMap.BeatsWithinMeasure(t.lastEnd)
}

// BPM returns the tempo at the playback position.
func (t *Timeline) BPM() float64 {
	return t.TempoMap.BPMAt(t.lastEnd, t.SampleRate)
}

// BeatLengthSeconds returns the length of one (subdivided) beat at the
// playback position, in seconds.
func (t *Timeline) BeatLengthSeconds(subdivisions int) float64 {
	return t.TempoMap.SamplesPerBeatAt(t.lastEnd, subdivisions) / float64(t.SampleRate)
}

// Copy makes a deep copy of a Timeline. The processing cursor is reset on
// the copy.
func (t *Timeline) Copy() *Timeline {
	tracks := make([]*CueTrack, len(t.Tracks))
	for i, tr := range t.Tracks {
		tracks[i] = tr.Copy()
	}
	return &Timeline{
		SourceName:          t.SourceName,
		SampleRate:          t.SampleRate,
		IgnoreLatencyOffset: t.IgnoreLatencyOffset,
		TempoMap:            t.TempoMap.Copy(),
		Tracks:              tracks,
	}
}

// Package midiconv builds rytmi timelines out of standard MIDI files: tempo
// and time-signature meta events become tempo sections, and note on/off
// pairs become cues carrying the note number as payload. It is an import
// convenience for authoring; the engine itself never touches MIDI.
package midiconv

import (
	"fmt"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/askuula/rytmi"
)

const defaultBPM = 120.0

type absEvent struct {
	tick  uint32
	track int
	msg   smf.Message
}

// ReadFile converts the MIDI file at path into a timeline named sourceName
// at the given sample rate.
func ReadFile(path, sourceName string, sampleRate int) (*rytmi.Timeline, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read MIDI file %v: %v", path, err)
	}
	return FromSMF(s, sourceName, sampleRate)
}

// FromSMF converts an in-memory MIDI file into a timeline. Each MIDI track
// becomes one cue track, named after the track's name meta event when
// present, "Track N" otherwise; a note's cue spans from its on-sample to its
// off-sample and carries the key number as an integer payload.
func FromSMF(s *smf.SMF, sourceName string, sampleRate int) (*rytmi.Timeline, error) {
	ticksPerQuarter, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("unsupported MIDI time format %v, expected metric ticks", s.TimeFormat)
	}
	if sampleRate < 1 {
		return nil, fmt.Errorf("invalid sample rate %v", sampleRate)
	}

	events := mergeTracks(s)
	clock := newTickClock(float64(ticksPerQuarter), sampleRate)

	tl := &rytmi.Timeline{SourceName: sourceName, SampleRate: sampleRate}
	sections := []rytmi.TempoSection{{
		SamplesPerBeat:  clock.samplesPerBeat(),
		BeatsPerMeasure: 4,
	}}
	trackNames := make(map[int]string)
	tracks := make(map[int]*rytmi.CueTrack)
	type openNote struct {
		startSample int
	}
	open := make(map[[2]int]map[uint8]openNote) // (track, channel) -> key -> note

	beatsPerMeasure := 4
	for _, ev := range events {
		sample := clock.advanceTo(ev.tick)
		var bpm float64
		var num, denom, cpt, dsqpq uint8
		var name string
		var ch, key, vel uint8
		switch {
		case ev.msg.GetMetaTempo(&bpm):
			clock.setBPM(bpm)
			sections = append(sections, rytmi.TempoSection{
				StartSample:     sample,
				SamplesPerBeat:  clock.samplesPerBeat(),
				BeatsPerMeasure: beatsPerMeasure,
			})
		case ev.msg.GetMetaTimeSig(&num, &denom, &cpt, &dsqpq):
			if num > 0 {
				beatsPerMeasure = int(num)
			}
			sections = append(sections, rytmi.TempoSection{
				StartSample:      sample,
				SamplesPerBeat:   clock.samplesPerBeat(),
				BeatsPerMeasure:  beatsPerMeasure,
				StartsNewMeasure: true,
			})
		case ev.msg.GetMetaTrackName(&name):
			trackNames[ev.track] = name
		case ev.msg.GetNoteOn(&ch, &key, &vel) && vel > 0:
			id := [2]int{ev.track, int(ch)}
			if open[id] == nil {
				open[id] = make(map[uint8]openNote)
			}
			open[id][key] = openNote{startSample: sample}
		case ev.msg.GetNoteOff(&ch, &key, &vel),
			ev.msg.GetNoteOn(&ch, &key, &vel): // note on with velocity 0 is a note off
			id := [2]int{ev.track, int(ch)}
			note, ok := open[id][key]
			if !ok {
				continue
			}
			delete(open[id], key)
			track := tracks[ev.track]
			if track == nil {
				track = rytmi.NewCueTrack(trackID(ev.track, trackNames))
				tracks[ev.track] = track
			}
			cue := &rytmi.Cue{
				StartSample: note.startSample,
				EndSample:   sample,
				Payload:     rytmi.IntPayload(int(key)),
			}
			track.AddCue(cue)
		}
	}

	dedupeSections(&sections)
	if err := tl.TempoMap.ReplaceSections(sections); err != nil {
		return nil, err
	}
	trackIdx := make([]int, 0, len(tracks))
	for i := range tracks {
		trackIdx = append(trackIdx, i)
	}
	sort.Ints(trackIdx)
	for _, i := range trackIdx {
		tl.AddTrack(tracks[i])
	}
	return tl, tl.Validate()
}

func trackID(track int, names map[int]string) string {
	if name, ok := names[track]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Track %d", track)
}

// dedupeSections keeps only the last section declared at any given start
// sample, so a tempo and a time-signature event on the same tick collapse
// into one section.
func dedupeSections(sections *[]rytmi.TempoSection) {
	s := *sections
	out := s[:0]
	for i, sec := range s {
		if i+1 < len(s) && s[i+1].StartSample == sec.StartSample {
			if sec.StartsNewMeasure {
				s[i+1].StartsNewMeasure = true
			}
			continue
		}
		out = append(out, sec)
	}
	*sections = out
}

// tickClock converts absolute MIDI ticks to sample positions across tempo
// changes: it tracks the wall-clock time of the last tempo change and the
// tick it happened at.
type tickClock struct {
	ticksPerQuarter float64
	sampleRate      int
	bpm             float64
	lastTick        uint32
	seconds         float64
}

func newTickClock(ticksPerQuarter float64, sampleRate int) *tickClock {
	return &tickClock{
		ticksPerQuarter: ticksPerQuarter,
		sampleRate:      sampleRate,
		bpm:             defaultBPM,
	}
}

func (c *tickClock) secondsPerTick() float64 {
	return 60 / (c.bpm * c.ticksPerQuarter)
}

func (c *tickClock) samplesPerBeat() float64 {
	return float64(c.sampleRate) * 60 / c.bpm
}

// advanceTo moves the clock to the absolute tick and returns the
// corresponding sample position.
func (c *tickClock) advanceTo(tick uint32) int {
	if tick > c.lastTick {
		c.seconds += float64(tick-c.lastTick) * c.secondsPerTick()
		c.lastTick = tick
	}
	return int(math.Round(c.seconds * float64(c.sampleRate)))
}

func (c *tickClock) setBPM(bpm float64) {
	if bpm > 0 {
		c.bpm = bpm
	}
}

// mergeTracks flattens all tracks of the file into one list of events with
// absolute ticks, sorted by tick; ties keep file order, with meta events of
// lower-numbered tracks first (the conventional location of the tempo
// track).
func mergeTracks(s *smf.SMF) []absEvent {
	var events []absEvent
	for ti, track := range s.Tracks {
		var abs uint32
		for _, ev := range track {
			abs += ev.Delta
			events = append(events, absEvent{tick: abs, track: ti, msg: ev.Message})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].tick < events[j].tick
	})
	return events
}

package rytmi_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/askuula/rytmi"
)

func demoTimeline() *rytmi.Timeline {
	tl := rytmi.NewTimeline("demo", 44100)
	kick := rytmi.NewCueTrack("kick")
	kick.AddCue(&rytmi.Cue{StartSample: 0, EndSample: 0, Payload: rytmi.IntPayload(1)})
	kick.AddCue(&rytmi.Cue{StartSample: 22050, EndSample: 22050})
	lyrics := rytmi.NewCueTrack("lyrics")
	lyrics.AllowedPayloads = []rytmi.PayloadKind{rytmi.PayloadText}
	lyrics.AddCue(&rytmi.Cue{StartSample: 100, EndSample: 40000, Payload: rytmi.TextPayload("la la")})
	tl.AddTrack(kick)
	tl.AddTrack(lyrics)
	return tl
}

func TestTimelineYAMLRoundTrip(t *testing.T) {
	tl := demoTimeline()
	var buf bytes.Buffer
	if err := rytmi.WriteTimelineYAML(&buf, tl); err != nil {
		t.Fatalf("WriteTimelineYAML failed: %v", err)
	}
	got, err := rytmi.ReadTimeline(&buf)
	if err != nil {
		t.Fatalf("ReadTimeline failed: %v", err)
	}
	assertTimelinesEqual(t, tl, got)
}

func TestTimelineJSONRoundTrip(t *testing.T) {
	tl := demoTimeline()
	var buf bytes.Buffer
	if err := rytmi.WriteTimelineJSON(&buf, tl); err != nil {
		t.Fatalf("WriteTimelineJSON failed: %v", err)
	}
	got, err := rytmi.ReadTimeline(&buf)
	if err != nil {
		t.Fatalf("ReadTimeline failed: %v", err)
	}
	assertTimelinesEqual(t, tl, got)
}

func assertTimelinesEqual(t *testing.T, want, got *rytmi.Timeline) {
	t.Helper()
	if got.SourceName != want.SourceName || got.SampleRate != want.SampleRate {
		t.Errorf("timeline header mismatch: got %v/%v, want %v/%v",
			got.SourceName, got.SampleRate, want.SourceName, want.SampleRate)
	}
	if len(got.Tracks) != len(want.Tracks) {
		t.Fatalf("track count mismatch: got %v, want %v", len(got.Tracks), len(want.Tracks))
	}
	for i, tr := range want.Tracks {
		g := got.Tracks[i]
		if g.EventID != tr.EventID || len(g.Cues) != len(tr.Cues) {
			t.Errorf("track %v mismatch: got %v with %v cues, want %v with %v cues",
				i, g.EventID, len(g.Cues), tr.EventID, len(tr.Cues))
			continue
		}
		for j, c := range tr.Cues {
			gc := g.Cues[j]
			if gc.StartSample != c.StartSample || gc.EndSample != c.EndSample || gc.Payload.Kind() != c.Payload.Kind() {
				t.Errorf("track %v cue %v mismatch: got [%v,%v] kind %v, want [%v,%v] kind %v",
					i, j, gc.StartSample, gc.EndSample, gc.Payload.Kind(),
					c.StartSample, c.EndSample, c.Payload.Kind())
			}
		}
	}
	if *got.Tracks[1].Cues[0].Payload.Text != "la la" {
		t.Errorf("text payload lost in the round trip")
	}
}

// Raw data with unsorted sections, inverted cue spans and garbage tempo
// values should come back repaired.
func TestReadTimelineSanitizes(t *testing.T) {
	in := `{
		"SourceName": "messy",
		"SampleRate": 44100,
		"TempoMap": {"Sections": [
			{"StartSample": 50000, "SamplesPerBeat": 11025, "BeatsPerMeasure": 3},
			{"StartSample": 0, "SamplesPerBeat": -1, "BeatsPerMeasure": 0}
		]},
		"Tracks": [{"EventID": "kick", "Cues": [
			{"StartSample": 300, "EndSample": 100},
			{"StartSample": 10, "EndSample": 10}
		]}]
	}`
	tl, err := rytmi.ReadTimeline(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadTimeline failed: %v", err)
	}
	if tl.TempoMap.Sections[0].StartSample != 0 {
		t.Errorf("sections should be sorted; first starts at %v", tl.TempoMap.Sections[0].StartSample)
	}
	if tl.TempoMap.Sections[0].SamplesPerBeat != 1 || tl.TempoMap.Sections[0].BeatsPerMeasure != 1 {
		t.Errorf("degenerate tempo values should be coerced, got %+v", tl.TempoMap.Sections[0])
	}
	kick := tl.TrackByID("kick")
	if kick.Cues[0].StartSample != 10 {
		t.Errorf("cues should be sorted; first starts at %v", kick.Cues[0].StartSample)
	}
	if c := kick.Cues[1]; c.EndSample < c.StartSample {
		t.Errorf("inverted cue span should be repaired, got [%v,%v]", c.StartSample, c.EndSample)
	}
}

func TestReadTimelineRejectsInvalid(t *testing.T) {
	if _, err := rytmi.ReadTimeline(strings.NewReader("{not valid json or yaml]: [")); err == nil {
		t.Errorf("garbage input should fail to parse")
	}
	dup := `{"SourceName": "x", "SampleRate": 44100,
		"TempoMap": {"Sections": [{"SamplesPerBeat": 22050, "BeatsPerMeasure": 4}]},
		"Tracks": [{"EventID": "a"}, {"EventID": "a"}]}`
	if _, err := rytmi.ReadTimeline(strings.NewReader(dup)); err == nil {
		t.Errorf("duplicate event IDs should fail validation")
	}
}

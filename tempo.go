package rytmi

import (
	"errors"
	"math"
	"sort"
)

type (
	// TempoSection describes one piecewise-constant-tempo region of a
	// timeline: from StartSample onwards (until the next section, if any),
	// every beat is SamplesPerBeat samples long and every measure contains
	// BeatsPerMeasure beats. StartsNewMeasure indicates that the beat and
	// measure counters restart at this section's boundary instead of
	// continuing fractionally from the previous section.
	TempoSection struct {
		Name             string `yaml:",omitempty"`
		StartSample      int
		SamplesPerBeat   float64
		BeatsPerMeasure  int
		StartsNewMeasure bool `yaml:",omitempty"`
	}

	// TempoMap is the ordered list of TempoSections of a timeline, sorted
	// ascending by StartSample. A valid map always has at least one section
	// and the first section always starts at sample 0; every mutating
	// operation re-establishes both.
	TempoMap struct {
		Sections []TempoSection
	}
)

// NewTempoMap builds a TempoMap from the given sections, sanitizing and
// sorting them. This is the one loud failure of the package: a map with zero
// sections is a configuration error, not something to self-heal.
func NewTempoMap(sections []TempoSection) (TempoMap, error) {
	if len(sections) == 0 {
		return TempoMap{}, errors.New("tempo map must contain at least one section")
	}
	m := TempoMap{Sections: append([]TempoSection(nil), sections...)}
	for i := range m.Sections {
		m.Sections[i].sanitize()
	}
	m.ensureOrder()
	return m, nil
}

// sanitize coerces degenerate values to the minimum valid ones, so that they
// never reach the division logic.
func (s *TempoSection) sanitize() {
	if s.StartSample < 0 {
		s.StartSample = 0
	}
	if s.SamplesPerBeat <= 0 {
		s.SamplesPerBeat = 1
	}
	if s.BeatsPerMeasure < 1 {
		s.BeatsPerMeasure = 1
	}
}

// samplesPerBeat returns the samples per beat with the beat split into the
// given number of subdivisions; subdivision counts below 1 count as 1.
func (s TempoSection) samplesPerBeat(subdivisions int) float64 {
	if subdivisions < 1 {
		subdivisions = 1
	}
	return s.SamplesPerBeat / float64(subdivisions)
}

func (s TempoSection) samplesPerMeasure() float64 {
	return s.SamplesPerBeat * float64(s.BeatsPerMeasure)
}

// BPM returns the tempo of the section in beats per minute at the given
// playback sample rate.
func (s TempoSection) BPM(sampleRate int) float64 {
	return float64(sampleRate) / s.SamplesPerBeat * 60
}

func (m *TempoMap) ensureOrder() {
	sort.SliceStable(m.Sections, func(i, j int) bool {
		return m.Sections[i].StartSample < m.Sections[j].StartSample
	})
	if len(m.Sections) > 0 {
		m.Sections[0].StartSample = 0
	}
}

// InsertSection adds a section to the map, keeping the sections sorted.
func (m *TempoMap) InsertSection(s TempoSection) {
	s.sanitize()
	m.Sections = append(m.Sections, s)
	m.ensureOrder()
}

// RemoveSection removes the section at index. Removing the last remaining
// section is forbidden, as a map must always contain at least one.
func (m *TempoMap) RemoveSection(index int) error {
	if index < 0 || index >= len(m.Sections) {
		return errors.New("tempo section index out of range")
	}
	if len(m.Sections) == 1 {
		return errors.New("cannot remove the only tempo section")
	}
	m.Sections = append(m.Sections[:index], m.Sections[index+1:]...)
	m.ensureOrder()
	return nil
}

// ReplaceSections replaces the whole section list at once.
func (m *TempoMap) ReplaceSections(sections []TempoSection) error {
	n, err := NewTempoMap(sections)
	if err != nil {
		return err
	}
	*m = n
	return nil
}

// Copy makes a deep copy of a TempoMap.
func (m TempoMap) Copy() TempoMap {
	return TempoMap{Sections: append([]TempoSection(nil), m.Sections...)}
}

// SectionIndexForSample returns the index of the section the sample position
// falls in: -1 for a negative sample, otherwise the largest index whose
// StartSample is at or before the sample. Sections are few, so a linear scan
// is fine.
func (m TempoMap) SectionIndexForSample(sample int) int {
	if sample < 0 {
		return -1
	}
	idx := 0
	for i := 1; i < len(m.Sections); i++ {
		if m.Sections[i].StartSample > sample {
			break
		}
		idx = i
	}
	return idx
}

// snapUp rounds t up to the next whole unit, unless t is already within
// tolerance of a whole unit. The tolerance is one sample expressed in the
// unit in question, so positions that only miss a boundary by floating point
// noise are treated as aligned.
func snapUp(t, tolerance float64) float64 {
	if frac := t - math.Floor(t); frac > tolerance {
		return math.Ceil(t)
	}
	return t
}

// timeFromSample accumulates, section by section, the time contributed by
// each fully elapsed section, in units of samplesPerUnit(section) samples.
// Whenever a section boundary starts a new measure, the accumulated time is
// snapped up to the next whole unit: without the snap, a single sample
// position on a non-aligned boundary would map to two different fractional
// unit numbers depending on which side of the boundary the math approaches
// it from.
func (m TempoMap) timeFromSample(sample int, samplesPerUnit func(TempoSection) float64) float64 {
	if sample < 0 || len(m.Sections) == 0 {
		return 0
	}
	t := 0.0
	idx := m.SectionIndexForSample(sample)
	for i := 0; i < idx; i++ {
		cur, next := m.Sections[i], m.Sections[i+1]
		t += float64(next.StartSample-cur.StartSample) / samplesPerUnit(cur)
		if next.StartsNewMeasure {
			t = snapUp(t, 1/samplesPerUnit(cur))
		}
	}
	sec := m.Sections[idx]
	if sample > sec.StartSample {
		t += float64(sample-sec.StartSample) / samplesPerUnit(sec)
	}
	return t
}

// sampleFromTime is the inverse of timeFromSample: it walks the sections
// accumulating the total units per section until the target time falls
// within the current section. A measure-reset boundary leaves a void between
// the last reachable time of one section and the snapped start of the next;
// a target falling in that void short-circuits to the next section's start.
// The final sample is truncated towards the section start.
func (m TempoMap) sampleFromTime(t float64, samplesPerUnit func(TempoSection) float64) int {
	if t <= 0 || len(m.Sections) == 0 {
		return 0
	}
	total := 0.0
	cur := m.Sections[0]
	for i := 1; i < len(m.Sections); i++ {
		next := m.Sections[i]
		raw := total + float64(next.StartSample-cur.StartSample)/samplesPerUnit(cur)
		snapped := raw
		if next.StartsNewMeasure {
			snapped = snapUp(raw, 1/samplesPerUnit(cur))
		}
		if t < raw {
			return cur.StartSample + int((t-total)*samplesPerUnit(cur))
		}
		if t < snapped {
			return next.StartSample
		}
		total = snapped
		cur = next
	}
	return cur.StartSample + int((t-total)*samplesPerUnit(cur))
}

// BeatTimeFromSample converts a sample position to fractional beat time,
// with each beat split into the given number of subdivisions.
func (m TempoMap) BeatTimeFromSample(sample, subdivisions int) float64 {
	return m.timeFromSample(sample, func(s TempoSection) float64 {
		return s.samplesPerBeat(subdivisions)
	})
}

// SampleFromBeatTime converts fractional beat time back to a sample
// position, truncating within the destination section.
func (m TempoMap) SampleFromBeatTime(beatTime float64, subdivisions int) int {
	return m.sampleFromTime(beatTime, func(s TempoSection) float64 {
		return s.samplesPerBeat(subdivisions)
	})
}

// MeasureTimeFromSample converts a sample position to fractional measure
// time.
func (m TempoMap) MeasureTimeFromSample(sample int) float64 {
	return m.timeFromSample(sample, TempoSection.samplesPerMeasure)
}

// SampleFromMeasureTime converts fractional measure time back to a sample
// position.
func (m TempoMap) SampleFromMeasureTime(measureTime float64) int {
	return m.sampleFromTime(measureTime, TempoSection.samplesPerMeasure)
}

// BeatsWithinMeasure returns how many beats into its measure the sample
// position is, as a fraction of the measure scaled by the beats per measure
// of the section the sample falls in.
func (m TempoMap) BeatsWithinMeasure(sample int) float64 {
	if len(m.Sections) == 0 {
		return 0
	}
	idx := m.SectionIndexForSample(sample)
	if idx < 0 {
		idx = 0
	}
	mt := m.MeasureTimeFromSample(sample)
	return (mt - math.Floor(mt)) * float64(m.Sections[idx].BeatsPerMeasure)
}

// SamplesPerBeatAt returns the subdivided beat length in samples at the
// given sample position.
func (m TempoMap) SamplesPerBeatAt(sample, subdivisions int) float64 {
	if len(m.Sections) == 0 {
		return 0
	}
	idx := m.SectionIndexForSample(sample)
	if idx < 0 {
		idx = 0
	}
	return m.Sections[idx].samplesPerBeat(subdivisions)
}

// BPMAt returns the tempo in beats per minute at the given sample position.
func (m TempoMap) BPMAt(sample, sampleRate int) float64 {
	if len(m.Sections) == 0 {
		return 0
	}
	idx := m.SectionIndexForSample(sample)
	if idx < 0 {
		idx = 0
	}
	return m.Sections[idx].BPM(sampleRate)
}

// NearestBeatSample returns the sample position of the whole (subdivided)
// beat nearest to the given sample. Ties at half a beat round to the even
// beat number (math.RoundToEven), which is the pinned tie-breaking rule.
func (m TempoMap) NearestBeatSample(sample, subdivisions int) int {
	return m.SampleFromBeatTime(math.RoundToEven(m.BeatTimeFromSample(sample, subdivisions)), subdivisions)
}

// BeatTimeDelta returns the number of (subdivided) beats that elapse between
// two sample positions, summing the contribution of every section the range
// overlaps. This is deliberately not a subtraction of two absolute beat
// times: the measure-reset snap applied by BeatTimeFromSample relabels beat
// numbers across a boundary, which would misrepresent a delta spanning it.
func (m TempoMap) BeatTimeDelta(startSample, endSample, subdivisions int) float64 {
	if startSample < 0 {
		startSample = 0
	}
	if endSample <= startSample {
		return 0
	}
	delta := 0.0
	for i, sec := range m.Sections {
		secEnd := math.MaxInt
		if i+1 < len(m.Sections) {
			secEnd = m.Sections[i+1].StartSample
		}
		lo, hi := startSample, endSample
		if lo < sec.StartSample {
			lo = sec.StartSample
		}
		if hi > secEnd {
			hi = secEnd
		}
		if hi > lo {
			delta += float64(hi-lo) / sec.samplesPerBeat(subdivisions)
		}
	}
	return delta
}

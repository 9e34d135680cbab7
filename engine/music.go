package engine

// Music Time API: queries about the musical "now" of a clip. An empty clip
// name means the currently playing clip as reported by the injected
// AudioState. Queries about clips with no loaded timeline log a warning and
// return zero values; a missing binding is a configuration issue, not a
// crash condition.

import "github.com/askuula/rytmi"

func (e *Engine) resolveClip(clip string) string {
	if clip == "" && e.audio != nil {
		return e.audio.CurrentClipName()
	}
	return clip
}

// TimelineFor returns the first loaded timeline bound to the clip, or nil.
func (e *Engine) TimelineFor(clip string) *rytmi.Timeline {
	clip = e.resolveClip(clip)
	for _, tl := range e.timelines {
		if tl.SourceName == clip {
			return tl
		}
	}
	return nil
}

func (e *Engine) timelineOrWarn(clip string) *rytmi.Timeline {
	tl := e.TimelineFor(clip)
	if tl == nil {
		e.log.Warn("music time query for a clip with no loaded timeline", "clip", e.resolveClip(clip))
	}
	return tl
}

// SampleRate returns the sample rate of the clip's timeline.
func (e *Engine) SampleRate(clip string) int {
	if tl := e.timelineOrWarn(clip); tl != nil {
		return tl.SampleRate
	}
	return 0
}

// TotalSampleTime returns the total length of the clip in samples, as
// reported by the playback component.
func (e *Engine) TotalSampleTime(clip string) int {
	if e.audio == nil {
		return 0
	}
	return e.audio.TotalSampleTime(e.resolveClip(clip))
}

// SampleTime returns the clip's last processed sample position.
func (e *Engine) SampleTime(clip string) int {
	if tl := e.timelineOrWarn(clip); tl != nil {
		return tl.SampleTime()
	}
	return 0
}

// SampleTimeDelta returns the width of the clip's last processed range.
func (e *Engine) SampleTimeDelta(clip string) int {
	if tl := e.timelineOrWarn(clip); tl != nil {
		return tl.SampleTimeDelta()
	}
	return 0
}

// SecondsLength returns the total length of the clip in seconds.
func (e *Engine) SecondsLength(clip string) float64 {
	tl := e.timelineOrWarn(clip)
	if tl == nil || e.audio == nil {
		return 0
	}
	return float64(e.audio.TotalSampleTime(e.resolveClip(clip))) / float64(tl.SampleRate)
}

// SecondsTime returns the clip's playback position in seconds.
func (e *Engine) SecondsTime(clip string) float64 {
	if tl := e.timelineOrWarn(clip); tl != nil {
		return tl.SecondsTime()
	}
	return 0
}

// SecondsTimeDelta returns the width of the clip's last processed range in
// seconds.
func (e *Engine) SecondsTimeDelta(clip string) float64 {
	if tl := e.timelineOrWarn(clip); tl != nil {
		return tl.SecondsTimeDelta()
	}
	return 0
}

// BPM returns the clip's tempo at the playback position.
func (e *Engine) BPM(clip string) float64 {
	if tl := e.timelineOrWarn(clip); tl != nil {
		return tl.BPM()
	}
	return 0
}

// BeatLength returns the length of one (subdivided) beat at the clip's
// playback position, in seconds.
func (e *Engine) BeatLength(clip string, subdivisions int) float64 {
	if tl := e.timelineOrWarn(clip); tl != nil {
		return tl.BeatLengthSeconds(subdivisions)
	}
	return 0
}

// BeatTime returns the clip's playback position in (subdivided) beats.
func (e *Engine) BeatTime(clip string, subdivisions int) float64 {
	if tl := e.timelineOrWarn(clip); tl != nil {
		return tl.BeatTime(subdivisions)
	}
	return 0
}

// BeatTimeDelta returns the beats elapsed over the clip's last processed
// range.
func (e *Engine) BeatTimeDelta(clip string, subdivisions int) float64 {
	if tl := e.timelineOrWarn(clip); tl != nil {
		return tl.BeatTimeDelta(subdivisions)
	}
	return 0
}

// BeatTimeNormalized returns how far into the current beat the clip is, in
// [0,1).
func (e *Engine) BeatTimeNormalized(clip string, subdivisions int) float64 {
	if tl := e.timelineOrWarn(clip); tl != nil {
		return tl.BeatTimeNormalized(subdivisions)
	}
	return 0
}

// MeasureTime returns the clip's playback position in measures.
func (e *Engine) MeasureTime(clip string) float64 {
	if tl := e.timelineOrWarn(clip); tl != nil {
		return tl.MeasureTime()
	}
	return 0
}

// IsPlaying reports whether the playback component says the clip is playing.
func (e *Engine) IsPlaying(clip string) bool {
	if e.audio == nil {
		return false
	}
	return e.audio.IsPlaying(e.resolveClip(clip))
}

// Pitch returns the clip's playback pitch multiplier, 1.0 when unknown.
func (e *Engine) Pitch(clip string) float64 {
	if e.audio == nil {
		return 1
	}
	return e.audio.Pitch(e.resolveClip(clip))
}

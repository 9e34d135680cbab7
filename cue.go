package rytmi

// Cue is a discrete, optionally payload-bearing event anchored to an
// inclusive sample range. A cue whose start and end sample are identical is
// a OneOff cue. The start and end never cross: the setters repair the other
// end instead of failing, as authoring-time correction is preferred over
// breaking playback.
type Cue struct {
	StartSample int
	EndSample   int
	Payload     Payload `yaml:",omitempty" json:",omitempty"`
}

// SetStartSample moves the start of the cue, pulling the end up with it if
// the start would pass it. Negative samples clamp to 0.
func (c *Cue) SetStartSample(sample int) {
	if sample < 0 {
		sample = 0
	}
	c.StartSample = sample
	if c.EndSample < sample {
		c.EndSample = sample
	}
}

// SetEndSample moves the end of the cue, pulling the start down with it if
// the end would pass it. Negative samples clamp to 0.
func (c *Cue) SetEndSample(sample int) {
	if sample < 0 {
		sample = 0
	}
	c.EndSample = sample
	if c.StartSample > sample {
		c.StartSample = sample
	}
}

// sanitize repairs a cue that was constructed or deserialized with raw field
// access, using the same rules as the setters.
func (c *Cue) sanitize() {
	if c.StartSample < 0 {
		c.StartSample = 0
	}
	if c.EndSample < c.StartSample {
		c.EndSample = c.StartSample
	}
}

// IsOneOff reports whether the cue spans a single sample.
func (c *Cue) IsOneOff() bool {
	return c.StartSample == c.EndSample
}

// SampleLength returns the length of the cue's span in samples; 0 for a
// OneOff cue.
func (c *Cue) SampleLength() int {
	return c.EndSample - c.StartSample
}

// IsInRange reports whether the cue's span intersects the inclusive range
// [startSample, endSample].
func (c *Cue) IsInRange(startSample, endSample int) bool {
	return c.StartSample <= endSample && c.EndSample >= startSample
}

// Copy makes a deep copy of a Cue.
func (c *Cue) Copy() *Cue {
	return &Cue{
		StartSample: c.StartSample,
		EndSample:   c.EndSample,
		Payload:     c.Payload.Copy(),
	}
}

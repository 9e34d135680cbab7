package rytmi

import "sort"

type (
	// CueHandler is the bare callback shape: it receives only the fired cue.
	CueHandler func(cue *Cue)

	// TimedCueHandler is the timed callback shape: besides the fired cue it
	// receives the sample position at the end of the update range that
	// discovered the cue, the number of samples the range covered, and the
	// wall-clock slice the range represents, for sub-frame interpolation.
	TimedCueHandler func(cue *Cue, sampleTime, sampleDelta int, slice TimeSlice)

	// TimeSlice describes the wall-clock portion of a frame that a processed
	// sample range represents: its offset from the start of the frame and
	// its length, both in seconds.
	TimeSlice struct {
		OffsetSeconds float64
		LengthSeconds float64
	}

	// handlerEntry pairs a callback with the object that registered it, so
	// handlers can be removed by owner identity (functions themselves are
	// not comparable).
	handlerEntry struct {
		owner any
		cue   CueHandler
		timed TimedCueHandler
	}

	// CueTrack is one logical channel of cues, identified by EventID and
	// kept sorted ascending by start sample. Ties are broken stably, in
	// insertion order.
	CueTrack struct {
		EventID string
		Cues    []*Cue

		// AllowedPayloads restricts the payload kinds cues on this track may
		// carry; nil allows every kind.
		AllowedPayloads []PayloadKind `yaml:",omitempty,flow" json:",omitempty"`

		// UniqueOneOffs rejects a OneOff cue added at a sample where the
		// track already has one. By default duplicate simultaneous OneOffs
		// are permitted.
		UniqueOneOffs bool `yaml:",omitempty" json:",omitempty"`

		handlers []handlerEntry
		scratch  []*Cue
	}
)

func NewCueTrack(eventID string) *CueTrack {
	return &CueTrack{EventID: eventID}
}

// CanAddCue reports whether AddCue would accept the cue under the track's
// payload capability and uniqueness policy.
func (t *CueTrack) CanAddCue(cue *Cue) bool {
	if cue == nil {
		return false
	}
	if t.AllowedPayloads != nil {
		ok := false
		for _, k := range t.AllowedPayloads {
			if cue.Payload.Kind() == k {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if t.UniqueOneOffs && cue.IsOneOff() {
		for _, c := range t.Cues {
			if c.IsOneOff() && c.StartSample == cue.StartSample {
				return false
			}
		}
	}
	return true
}

// AddCue inserts a cue, maintaining sort order. It returns false if the
// track's policy rejects the cue.
func (t *CueTrack) AddCue(cue *Cue) bool {
	if !t.CanAddCue(cue) {
		return false
	}
	cue.sanitize()
	t.Cues = append(t.Cues, cue)
	t.EnsureOrder()
	return true
}

// RemoveCue removes the cue by identity. Removing a cue that is not on the
// track is a no-op.
func (t *CueTrack) RemoveCue(cue *Cue) {
	for i, c := range t.Cues {
		if c == cue {
			t.Cues = append(t.Cues[:i], t.Cues[i+1:]...)
			return
		}
	}
}

func (t *CueTrack) RemoveAllCues() {
	t.Cues = t.Cues[:0]
}

// EnsureOrder re-sorts the cues by start sample. Call it after mutating the
// start sample of a cue already on the track.
func (t *CueTrack) EnsureOrder() {
	sort.SliceStable(t.Cues, func(i, j int) bool {
		return t.Cues[i].StartSample < t.Cues[j].StartSample
	})
}

// CuesInRange returns, in ascending start-sample order, every cue whose span
// intersects the inclusive range [startSample, endSample].
func (t *CueTrack) CuesInRange(startSample, endSample int) []*Cue {
	return t.appendCuesInRange(startSample, endSample, nil)
}

func (t *CueTrack) appendCuesInRange(startSample, endSample int, dst []*Cue) []*Cue {
	for _, c := range t.Cues {
		if c.StartSample > endSample {
			break
		}
		if c.IsInRange(startSample, endSample) {
			dst = append(dst, c)
		}
	}
	return dst
}

// CheckForCues fires every registered handler exactly once for each cue
// intersecting the range, in ascending start-sample order; for each cue, all
// bare handlers run before all timed handlers, in registration order. The
// cues to fire are snapshotted before the first handler runs, so a handler
// may mutate the track's cue list without corrupting the scan; the live list
// reflects the mutation from the next call onwards.
func (t *CueTrack) CheckForCues(startSample, endSample int, slice TimeSlice) {
	t.scratch = t.appendCuesInRange(startSample, endSample, t.scratch[:0])
	handlers := t.handlers
	delta := endSample - startSample
	for _, cue := range t.scratch {
		for _, h := range handlers {
			if h.cue != nil {
				h.cue(cue)
			}
		}
		for _, h := range handlers {
			if h.timed != nil {
				h.timed(cue, endSample, delta, slice)
			}
		}
	}
	t.scratch = t.scratch[:0]
}

// RegisterHandler adds a bare callback, owned by owner, to the set notified
// by CheckForCues.
func (t *CueTrack) RegisterHandler(owner any, h CueHandler) {
	t.handlers = append(t.handlers, handlerEntry{owner: owner, cue: h})
}

// RegisterTimedHandler adds a timed callback, owned by owner, to the set
// notified by CheckForCues.
func (t *CueTrack) RegisterTimedHandler(owner any, h TimedCueHandler) {
	t.handlers = append(t.handlers, handlerEntry{owner: owner, timed: h})
}

// UnregisterHandlers removes every handler registered with the given owner.
// The remaining handlers keep their registration order. The handler list is
// rebuilt rather than filtered in place, so an in-flight CheckForCues keeps
// iterating its own snapshot safely.
func (t *CueTrack) UnregisterHandlers(owner any) {
	var kept []handlerEntry
	for _, h := range t.handlers {
		if h.owner != owner {
			kept = append(kept, h)
		}
	}
	t.handlers = kept
}

// HasHandlers reports whether any handler is registered on the track.
func (t *CueTrack) HasHandlers() bool {
	return len(t.handlers) > 0
}

// Copy makes a deep copy of a CueTrack. Handler registrations are not
// copied; they belong to the original.
func (t *CueTrack) Copy() *CueTrack {
	cues := make([]*Cue, len(t.Cues))
	for i, c := range t.Cues {
		cues[i] = c.Copy()
	}
	return &CueTrack{
		EventID:         t.EventID,
		Cues:            cues,
		AllowedPayloads: append([]PayloadKind(nil), t.AllowedPayloads...),
		UniqueOneOffs:   t.UniqueOneOffs,
	}
}

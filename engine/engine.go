// Package engine runs the event-triggering pipeline on top of the rytmi
// model types: it owns the set of loaded timelines, the event registration
// table connecting timelines to listeners, and the per-timeline delay queues
// implementing latency compensation.
//
// The whole engine is single-threaded and cooperative: the host calls
// ProcessTick once per playback update and ProcessDelayQueues once per
// frame, and every cue handler runs synchronously inside those calls.
package engine

import (
	"log/slog"

	"github.com/askuula/rytmi"
)

type (
	// AudioState is the injected collaborator the playback component
	// implements; the engine uses it to answer Music Time queries about
	// clips it is not itself driving, and to resolve the "currently playing"
	// default clip.
	AudioState interface {
		SampleTime(clip string) int
		TotalSampleTime(clip string) int
		IsPlaying(clip string) bool
		Pitch(clip string) float64
		CurrentClipName() string
	}

	// Engine is the explicitly constructed manager: hosts create one and
	// pass it around rather than reaching for process-wide state.
	Engine struct {
		timelines []*rytmi.Timeline
		registry  map[string]*registryEntry
		queues    map[*rytmi.Timeline][]timingRecord

		delaySeconds float64

		audio AudioState
		log   *slog.Logger

		scratch []*rytmi.Timeline
	}

	// registryEntry is the ordered callback collection for one event ID. The
	// entry itself is the owner identity under which its trigger function is
	// subscribed to timeline tracks.
	registryEntry struct {
		id       string
		handlers []registeredHandler
	}

	registeredHandler struct {
		owner any
		cue   rytmi.CueHandler
		timed rytmi.TimedCueHandler
	}
)

// New creates an Engine. audio may be nil if the host never uses the Music
// Time queries that need it; log nil means slog.Default().
func New(audio AudioState, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		registry: make(map[string]*registryEntry),
		queues:   make(map[*rytmi.Timeline][]timingRecord),
		audio:    audio,
		log:      log,
	}
}

// SetAudioState injects the playback component after construction, for
// hosts whose playback component needs the engine first.
func (e *Engine) SetAudioState(audio AudioState) {
	e.audio = audio
}

// SetLatencyDelay sets the engine-wide latency compensation in seconds.
// Timelines with IgnoreLatencyOffset set bypass it. Negative values clamp to
// zero.
func (e *Engine) SetLatencyDelay(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	e.delaySeconds = seconds
}

func (e *Engine) LatencyDelay() float64 {
	return e.delaySeconds
}

// LoadTimeline makes the timeline eligible for per-tick processing and
// subscribes it to every already-registered event ID matching one of its
// tracks. Loading an already-loaded timeline is a no-op; loading an invalid
// one fails.
func (e *Engine) LoadTimeline(t *rytmi.Timeline) error {
	if t == nil {
		return nil
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if e.IsLoaded(t) {
		return nil
	}
	t.ResetTimings()
	e.timelines = append(e.timelines, t)
	for _, entry := range e.registry {
		entry.subscribe(t)
	}
	return nil
}

// UnloadTimeline stops processing the timeline and unsubscribes it from
// every registered event ID. Its pending delay-queue records are discarded
// on the next ProcessDelayQueues call.
func (e *Engine) UnloadTimeline(t *rytmi.Timeline) {
	for i, tl := range e.timelines {
		if tl == t {
			e.timelines = append(e.timelines[:i], e.timelines[i+1:]...)
			break
		}
	}
	for _, entry := range e.registry {
		entry.unsubscribe(t)
	}
}

// IsLoaded reports whether the timeline is currently loaded.
func (e *Engine) IsLoaded(t *rytmi.Timeline) bool {
	for _, tl := range e.timelines {
		if tl == t {
			return true
		}
	}
	return false
}

// LoadedTimelines appends all loaded timelines to dst, in processing order.
func (e *Engine) LoadedTimelines(dst []*rytmi.Timeline) []*rytmi.Timeline {
	return append(dst, e.timelines...)
}

// ProcessTick is the inbound tick entrypoint: the playback reporter calls it
// once per update with the inclusive sample range the clip advanced over and
// the real elapsed frame time in seconds. Timelines bound to the clip either
// process the range immediately or, under latency compensation, queue it for
// delayed replay.
func (e *Engine) ProcessTick(clip string, startSample, endSample int, frameSeconds float64) {
	if len(e.scratch) != 0 {
		// a previous tick did not run to completion (reentrant call or a
		// panicking handler); recover rather than cascade
		e.log.Warn("tick scratch state was not empty; recovering", "clip", clip)
		e.scratch = e.scratch[:0]
	}
	if endSample < startSample {
		startSample, endSample = endSample, startSample
	}
	for _, tl := range e.timelines {
		if tl.SourceName == clip {
			e.scratch = append(e.scratch, tl)
		}
	}
	if len(e.scratch) == 0 {
		e.log.Warn("no timeline loaded for clip", "clip", clip)
		return
	}
	for _, tl := range e.scratch {
		if delay := e.effectiveDelay(tl); delay > 0 {
			e.enqueue(tl, startSample, endSample, rytmi.TimeSlice{LengthSeconds: frameSeconds}, delay)
		} else {
			tl.Update(startSample, endSample, rytmi.TimeSlice{LengthSeconds: frameSeconds})
		}
	}
	e.scratch = e.scratch[:0]
}

func (e *Engine) effectiveDelay(t *rytmi.Timeline) float64 {
	if t.IgnoreLatencyOffset {
		return 0
	}
	return e.delaySeconds
}

// RegisterForEvents adds a bare callback, owned by owner, for the event ID.
func (e *Engine) RegisterForEvents(eventID string, owner any, h rytmi.CueHandler) {
	entry := e.entryFor(eventID)
	entry.handlers = append(entry.handlers, registeredHandler{owner: owner, cue: h})
}

// RegisterForEventsWithTime adds a timed callback, owned by owner, for the
// event ID.
func (e *Engine) RegisterForEventsWithTime(eventID string, owner any, h rytmi.TimedCueHandler) {
	entry := e.entryFor(eventID)
	entry.handlers = append(entry.handlers, registeredHandler{owner: owner, timed: h})
}

// UnregisterForEvents removes every callback the owner registered for the
// event ID; when the last callback of an ID goes, the entry unsubscribes
// from all timelines and is deleted.
func (e *Engine) UnregisterForEvents(eventID string, owner any) {
	entry, ok := e.registry[eventID]
	if !ok {
		e.log.Warn("unregister for an event ID with no registrations", "eventID", eventID)
		return
	}
	entry.removeOwner(owner)
	e.dropIfEmpty(entry)
}

// UnregisterAllForOwner removes every callback the owner registered, across
// all event IDs.
func (e *Engine) UnregisterAllForOwner(owner any) {
	for _, entry := range e.registry {
		entry.removeOwner(owner)
		e.dropIfEmpty(entry)
	}
}

// entryFor returns the registry entry for the event ID, creating it and
// subscribing it to all loaded timelines on first registration.
func (e *Engine) entryFor(eventID string) *registryEntry {
	entry, ok := e.registry[eventID]
	if !ok {
		entry = &registryEntry{id: eventID}
		e.registry[eventID] = entry
		for _, tl := range e.timelines {
			entry.subscribe(tl)
		}
	}
	return entry
}

func (e *Engine) dropIfEmpty(entry *registryEntry) {
	if len(entry.handlers) > 0 {
		return
	}
	for _, tl := range e.timelines {
		entry.unsubscribe(tl)
	}
	delete(e.registry, entry.id)
}

func (en *registryEntry) subscribe(t *rytmi.Timeline) {
	if track := t.TrackByID(en.id); track != nil {
		track.RegisterTimedHandler(en, en.dispatch)
	}
}

func (en *registryEntry) unsubscribe(t *rytmi.Timeline) {
	if track := t.TrackByID(en.id); track != nil {
		track.UnregisterHandlers(en)
	}
}

// dispatch is the trigger function subscribed to timeline tracks: for each
// fired cue it invokes all bare callbacks, then all timed callbacks, in
// registration order.
func (en *registryEntry) dispatch(cue *rytmi.Cue, sampleTime, sampleDelta int, slice rytmi.TimeSlice) {
	handlers := en.handlers
	for _, h := range handlers {
		if h.cue != nil {
			h.cue(cue)
		}
	}
	for _, h := range handlers {
		if h.timed != nil {
			h.timed(cue, sampleTime, sampleDelta, slice)
		}
	}
}

func (en *registryEntry) removeOwner(owner any) {
	var kept []registeredHandler
	for _, h := range en.handlers {
		if h.owner != owner {
			kept = append(kept, h)
		}
	}
	en.handlers = kept
}

package engine

import "github.com/askuula/rytmi"

// timingRecord is one queued slice of a real-time update awaiting delayed
// replay. startSample/endSample hold the remaining undelivered sub-range;
// playTime is how much real time that sub-range represents and timeLeft how
// long until it has fully drained. Records are value types mutated in place
// through the queue slice, never through aliased references.
type timingRecord struct {
	timeLeft    float64
	playTime    float64
	startSample int
	endSample   int
}

// enqueue appends a record for the range. The record becomes due playTime
// seconds before timeLeft runs out, so the range drains gradually over its
// own real-time length instead of arriving as one lump; the slice offset
// accounts for updates that were themselves sub-slices of a frame, keeping
// paused/resumed playback consistent.
func (e *Engine) enqueue(t *rytmi.Timeline, startSample, endSample int, slice rytmi.TimeSlice, delay float64) {
	e.queues[t] = append(e.queues[t], timingRecord{
		timeLeft:    slice.LengthSeconds + delay + slice.OffsetSeconds,
		playTime:    slice.LengthSeconds,
		startSample: startSample,
		endSample:   endSample,
	})
}

// ProcessDelayQueues advances every timeline's delay queue by the real,
// unscaled elapsed frame time, forwarding the due portion of each record to
// its timeline. Call it once per frame. Timelines drain in loaded order, the
// same order ProcessTick visits them; queues of timelines that are no longer
// loaded are discarded without forwarding.
func (e *Engine) ProcessDelayQueues(elapsedSeconds float64) {
	for tl := range e.queues {
		if !e.IsLoaded(tl) {
			delete(e.queues, tl)
		}
	}
	for _, tl := range e.timelines {
		queue, ok := e.queues[tl]
		if !ok || len(queue) == 0 {
			continue
		}
		e.queues[tl] = drainQueue(tl, queue, elapsedSeconds)
	}
}

// FlushDelayQueue discards all pending records for the timeline immediately,
// suppressing any cues that were queued but not yet due. This is the one
// place a queued event is dropped, and only ever on explicit request.
func (e *Engine) FlushDelayQueue(t *rytmi.Timeline) {
	delete(e.queues, t)
}

// PendingRecords returns how many records are queued for the timeline.
func (e *Engine) PendingRecords(t *rytmi.Timeline) int {
	return len(e.queues[t])
}

// drainQueue processes one timeline's queue for one frame. Every record is
// advanced independently, so a large elapsed spike simply drains several
// records in the same call; no sample is ever dropped. Records are indexed
// and written back rather than iterated by reference.
func drainQueue(tl *rytmi.Timeline, queue []timingRecord, elapsedSeconds float64) []timingRecord {
	consumedThisFrame := 0.0
	drained := 0
	for i := 0; i < len(queue); i++ {
		rec := queue[i]
		if rec.startSample > rec.endSample {
			// already drained, waiting for FIFO removal
			if i == drained {
				drained++
			}
			continue
		}
		rec.timeLeft -= elapsedSeconds
		if rec.timeLeft < 0 {
			rec.timeLeft = 0
		}
		if rec.playTime <= 0 {
			// a tick that represented no real time cannot drain
			// fractionally; deliver its whole range once the delay elapses
			if rec.timeLeft > 0 {
				queue[i] = rec
				continue
			}
			tl.Update(rec.startSample, rec.endSample, rytmi.TimeSlice{OffsetSeconds: consumedThisFrame})
			rec.startSample = rec.endSample + 1
			queue[i] = rec
			if i == drained {
				drained++
			}
			continue
		}
		if rec.timeLeft >= rec.playTime {
			// nothing due yet
			queue[i] = rec
			continue
		}
		consumed := rec.playTime - rec.timeLeft
		fraction := consumed / rec.playTime
		dueEnd := rec.startSample + int(float64(rec.endSample-rec.startSample)*fraction)
		if dueEnd == rec.startSample {
			// a zero-length forwarded range is invalid
			dueEnd++
		}
		if rec.endSample-dueEnd == 1 {
			// do not leave a one-sample remainder dangling for the next tick
			dueEnd = rec.endSample
			rec.timeLeft = 0
		}
		if dueEnd > rec.endSample {
			dueEnd = rec.endSample
		}
		tl.Update(rec.startSample, dueEnd, rytmi.TimeSlice{
			OffsetSeconds: consumedThisFrame,
			LengthSeconds: consumed,
		})
		consumedThisFrame += consumed
		if rec.timeLeft > 0 && dueEnd < rec.endSample {
			rec.startSample = dueEnd + 1
			rec.playTime = rec.timeLeft
			queue[i] = rec
		} else {
			// fully drained; empty the remaining range so the record can
			// never become due again while waiting for FIFO removal
			rec.timeLeft = 0
			rec.playTime = 0
			rec.startSample = rec.endSample + 1
			queue[i] = rec
			if i == drained {
				drained++
			}
		}
	}
	return queue[drained:]
}

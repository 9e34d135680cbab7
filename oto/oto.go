// Package oto bridges the engine to a real audio device: it plays PCM clips
// through github.com/ebitengine/oto/v3 and reports the sample ranges the
// device consumed back to the engine, acting as the playback reporter and
// the engine's AudioState collaborator.
package oto

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ebitengine/oto/v3"

	"github.com/askuula/rytmi/engine"
)

const channelCount = 2

type (
	// Context owns the audio device and the clip players created on it, and
	// implements engine.AudioState for the engine it was created with.
	Context struct {
		ctx        *oto.Context
		sampleRate int
		eng        *engine.Engine
		players    map[string]*ClipPlayer
		current    string
	}

	// ClipPlayer plays one stereo float32 clip and tracks how far the device
	// has consumed it, in samples.
	ClipPlayer struct {
		name         string
		player       *oto.Player
		reader       *countingReader
		totalSamples int
		lastEnd      int
	}

	countingReader struct {
		r io.Reader
		n int
	}
)

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

// NewContext opens the audio device at the given sample rate and binds the
// context to the engine it will report playback to.
func NewContext(sampleRate int, eng *engine.Engine) (*Context, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{
		ctx:        ctx,
		sampleRate: sampleRate,
		eng:        eng,
		players:    make(map[string]*ClipPlayer),
	}, nil
}

// NewClipPlayer creates a player for the named clip from an interleaved
// stereo float32 buffer. A clip with a name already in use replaces the old
// player.
func (c *Context) NewClipPlayer(name string, buffer []float32) *ClipPlayer {
	data := FloatBufferTo16BitLE(buffer, nil)
	reader := &countingReader{r: bytes.NewReader(data)}
	p := &ClipPlayer{
		name:         name,
		player:       c.ctx.NewPlayer(reader),
		reader:       reader,
		totalSamples: len(buffer) / channelCount,
		lastEnd:      -1,
	}
	c.players[name] = p
	return p
}

// Play starts (or resumes) the clip and makes it the current clip.
func (c *Context) Play(name string) {
	if p, ok := c.players[name]; ok {
		c.current = name
		p.player.Play()
	}
}

func (c *Context) Pause(name string) {
	if p, ok := c.players[name]; ok {
		p.player.Pause()
	}
}

// Tick reports the sample range every playing clip advanced over since the
// last call and advances the engine's delay queues; call it once per frame
// with the real elapsed time.
func (c *Context) Tick(frameSeconds float64) {
	for _, p := range c.players {
		if !p.player.IsPlaying() {
			continue
		}
		pos := p.Position()
		if pos > p.lastEnd {
			c.eng.ProcessTick(p.name, p.lastEnd+1, pos, frameSeconds)
			p.lastEnd = pos
		}
	}
	c.eng.ProcessDelayQueues(frameSeconds)
}

// Finished reports whether every clip has been fully consumed by the device.
func (c *Context) Finished() bool {
	for _, p := range c.players {
		if p.lastEnd < p.totalSamples-1 {
			return false
		}
	}
	return true
}

// Position returns the sample position the device has consumed up to:
// everything read from the clip minus what still sits in the device buffer.
func (p *ClipPlayer) Position() int {
	pos := (p.reader.n - p.player.BufferedSize()) / (channelCount * 2)
	if pos < 0 {
		pos = 0
	}
	if pos > p.totalSamples-1 {
		pos = p.totalSamples - 1
	}
	return pos
}

func (p *ClipPlayer) Close() error {
	if err := p.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// engine.AudioState implementation.

func (c *Context) SampleTime(clip string) int {
	if p, ok := c.players[clip]; ok {
		return p.Position()
	}
	return 0
}

func (c *Context) TotalSampleTime(clip string) int {
	if p, ok := c.players[clip]; ok {
		return p.totalSamples
	}
	return 0
}

func (c *Context) IsPlaying(clip string) bool {
	if p, ok := c.players[clip]; ok {
		return p.player.IsPlaying()
	}
	return false
}

func (c *Context) Pitch(clip string) float64 {
	return 1
}

func (c *Context) CurrentClipName() string {
	return c.current
}

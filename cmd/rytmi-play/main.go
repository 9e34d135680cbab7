package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/askuula/rytmi"
	"github.com/askuula/rytmi/engine"
	"github.com/askuula/rytmi/midiconv"
	"github.com/askuula/rytmi/oto"
	"github.com/askuula/rytmi/version"
)

func main() {
	sim := flag.Bool("sim", false, "Simulate the playback clock instead of opening an audio device; runs as fast as possible.")
	delay := flag.Float64("delay", 0, "Latency compensation in seconds; cues are replayed this much after their audio position passes.")
	rate := flag.Int("rate", 44100, "Sample rate used when importing MIDI files and generating the click track.")
	fps := flag.Float64("fps", 60, "Frames per second of the processing loop.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(0)
	}
	filename := flag.Arg(0)
	tl, err := loadTimeline(filename, *rate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := run(tl, *sim, *delay, *fps); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Plays a timeline and prints every cue as it fires.\nUsage: %s [flags] timeline.yml|timeline.json|song.mid\n", os.Args[0])
	flag.PrintDefaults()
}

func loadTimeline(filename string, sampleRate int) (*rytmi.Timeline, error) {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mid", ".midi":
		return midiconv.ReadFile(filename, name, sampleRate)
	default:
		f, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("could not open %v: %v", filename, err)
		}
		defer f.Close()
		return rytmi.ReadTimeline(f)
	}
}

func run(tl *rytmi.Timeline, sim bool, delay, fps float64) error {
	var audio engine.AudioState
	clock := &simClock{name: tl.SourceName, total: clipLength(tl)}
	var ctx *oto.Context
	if sim {
		audio = clock
	}
	eng := engine.New(audio, nil)
	eng.SetLatencyDelay(delay)
	if err := eng.LoadTimeline(tl); err != nil {
		return err
	}
	owner := struct{ name string }{"rytmi-play"}
	for _, id := range tl.EventIDs(nil) {
		id := id
		eng.RegisterForEventsWithTime(id, &owner, func(cue *rytmi.Cue, sampleTime, sampleDelta int, slice rytmi.TimeSlice) {
			fmt.Printf("%8.3fs  beat %8.3f  %-24s %s\n",
				float64(sampleTime)/float64(tl.SampleRate),
				tl.TempoMap.BeatTimeFromSample(cue.StartSample, 1),
				id, payloadString(cue.Payload))
		})
	}
	if sim {
		return runSim(eng, tl, clock, fps)
	}
	var err error
	ctx, err = oto.NewContext(tl.SampleRate, eng)
	if err != nil {
		return err
	}
	eng.SetAudioState(ctx)
	ctx.NewClipPlayer(tl.SourceName, clickTrack(tl, clock.total))
	ctx.Play(tl.SourceName)
	frame := time.Duration(float64(time.Second) / fps)
	last := time.Now()
	for !ctx.Finished() || eng.PendingRecords(tl) > 0 {
		time.Sleep(frame)
		now := time.Now()
		ctx.Tick(now.Sub(last).Seconds())
		last = now
	}
	return nil
}

func runSim(eng *engine.Engine, tl *rytmi.Timeline, clock *simClock, fps float64) error {
	frame := 1 / fps
	advance := int(float64(tl.SampleRate) / fps)
	clock.playing = true
	for clock.pos < clock.total || eng.PendingRecords(tl) > 0 {
		end := clock.pos + advance - 1
		if end > clock.total-1 {
			end = clock.total - 1
		}
		if end >= clock.pos {
			eng.ProcessTick(tl.SourceName, clock.pos, end, frame)
			clock.pos = end + 1
		}
		eng.ProcessDelayQueues(frame)
	}
	clock.playing = false
	return nil
}

// clipLength estimates a clip length for a timeline with no audio attached:
// the end of the last cue plus one second of tail.
func clipLength(tl *rytmi.Timeline) int {
	last := 0
	for _, tr := range tl.Tracks {
		for _, c := range tr.Cues {
			if c.EndSample > last {
				last = c.EndSample
			}
		}
	}
	return last + tl.SampleRate
}

// clickTrack renders a metronome for the timeline's tempo map: a short
// decaying sine blip on every beat, an octave higher on measure starts.
func clickTrack(tl *rytmi.Timeline, totalSamples int) []float32 {
	buffer := make([]float32, totalSamples*2)
	blip := int(0.03 * float64(tl.SampleRate))
	for beat := 0; ; beat++ {
		sample := tl.TempoMap.SampleFromBeatTime(float64(beat), 1)
		if sample >= totalSamples {
			break
		}
		freq := 880.0
		if tl.TempoMap.BeatsWithinMeasure(sample) < 0.5 {
			freq = 1760
		}
		for i := 0; i < blip && sample+i < totalSamples; i++ {
			t := float64(i) / float64(tl.SampleRate)
			v := float32(0.5 * math.Exp(-t*90) * math.Sin(2*math.Pi*freq*t))
			buffer[(sample+i)*2] += v
			buffer[(sample+i)*2+1] += v
		}
		if beat > totalSamples { // tempo map degenerate enough to never advance
			break
		}
	}
	return buffer
}

func payloadString(p rytmi.Payload) string {
	switch p.Kind() {
	case rytmi.PayloadText:
		return fmt.Sprintf("text %q", *p.Text)
	case rytmi.PayloadInt:
		return fmt.Sprintf("int %v", *p.Int)
	case rytmi.PayloadFloat:
		return fmt.Sprintf("float %v", *p.Float)
	case rytmi.PayloadColor:
		c := *p.Color
		return fmt.Sprintf("color %.2f %.2f %.2f %.2f", c.R, c.G, c.B, c.A)
	case rytmi.PayloadCurve:
		return fmt.Sprintf("curve with %v points", len(p.Curve))
	case rytmi.PayloadGradient:
		return fmt.Sprintf("gradient with %v stops", len(p.Gradient))
	case rytmi.PayloadSpectrum:
		return fmt.Sprintf("spectrum bins %v-%v peak %.3f", p.Spectrum.StartBin, p.Spectrum.EndBin, p.Spectrum.Peak())
	case rytmi.PayloadAsset:
		return fmt.Sprintf("asset %q", *p.Asset)
	}
	return ""
}

// simClock is the headless playback reporter: it advances a sample position
// frame by frame without an audio device.
type simClock struct {
	name    string
	pos     int
	total   int
	playing bool
}

func (c *simClock) SampleTime(clip string) int      { return c.pos }
func (c *simClock) TotalSampleTime(clip string) int { return c.total }
func (c *simClock) IsPlaying(clip string) bool      { return c.playing }
func (c *simClock) Pitch(clip string) float64       { return 1 }
func (c *simClock) CurrentClipName() string         { return c.name }

// Package audio renders casting feedback cues through the system speaker.
// Every cue is synthesized, so the server carries no sample assets.
package audio

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"emberstaff/server/internal/cast"
)

const (
	sampleRate = beep.SampleRate(48000)

	defaultFade = 300 * time.Millisecond
)

// Player implements the instrument's audio feedback: a looping hum while a
// charge is active, a chime on release, and a short buzz on rejection.
type Player struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	loops       map[string]*loopHandle
	fade        time.Duration
	initialized bool
}

type loopHandle struct {
	ctrl     *beep.Ctrl
	streamer *humStreamer
}

// NewPlayer creates an uninitialized player. Call Initialize before use;
// until then every cue is a no-op.
func NewPlayer() *Player {
	return &Player{
		mixer: &beep.Mixer{},
		loops: make(map[string]*loopHandle),
		fade:  defaultFade,
	}
}

// Initialize opens the speaker. Safe to call more than once.
func (p *Player) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(time.Millisecond*100)); err != nil {
		return err
	}
	speaker.Play(p.mixer)
	p.initialized = true
	return nil
}

// Cleanup silences everything. The speaker itself stays open; beep exposes no
// close.
func (p *Player) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	for _, handle := range p.loops {
		handle.ctrl.Paused = true
	}
	p.loops = make(map[string]*loopHandle)
	p.mixer.Clear()
	p.initialized = false
}

// Play starts the cue with the given id. Looping cues that are already
// playing are left alone.
func (p *Player) Play(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	switch {
	case id == cast.CueChargeLoop:
		if handle, ok := p.loops[id]; ok && !handle.ctrl.Paused && !handle.streamer.fading() {
			return
		}
		streamer := newHumStreamer(sampleRate, 140)
		ctrl := &beep.Ctrl{Streamer: streamer, Paused: false}
		p.loops[id] = &loopHandle{ctrl: ctrl, streamer: streamer}
		speaker.Lock()
		p.mixer.Add(ctrl)
		speaker.Unlock()
	case id == cast.CueCast:
		p.addOneShot(newChimeStreamer(sampleRate, 660), 400*time.Millisecond)
	case strings.HasPrefix(id, "reject_"):
		p.addOneShot(newBuzzStreamer(sampleRate, 120), 150*time.Millisecond)
	}
}

// Stop ends a looping cue, either immediately or with a short fade-out.
func (p *Player) Stop(id string, withFade bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	handle, ok := p.loops[id]
	if !ok {
		return
	}
	delete(p.loops, id)
	if withFade {
		speaker.Lock()
		handle.streamer.beginFade(sampleRate.N(p.fade))
		speaker.Unlock()
		return
	}
	speaker.Lock()
	handle.ctrl.Paused = true
	speaker.Unlock()
}

func (p *Player) addOneShot(streamer beep.Streamer, d time.Duration) {
	speaker.Lock()
	p.mixer.Add(beep.Take(sampleRate.N(d), streamer))
	speaker.Unlock()
}

// humStreamer is the charge loop: a low drone with a slow amplitude wobble.
// Once beginFade is called it ramps to silence and then drains, which removes
// it from the mixer.
type humStreamer struct {
	sr          beep.SampleRate
	freq        float64
	pos         int
	fadeTotal   int
	fadeElapsed int
	fadeActive  bool
}

func newHumStreamer(sr beep.SampleRate, freq float64) *humStreamer {
	return &humStreamer{sr: sr, freq: freq}
}

// beginFade must run under speaker.Lock.
func (g *humStreamer) beginFade(samples int) {
	if samples < 1 {
		samples = 1
	}
	g.fadeActive = true
	g.fadeTotal = samples
	g.fadeElapsed = 0
}

func (g *humStreamer) fading() bool {
	return g.fadeActive
}

func (g *humStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if g.fadeActive && g.fadeElapsed >= g.fadeTotal {
			return i, i > 0
		}
		t := float64(g.pos) / float64(g.sr)

		wobble := 0.5 + 0.5*math.Sin(2*math.Pi*0.8*t)
		amplitude := 0.12 * (0.6 + 0.4*wobble)
		sample := amplitude * math.Sin(2*math.Pi*g.freq*t)
		sample += amplitude * 0.35 * math.Sin(2*math.Pi*g.freq*2*t)

		if g.fadeActive {
			sample *= 1 - float64(g.fadeElapsed)/float64(g.fadeTotal)
			g.fadeElapsed++
		}

		samples[i][0] = sample
		samples[i][1] = sample
		g.pos++
	}
	return len(samples), true
}

func (g *humStreamer) Err() error {
	return nil
}

// chimeStreamer is the release cue: a bright tone with a fast exponential
// decay.
type chimeStreamer struct {
	sr   beep.SampleRate
	freq float64
	pos  int
}

func newChimeStreamer(sr beep.SampleRate, freq float64) *chimeStreamer {
	return &chimeStreamer{sr: sr, freq: freq}
}

func (g *chimeStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		t := float64(g.pos) / float64(g.sr)

		envelope := math.Exp(-t * 6)
		sample := 0.25 * envelope * math.Sin(2*math.Pi*g.freq*t)
		sample += 0.1 * envelope * math.Sin(2*math.Pi*g.freq*1.5*t)

		samples[i][0] = sample
		samples[i][1] = sample
		g.pos++
	}
	return len(samples), true
}

func (g *chimeStreamer) Err() error {
	return nil
}

// buzzStreamer is the rejection cue: a short low buzz with harmonics.
type buzzStreamer struct {
	sr   beep.SampleRate
	freq float64
	pos  int
}

func newBuzzStreamer(sr beep.SampleRate, freq float64) *buzzStreamer {
	return &buzzStreamer{sr: sr, freq: freq}
}

func (g *buzzStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		t := float64(g.pos) / float64(g.sr)

		sample := 0.0
		sample += 0.3 * math.Sin(2*math.Pi*g.freq*t)
		sample += 0.15 * math.Sin(2*math.Pi*g.freq*2*t)
		sample += 0.075 * math.Sin(2*math.Pi*g.freq*3*t)

		attack := math.Min(t/0.02, 1.0)
		sample *= attack * 0.2

		samples[i][0] = sample
		samples[i][1] = sample
		g.pos++
	}
	return len(samples), true
}

func (g *buzzStreamer) Err() error {
	return nil
}

var _ cast.AudioCue = (*Player)(nil)

package audio

import (
	"math"
	"testing"
)

func TestHumStreamerFadeDrains(t *testing.T) {
	g := newHumStreamer(sampleRate, 140)

	buf := make([][2]float64, 64)
	if n, ok := g.Stream(buf); n != len(buf) || !ok {
		t.Fatalf("expected full buffer before fade, got n=%d ok=%v", n, ok)
	}

	g.beginFade(32)
	if n, ok := g.Stream(buf); n != 32 || !ok {
		t.Fatalf("expected fade to emit exactly 32 samples, got n=%d ok=%v", n, ok)
	}
	if n, ok := g.Stream(buf); n != 0 || ok {
		t.Fatalf("expected drained streamer after fade, got n=%d ok=%v", n, ok)
	}
}

func TestHumStreamerFadeRampsDown(t *testing.T) {
	g := newHumStreamer(sampleRate, 140)
	warm := make([][2]float64, 512)
	g.Stream(warm)

	g.beginFade(480)
	buf := make([][2]float64, 480)
	g.Stream(buf)

	var head, tail float64
	for _, s := range buf[:48] {
		head += math.Abs(s[0])
	}
	for _, s := range buf[432:] {
		tail += math.Abs(s[0])
	}
	if tail >= head {
		t.Fatalf("fade should attenuate over time: head=%f tail=%f", head, tail)
	}
}

func TestChimeStreamerDecays(t *testing.T) {
	g := newChimeStreamer(sampleRate, 660)

	early := make([][2]float64, 1024)
	g.Stream(early)
	late := make([][2]float64, 1024)
	for i := 0; i < 40; i++ {
		g.Stream(late)
	}

	var earlySum, lateSum float64
	for _, s := range early {
		earlySum += math.Abs(s[0])
	}
	for _, s := range late {
		lateSum += math.Abs(s[0])
	}
	if lateSum >= earlySum {
		t.Fatalf("chime envelope should decay: early=%f late=%f", earlySum, lateSum)
	}
}

func TestUninitializedPlayerIsSilent(t *testing.T) {
	p := NewPlayer()
	p.Play("charge_loop")
	p.Play("cast")
	p.Stop("charge_loop", true)
	if len(p.loops) != 0 {
		t.Fatalf("uninitialized player must not track loops")
	}
}

package audioio

import (
	"testing"
)

func TestResampleLength(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		from, to int
		want     int
	}{
		{"same rate", 5, 24000, 24000, 5},
		{"48k to 16k", 960, 48000, 16000, 320},
		{"48k to 24k", 960, 48000, 24000, 480},
		{"16k to 24k", 320, 16000, 24000, 480},
		{"empty", 0, 24000, 48000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]int16, tt.n)
			for i := range in {
				in[i] = int16(i)
			}
			if got := len(Resample(in, tt.from, tt.to)); got != tt.want {
				t.Errorf("len = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResampleInterpolates(t *testing.T) {
	out := Resample([]int16{0, 100, 200, 300}, 8000, 16000)
	want := []int16{0, 50, 100, 150, 200, 250, 300, 300}
	if len(out) != len(want) {
		t.Fatalf("len = %d", len(out))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestBytesSamplesRoundTrip(t *testing.T) {
	data := []byte{0x02, 0x01, 0xFF, 0xFF, 0x09}
	s := BytesToSamples(data)
	if len(s) != 2 || s[0] != 0x0102 || s[1] != -1 {
		t.Fatalf("samples = %v", s)
	}
	b := SamplesToBytes(s)
	if len(b) != 4 || b[0] != 0x02 || b[3] != 0xFF {
		t.Errorf("bytes = %v", b)
	}
}

func TestInterleaveDownmix(t *testing.T) {
	mono := []int16{10, -20, 30}
	st := Interleave(mono, 2)
	if len(st) != 6 || st[2] != -20 || st[3] != -20 {
		t.Fatalf("interleaved = %v", st)
	}
	back := Downmix(st, 2)
	for i := range mono {
		if back[i] != mono[i] {
			t.Errorf("back[%d] = %d", i, back[i])
		}
	}
	if got := Downmix([]int16{100, 200}, 2); got[0] != 150 {
		t.Errorf("downmix = %v", got)
	}
}

func TestChunk(t *testing.T) {
	c := Chunk{Samples: make([]int16, 4800), SampleRate: 24000, Channels: 2}
	if d := c.Duration(); d != 0.1 {
		t.Errorf("Duration = %v", d)
	}
	if n := len(c.Mono()); n != 2400 {
		t.Errorf("Mono len = %d", n)
	}
	if d := (Chunk{}).Duration(); d != 0 {
		t.Errorf("empty Duration = %v", d)
	}
	got := ChunkFromBytes([]byte{1, 0, 2, 0}, 16000, 1)
	if len(got.Samples) != 2 || got.Samples[1] != 2 || got.SampleRate != 16000 {
		t.Errorf("ChunkFromBytes = %+v", got)
	}
}

package orb

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#50C878", Color{0x50, 0xC8, 0x78}, false},
		{"40e0d0", Color{0x40, 0xE0, 0xD0}, false},
		{"#fff", Color{0xFF, 0xFF, 0xFF}, false},
		{"#12345", Color{}, true},
		{"#GGGGGG", Color{}, true},
		{"", Color{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestColorLerp(t *testing.T) {
	a := Color{0, 0, 0}
	b := Color{200, 100, 50}
	if got := a.Lerp(b, 0); got != a {
		t.Errorf("Lerp(0) = %v", got)
	}
	if got := a.Lerp(b, 1); got != b {
		t.Errorf("Lerp(1) = %v", got)
	}
	if got := a.Lerp(b, 0.5); got != (Color{100, 50, 25}) {
		t.Errorf("Lerp(0.5) = %v", got)
	}
}

func TestColorJSON(t *testing.T) {
	in := Config{Radius: 10, BaseColor: MustColor("#FF1493"), GlowColor: MustColor("#4B0082"), PulseSpeed: 0.02, MaxOpacity: 1}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Config
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestConfigValidate(t *testing.T) {
	base, err := DefaultConfig(Fluid)
	if err != nil {
		t.Fatal(err)
	}
	neg := -1.0
	zero := 0.0
	high := 1.5

	tests := []struct {
		name  string
		patch Partial
		ok    bool
	}{
		{"defaults", Partial{}, true},
		{"negative radius", Partial{Radius: &neg}, false},
		{"zero pulse", Partial{PulseSpeed: &zero}, false},
		{"max above one", Partial{MaxOpacity: &high}, false},
		{"min above max", Partial{MinOpacity: &high}, false},
		{"zero min", Partial{MinOpacity: &zero}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := base.Merge(tt.patch).Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestMergeKeepsUnsetFields(t *testing.T) {
	base, _ := DefaultConfig(Wave)
	r := 80.0
	got := base.Merge(Partial{Radius: &r})
	if got.Radius != 80 {
		t.Errorf("Radius = %v", got.Radius)
	}
	if got.BaseColor != base.BaseColor || got.PulseSpeed != base.PulseSpeed {
		t.Errorf("unset fields changed: %+v", got)
	}
}

package throttling

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPresets(t *testing.T) {
	if Default.RTTMs != 150 || Default.CPUSlowdownMultiplier != 4 {
		t.Errorf("unexpected default profile: %+v", Default)
	}
	if Default.MaxConnectionsPerOrigin != 6 || Default.MaxConcurrentRequests != 10 {
		t.Errorf("default knobs not applied: %+v", Default)
	}
	for name := range presets {
		p, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q): %v", name, err)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", name, err)
		}
	}
	if _, err := Preset("dialup"); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("expected ErrInvalidProfile, got %v", err)
	}
	if Provided.IsSimulated() || !Desktop.IsSimulated() {
		t.Error("IsSimulated mismatch")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		check   func(t *testing.T, p Profile)
		wantErr string
	}{
		{
			name: "override network only",
			yaml: "rtt_ms: 40\nthroughput_kbps: 10240\n",
			check: func(t *testing.T, p Profile) {
				if p.RTTMs != 40 || p.ThroughputKbps != 10240 {
					t.Errorf("network not overridden: %+v", p)
				}
				if p.CPUSlowdownMultiplier != 4 {
					t.Errorf("cpu multiplier should keep base value, got %g", p.CPUSlowdownMultiplier)
				}
			},
		},
		{
			name: "provided ignores zero throughput",
			yaml: "method: provided\nthroughput_kbps: 0\n",
			check: func(t *testing.T, p Profile) {
				if p.IsSimulated() {
					t.Error("expected provided method")
				}
			},
		},
		{
			name: "tuning knobs",
			yaml: "max_concurrent_requests: 4\nmax_connections_per_origin: 2\nmax_events: 500\n",
			check: func(t *testing.T, p Profile) {
				if p.MaxConcurrentRequests != 4 || p.MaxConnectionsPerOrigin != 2 || p.MaxEvents != 500 {
					t.Errorf("knobs not applied: %+v", p)
				}
			},
		},
		{name: "bad method", yaml: "method: guess\n", wantErr: "one of"},
		{name: "negative rtt", yaml: "rtt_ms: -5\n", wantErr: "at least 0"},
		{name: "malformed", yaml: "rtt_ms: [1\n", wantErr: "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.yaml), Default)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.check(t, p)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte("rtt_ms: 300\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.RTTMs != 300 {
		t.Errorf("RTTMs = %g, want 300", p.RTTMs)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestKey(t *testing.T) {
	if MobileSlow4G.Key() == Desktop.Key() {
		t.Error("distinct profiles share a key")
	}
	if MobileSlow4G.Key() != Default.Key() {
		t.Error("identical profiles should share a key")
	}
	other := Provided
	other.RTTMs = 99
	if other.Key() != Provided.Key() {
		t.Error("provided profiles should share a key")
	}
}

// Package throttling describes the network and CPU constraints a page load is
// simulated under.
package throttling

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-perfsim/pkg/validation"
)

// Method selects how metrics are derived.
type Method string

const (
	// MethodSimulate replays the dependency graph under the profile's constraints.
	MethodSimulate Method = "simulate"
	// MethodProvided uses the observed timeline as-is.
	MethodProvided Method = "provided"
)

// Tuning defaults for the connection model and simulator.
const (
	DefaultMaxConcurrentRequests   = 10
	DefaultMaxConnectionsPerOrigin = 6
	DefaultDNSRTTMultiplier        = 2.0
	DefaultLayoutTaskMultiplier    = 0.5
	DefaultMaxCPUTaskDurationMs    = 10000.0
	DefaultMaxEvents               = 1_000_000
)

// ErrInvalidProfile wraps every profile validation failure.
var ErrInvalidProfile = errors.New("invalid throttling profile")

// Profile is a set of network/CPU constraints applied during simulation.
type Profile struct {
	Method                  Method  `yaml:"method" json:"method" validate:"required,oneof=simulate provided"`
	ThroughputKbps          float64 `yaml:"throughput_kbps" json:"throughputKbps" validate:"gte=0"`
	RTTMs                   float64 `yaml:"rtt_ms" json:"rttMs" validate:"gte=0"`
	CPUSlowdownMultiplier   float64 `yaml:"cpu_slowdown_multiplier" json:"cpuSlowdownMultiplier" validate:"gte=0"`
	MaxConcurrentRequests   int     `yaml:"max_concurrent_requests" json:"maxConcurrentRequests" validate:"gte=0"`
	MaxConnectionsPerOrigin int     `yaml:"max_connections_per_origin" json:"maxConnectionsPerOrigin" validate:"gte=0"`
	DNSRTTMultiplier        float64 `yaml:"dns_rtt_multiplier" json:"dnsRttMultiplier" validate:"gte=0"`
	LayoutTaskMultiplier    float64 `yaml:"layout_task_multiplier" json:"layoutTaskMultiplier" validate:"gte=0"`
	MaxCPUTaskDurationMs    float64 `yaml:"max_cpu_task_duration_ms" json:"maxCpuTaskDurationMs" validate:"gte=0"`
	MaxEvents               int     `yaml:"max_events" json:"maxEvents" validate:"gte=0"`
}

// MobileSlow4G is the standard mobile profile: 150 ms RTT, 1.6 Mbps, 4x CPU.
var MobileSlow4G = Profile{
	Method:                MethodSimulate,
	ThroughputKbps:        1.6 * 1024,
	RTTMs:                 150,
	CPUSlowdownMultiplier: 4,
}.WithDefaults()

// Desktop is the standard desktop profile: 40 ms RTT, 10 Mbps, no CPU slowdown.
var Desktop = Profile{
	Method:                MethodSimulate,
	ThroughputKbps:        10 * 1024,
	RTTMs:                 40,
	CPUSlowdownMultiplier: 1,
}.WithDefaults()

// Provided bypasses the simulator.
var Provided = Profile{Method: MethodProvided}.WithDefaults()

// Default is the profile used when none is configured.
var Default = MobileSlow4G

// presets maps preset names accepted by Preset.
var presets = map[string]Profile{
	"mobile":   MobileSlow4G,
	"desktop":  Desktop,
	"provided": Provided,
}

// Preset returns a named preset profile.
func Preset(name string) (Profile, error) {
	p, ok := presets[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidProfile, name)
	}
	return p, nil
}

// WithDefaults fills zero tuning knobs with their defaults.
func (p Profile) WithDefaults() Profile {
	p.Method = validation.DefaultOr(p.Method, MethodSimulate)
	p.CPUSlowdownMultiplier = validation.DefaultOr(p.CPUSlowdownMultiplier, 1)
	p.MaxConcurrentRequests = validation.DefaultOr(p.MaxConcurrentRequests, DefaultMaxConcurrentRequests)
	p.MaxConnectionsPerOrigin = validation.DefaultOr(p.MaxConnectionsPerOrigin, DefaultMaxConnectionsPerOrigin)
	p.DNSRTTMultiplier = validation.DefaultOr(p.DNSRTTMultiplier, DefaultDNSRTTMultiplier)
	p.LayoutTaskMultiplier = validation.DefaultOr(p.LayoutTaskMultiplier, DefaultLayoutTaskMultiplier)
	p.MaxCPUTaskDurationMs = validation.DefaultOr(p.MaxCPUTaskDurationMs, DefaultMaxCPUTaskDurationMs)
	p.MaxEvents = validation.DefaultOr(p.MaxEvents, DefaultMaxEvents)
	return p
}

// IsSimulated reports whether metrics should come from the simulator.
func (p Profile) IsSimulated() bool {
	return p.Method != MethodProvided
}

// Validate checks tag constraints and the simulate-mode requirements.
func (p Profile) Validate() error {
	cv := validation.NewConfigValidator("Profile").
		Struct(p).
		When(p.Method == MethodSimulate, func(cv *validation.ConfigValidator) {
			cv.PositiveFloat("ThroughputKbps", p.ThroughputKbps).
				PositiveFloat("CPUSlowdownMultiplier", p.CPUSlowdownMultiplier).
				RangeInt("MaxConnectionsPerOrigin", p.MaxConnectionsPerOrigin, 1, 64).
				RangeInt("MaxConcurrentRequests", p.MaxConcurrentRequests, 1, 1024).
				PositiveFloat("MaxCPUTaskDurationMs", p.MaxCPUTaskDurationMs)
		})
	if err := cv.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return nil
}

// Key identifies the profile for cache lookups. Provided profiles share a
// key because none of the constraints apply.
func (p Profile) Key() string {
	if !p.IsSimulated() {
		return string(MethodProvided)
	}
	return fmt.Sprintf("%s|tp=%g|rtt=%g|cpu=%g|mcr=%d|mcpo=%d|dns=%g|layout=%g|maxtask=%g|maxev=%d",
		p.Method, p.ThroughputKbps, p.RTTMs, p.CPUSlowdownMultiplier,
		p.MaxConcurrentRequests, p.MaxConnectionsPerOrigin, p.DNSRTTMultiplier,
		p.LayoutTaskMultiplier, p.MaxCPUTaskDurationMs, p.MaxEvents)
}

// Parse decodes a YAML profile. Fields absent from the document keep the
// values of base, then remaining zero knobs take their defaults.
func Parse(data []byte, base Profile) (Profile, error) {
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse throttling profile: %w", err)
	}
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Read parses a YAML profile from r on top of Default.
func Read(r io.Reader) (Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read throttling profile: %w", err)
	}
	return Parse(data, Default)
}

// Load reads a YAML profile file on top of Default.
func Load(path string) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to open throttling profile: %w", err)
	}
	defer f.Close()
	return Read(f)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-perfsim/pkg/logging"
	"github.com/dd0wney/cluso-perfsim/pkg/throttling"
)

func TestParseDefaults(t *testing.T) {
	s, err := Parse([]byte("artifacts: ./run\n"))
	require.NoError(t, err)

	assert.Equal(t, "./run", s.Artifacts)
	assert.Equal(t, DefaultPreset, s.Preset)
	assert.Equal(t, OutputJSON, s.Output)
	assert.Equal(t, logging.InfoLevel, s.Level())
	assert.Equal(t, 4, s.Workers)
	require.NoError(t, s.Resolve())

	p, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, throttling.MobileSlow4G, p)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown output", "output: xml\n"},
		{"unknown preset", "preset: dialup\n"},
		{"unknown level", "log_level: verbose\n"},
		{"zero workers", "workers: 0\n"},
		{"half credentials", "s3:\n  access_key_id: AKIA\n"},
		{"malformed", "output: [json\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestResolveRequiresArtifacts(t *testing.T) {
	s := Default()
	assert.ErrorIs(t, s.Resolve(), ErrInvalidSettings)

	s.Artifacts = "s3://bucket/run"
	assert.NoError(t, s.Resolve())
}

func TestProfileLayers(t *testing.T) {
	dir := t.TempDir()
	profilePath := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte("rtt_ms: 80\nthroughput_kbps: 5000\n"), 0o600))

	doc := "preset: desktop\nprofile_file: " + profilePath + "\nthrottling:\n  rtt_ms: 20\n  max_events: 500\n"
	s, err := Parse([]byte(doc))
	require.NoError(t, err)

	p, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, 20.0, p.RTTMs, "inline section wins")
	assert.Equal(t, 5000.0, p.ThroughputKbps, "profile file overrides preset")
	assert.Equal(t, throttling.Desktop.CPUSlowdownMultiplier, p.CPUSlowdownMultiplier, "preset fills the rest")
	assert.Equal(t, 500, p.MaxEvents)
}

func TestProfileInvalidOverride(t *testing.T) {
	s, err := Parse([]byte("throttling:\n  throughput_kbps: -1\n"))
	require.NoError(t, err)

	_, err = s.Profile()
	assert.ErrorIs(t, err, throttling.ErrInvalidProfile)
}

func TestProfileMissingFile(t *testing.T) {
	s := Default()
	s.ProfileFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := s.Profile()
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pageaudit.yaml")
	doc := `artifacts: s3://perf-runs/2024/home
preset: provided
output: table
log_level: debug
workers: 8
metrics_file: metrics.prom
s3:
  region: eu-west-1
  endpoint: http://localhost:9000
  access_key_id: minio
  secret_access_key: minio123
  use_path_style: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, OutputTable, s.Output)
	assert.Equal(t, logging.DebugLevel, s.Level())
	assert.Equal(t, 8, s.Workers)
	assert.Equal(t, "metrics.prom", s.MetricsFile)
	assert.Equal(t, "eu-west-1", s.S3.Region)
	assert.True(t, s.S3.UsePathStyle)

	p, err := s.Profile()
	require.NoError(t, err)
	assert.False(t, p.IsSimulated())

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "192.168.4.1", cfg.Drone.Host)
	assert.Equal(t, 2390, cfg.Drone.Port)
	assert.Equal(t, TransportUDP, cfg.Drone.Transport)
	assert.Equal(t, 50.0, cfg.Control.Rate)
	assert.Equal(t, 110.0, cfg.Trim().Sensitivity)
	assert.Equal(t, 30.0, cfg.Limits().MaxAngle)
	assert.Equal(t, 200.0, cfg.Limits().MaxYawRate)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "pilot.yaml")
	data := `
drone:
  host: 10.0.0.7
  transport: bridge
  link_timeout: 2s
control:
  rate: 25
  roll_trim: -4.5
  sensitivity: 80
`
	require.NoError(t, os.WriteFile(fp, []byte(data), 0o644))

	cfg, err := Load(fp)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7", cfg.Drone.Host)
	assert.Equal(t, 2390, cfg.Drone.Port)
	assert.Equal(t, TransportBridge, cfg.Drone.Transport)
	assert.Equal(t, time.Second*2, cfg.Drone.LinkTimeout)
	assert.Equal(t, 25.0, cfg.Control.Rate)
	assert.Equal(t, -4.5, cfg.Trim().Roll)
	assert.Equal(t, 80.0, cfg.Trim().Sensitivity)
}

func TestLoadInvalid(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "pilot.yaml")

	require.NoError(t, os.WriteFile(fp, []byte("control:\n  pitch_trim: 70\n"), 0o644))
	_, err := Load(fp)
	assert.ErrorContains(t, err, "pitch trim")

	require.NoError(t, os.WriteFile(fp, []byte("control: [1, 2"), 0o644))
	_, err = Load(fp)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mod := range map[string]func(c *Config){
		"port":      func(c *Config) { c.Drone.Port = 0 },
		"host":      func(c *Config) { c.Drone.Host = "" },
		"transport": func(c *Config) { c.Drone.Transport = "carrier-pigeon" },
		"rate":      func(c *Config) { c.Control.Rate = 1000 },
		"angle":     func(c *Config) { c.Control.MaxAngle = 45 },
		"yaw":       func(c *Config) { c.Control.MaxYawRate = 0 },
		"sens":      func(c *Config) { c.Control.Sensitivity = 0.5 },
		"cooldown":  func(c *Config) { c.Control.EstopCooldown = -time.Second },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mod(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "pilot.yaml")

	cfg := Default()
	cfg.Control.PitchTrim = 12
	cfg.Drone.Checksum = true

	require.NoError(t, cfg.Save(fp))

	got, err := Load(fp)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

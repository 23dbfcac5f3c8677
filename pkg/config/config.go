package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"flyq/pkg/control"
	"flyq/pkg/crtp"
	"flyq/pkg/transport"
)

const (
	TransportUDP    = "udp"
	TransportBridge = "bridge"
)

type Drone struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Transport   string        `yaml:"transport"`
	BridgeURL   string        `yaml:"bridge_url"`
	Checksum    bool          `yaml:"checksum"`
	LinkTimeout time.Duration `yaml:"link_timeout"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

type Control struct {
	Rate          float64       `yaml:"rate"`
	MaxAngle      float64       `yaml:"max_angle"`
	MaxYawRate    float64       `yaml:"max_yaw_rate"`
	RollTrim      float64       `yaml:"roll_trim"`
	PitchTrim     float64       `yaml:"pitch_trim"`
	Sensitivity   float64       `yaml:"sensitivity"`
	EstopCooldown time.Duration `yaml:"estop_cooldown"`
}

type Config struct {
	Drone   Drone   `yaml:"drone"`
	Control Control `yaml:"control"`
	Debug   bool    `yaml:"debug"`
}

func Default() Config {
	return Config{
		Drone: Drone{
			Host:        transport.DefaultHost,
			Port:        transport.DefaultPort,
			Transport:   TransportUDP,
			BridgeURL:   transport.DefaultBridgeURL,
			SendTimeout: time.Second,
		},
		Control: Control{
			Rate:          control.DefaultRate,
			MaxAngle:      crtp.MaxAngle,
			MaxYawRate:    crtp.MaxYawRate,
			Sensitivity:   control.DefaultTrim().Sensitivity,
			EstopCooldown: time.Second * 3,
		},
	}
}

// Load reads a YAML file over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func (c Config) Trim() control.Trim {
	return control.Trim{
		Roll:        c.Control.RollTrim,
		Pitch:       c.Control.PitchTrim,
		Sensitivity: c.Control.Sensitivity,
	}
}

func (c Config) Limits() control.Limits {
	return control.Limits{
		MaxAngle:   c.Control.MaxAngle,
		MaxYawRate: c.Control.MaxYawRate,
	}
}

func (c Config) Validate() error {
	if c.Drone.Host == "" {
		return fmt.Errorf("drone.host must be set")
	}
	if c.Drone.Port <= 0 || c.Drone.Port > 65535 {
		return fmt.Errorf("drone.port %d out of range", c.Drone.Port)
	}

	switch c.Drone.Transport {
	case TransportUDP:
	case TransportBridge:
		if c.Drone.BridgeURL == "" {
			return fmt.Errorf("drone.bridge_url must be set for the bridge transport")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Drone.Transport)
	}

	if c.Control.Rate < 1 || c.Control.Rate > 500 {
		return fmt.Errorf("control.rate %.1f out of [1,500]", c.Control.Rate)
	}
	if c.Control.MaxAngle <= 0 || c.Control.MaxAngle > crtp.MaxAngle {
		return fmt.Errorf("control.max_angle %.1f out of (0,%v]", c.Control.MaxAngle, crtp.MaxAngle)
	}
	if c.Control.MaxYawRate <= 0 || c.Control.MaxYawRate > crtp.MaxYawRate {
		return fmt.Errorf("control.max_yaw_rate %.1f out of (0,%v]", c.Control.MaxYawRate, crtp.MaxYawRate)
	}
	if c.Control.EstopCooldown < 0 {
		return fmt.Errorf("control.estop_cooldown must not be negative")
	}

	if err := c.Trim().Validate(); err != nil {
		return fmt.Errorf("control: %w", err)
	}

	return nil
}

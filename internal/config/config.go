package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix   = "RADIO_BRIDGE_"
	EnvSecret   = EnvPrefix + "SECRET"
	EnvPort     = EnvPrefix + "PORT"
	EnvPortFile = EnvPrefix + "PORT_FILE"
	EnvLogLevel = EnvPrefix + "LOG_LEVEL"
)

var ErrNonLoopbackHost = errors.New("host must be a loopback address")

type Config struct {
	Host           string        `yaml:"host"`
	PreferredPort  int           `yaml:"preferred_port"`
	PortProbeLimit int           `yaml:"port_probe_limit"`
	PortFile       string        `yaml:"port_file"`
	Heartbeat      HeartbeatConf `yaml:"heartbeat"`
	Log            LogConfig     `yaml:"log"`

	// SharedSecret is only ever read from the environment.
	SharedSecret string `yaml:"-"`
}

type HeartbeatConf struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

func Default() *Config {
	return &Config{
		Host:           "127.0.0.1",
		PreferredPort:  17480,
		PortProbeLimit: 50,
		PortFile:       defaultPortFile(),
		Heartbeat: HeartbeatConf{
			Interval: 5 * time.Second,
			Timeout:  30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultPortFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "radio-bridge", "port.json")
}

// LoadEnvFiles loads key=value files into the process environment. Missing
// files are skipped. Variables that are already set are never overridden,
// so across files the first definition wins.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the config from defaults, then the YAML file at path (if
// path is non-empty), then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.SharedSecret = os.Getenv(EnvSecret)

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.PreferredPort = port
	}
	if v := os.Getenv(EnvPortFile); v != "" {
		c.PortFile = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) Validate() error {
	if !isLoopback(c.Host) {
		return fmt.Errorf("%w: %q", ErrNonLoopbackHost, c.Host)
	}
	if c.PreferredPort <= 0 || c.PreferredPort > 65535 {
		return fmt.Errorf("preferred_port out of range: %d", c.PreferredPort)
	}
	if c.PortProbeLimit <= 0 {
		return fmt.Errorf("port_probe_limit must be positive: %d", c.PortProbeLimit)
	}
	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat.interval must be positive: %s", c.Heartbeat.Interval)
	}
	if c.Heartbeat.Timeout <= c.Heartbeat.Interval {
		return fmt.Errorf("heartbeat.timeout (%s) must exceed heartbeat.interval (%s)", c.Heartbeat.Timeout, c.Heartbeat.Interval)
	}
	if c.PortFile == "" {
		return errors.New("port_file must be set")
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

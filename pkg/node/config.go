package node

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stella/l2switch/pkg/capture"
	"github.com/stella/l2switch/pkg/transport"
)

// SwitchSection configures the switch itself
type SwitchSection struct {
	// Name labels logs and metrics
	Name string `mapstructure:"name" yaml:"name"`

	// ConfigFile is the path to the line-oriented switch configuration
	ConfigFile string `mapstructure:"config_file" yaml:"config_file"`

	// HelloInterval is the BPDU heartbeat period while root
	HelloInterval time.Duration `mapstructure:"hello_interval" yaml:"hello_interval"`

	// StatusInterval is the period of the debug status dump, 0 disables it
	StatusInterval time.Duration `mapstructure:"status_interval" yaml:"status_interval"`
}

// TransportSection selects and configures the frame transport
type TransportSection struct {
	Type    string                 `mapstructure:"type" yaml:"type"`
	Options map[string]interface{} `mapstructure:"options" yaml:"options"`
}

// MetricsSection configures the Prometheus endpoint
type MetricsSection struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Config represents the runtime configuration for a Stella node
type Config struct {
	Switch    SwitchSection    `mapstructure:"switch" yaml:"switch"`
	Transport TransportSection `mapstructure:"transport" yaml:"transport"`
	Log       LogConfig        `mapstructure:"log" yaml:"log"`
	Metrics   MetricsSection   `mapstructure:"metrics" yaml:"metrics"`
	Capture   capture.Config   `mapstructure:"capture" yaml:"capture"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("switch.name", "stella")
	v.SetDefault("switch.config_file", "switch.conf")
	v.SetDefault("switch.hello_interval", time.Second)
	v.SetDefault("switch.status_interval", 30*time.Second)

	v.SetDefault("transport.type", string(transport.TransportTypeRaw))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age_days", 7)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9100")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("capture.enabled", false)
	v.SetDefault("capture.path", "stella.pcap")
	v.SetDefault("capture.snaplen", capture.DefaultSnapLen)
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults alone always decode
	_ = v.Unmarshal(cfg)
	return cfg
}

// LoadConfig loads configuration from the specified YAML file. An empty path
// yields the defaults, still overridable through STELLA_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STELLA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if path != "" {
		v.SetConfigFile(path)
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if ext == "" {
			ext = "yaml"
		}
		v.SetConfigType(ext)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Switch.Name == "" {
		return errors.New("switch.name cannot be empty")
	}
	if c.Switch.ConfigFile == "" {
		return errors.New("switch.config_file cannot be empty")
	}
	if c.Switch.HelloInterval <= 0 {
		return fmt.Errorf("switch.hello_interval must be positive, got %s", c.Switch.HelloInterval)
	}
	if c.Switch.StatusInterval < 0 {
		return fmt.Errorf("switch.status_interval cannot be negative")
	}

	switch transport.TransportType(c.Transport.Type) {
	case transport.TransportTypeMemory, transport.TransportTypeUDP, transport.TransportTypeRaw:
	default:
		return fmt.Errorf("unsupported transport.type %q", c.Transport.Type)
	}

	if _, err := logLevelFromString(c.Log.Level); err != nil {
		return err
	}
	if c.Log.File.Enabled && c.Log.File.Path == "" {
		return errors.New("log.file.path is required when file output is enabled")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("metrics.listen is required when metrics are enabled")
	}
	if c.Capture.Enabled && c.Capture.Path == "" {
		return errors.New("capture.path is required when capture is enabled")
	}
	return nil
}

// DumpYAML renders the effective configuration
func (c *Config) DumpYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

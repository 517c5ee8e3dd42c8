package utils

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker         string        `yaml:"broker"`          // Broker address as host:port
		ClientPrefix   string        `yaml:"client_prefix"`   // Prefix for generated MQTT client IDs
		ConnectTimeout time.Duration `yaml:"connect_timeout"` // Per-agent connect timeout
	} `yaml:"mqtt"`

	Simulation struct {
		RootTopic string `yaml:"root_topic"` // Root of the fleet's topic namespace
		Seed      int64  `yaml:"seed"`       // Random seed; 0 uses the current time
	} `yaml:"simulation"`

	Fleet struct {
		Sensors   map[string][]string `yaml:"sensors"`   // Room names per sensor type
		Actuators map[string][]string `yaml:"actuators"` // Room names per actuator type
	} `yaml:"fleet"`
}

// LoadConfig loads the YAML configuration from the specified file and fills in
// defaults for omitted connection settings.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if config.MQTT.Broker == "" {
		config.MQTT.Broker = "localhost:1883"
	}
	if config.MQTT.ClientPrefix == "" {
		config.MQTT.ClientPrefix = "simulator"
	}
	if config.MQTT.ConnectTimeout == 0 {
		config.MQTT.ConnectTimeout = 10 * time.Second
	}
	if config.Simulation.RootTopic == "" {
		config.Simulation.RootTopic = "home"
	}

	return &config, nil
}

// Package nodecfg loads the shared configuration of the softcan command
// line tools from a YAML file, with environment variable overrides.
package nodecfg

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of the softcan tools.
type Config struct {
	Node   NodeConfig   `yaml:"node"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Server ServerConfig `yaml:"server"`
}

// NodeConfig selects the GPIO pins and bit rate of the soft node.
type NodeConfig struct {
	RXPin   int `yaml:"rx_pin"`
	TXPin   int `yaml:"tx_pin"`
	Bitrate int `yaml:"bitrate"`
	// PollIntervalUs is the pump poll interval in microseconds. It must
	// not exceed the bit time; zero means half a bit time.
	PollIntervalUs int `yaml:"poll_interval_us"`
}

// MQTTConfig configures the canmqttd bridge.
type MQTTConfig struct {
	BrokerURL   string `yaml:"broker_url"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

// ServerConfig configures the canwsd bridge.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a config with sensible defaults: a 125 kbit/s node on
// pins 17/27 and local bridge endpoints.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			RXPin:   17,
			TXPin:   27,
			Bitrate: 125_000,
		},
		MQTT: MQTTConfig{
			BrokerURL:   "tcp://127.0.0.1:1883",
			TopicPrefix: "softcan",
			ClientID:    "softcan-bridge",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// Load reads the YAML file at path and applies environment overrides.
// A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("nodecfg: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("nodecfg: read %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config values from the environment. Supported:
// CAN_RX_PIN, CAN_TX_PIN, CAN_BITRATE, MQTT_BROKER_URL, MQTT_TOPIC_PREFIX,
// MQTT_CLIENT_ID, LISTEN_ADDR.
func (c *Config) applyEnv() {
	if v := os.Getenv("CAN_RX_PIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Node.RXPin = n
		}
	}
	if v := os.Getenv("CAN_TX_PIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Node.TXPin = n
		}
	}
	if v := os.Getenv("CAN_BITRATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Node.Bitrate = n
		}
	}
	if v := os.Getenv("MQTT_BROKER_URL"); v != "" {
		c.MQTT.BrokerURL = v
	}
	if v := os.Getenv("MQTT_TOPIC_PREFIX"); v != "" {
		c.MQTT.TopicPrefix = v
	}
	if v := os.Getenv("MQTT_CLIENT_ID"); v != "" {
		c.MQTT.ClientID = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
}

// Validate rejects configurations the node cannot run with.
func (c *Config) Validate() error {
	if c.Node.Bitrate <= 0 || c.Node.Bitrate > 1_000_000 {
		return fmt.Errorf("nodecfg: invalid bitrate %d", c.Node.Bitrate)
	}
	if c.Node.RXPin == c.Node.TXPin {
		return fmt.Errorf("nodecfg: rx and tx pin must differ (both %d)", c.Node.RXPin)
	}
	if c.Node.PollIntervalUs < 0 {
		return fmt.Errorf("nodecfg: invalid poll interval %d", c.Node.PollIntervalUs)
	}
	return nil
}

// PollIntervalUs returns the configured pump poll interval, defaulting to
// half a bit time.
func (c *Config) PollIntervalUs() int {
	if c.Node.PollIntervalUs > 0 {
		return c.Node.PollIntervalUs
	}
	half := 500_000 / c.Node.Bitrate
	if half < 1 {
		half = 1
	}
	return half
}

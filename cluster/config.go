package cluster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// InvalidClusterConfigError is spec §7's InvalidClusterConfigError.
type InvalidClusterConfigError struct {
	Reason string
}

func (e *InvalidClusterConfigError) Error() string {
	return fmt.Sprintf("cluster: invalid config: %s", e.Reason)
}

// Config is the cluster's configuration struct (spec §6, "config struct,
// not CLI").
type Config struct {
	NodeName               string   `json:"nodeName"`
	Host                   string   `json:"host,omitempty"`
	Port                   int      `json:"port,omitempty"`
	Seeds                  []string `json:"seeds,omitempty"`
	ClusterSecret          string   `json:"clusterSecret,omitempty"`
	HeartbeatIntervalMs    int      `json:"heartbeatIntervalMs,omitempty"`
	HeartbeatMissThreshold int      `json:"heartbeatMissThreshold,omitempty"`
	ReconnectBaseDelayMs   int      `json:"reconnectBaseDelayMs,omitempty"`
	ReconnectMaxDelayMs    int      `json:"reconnectMaxDelayMs,omitempty"`
	MaxFrameSize           int      `json:"maxFrameSize,omitempty"`
}

// ParseConfig decodes data into a Config, rejecting unknown keys (spec
// §6: "Unknown keys are rejected"), then normalizes and validates it.
func ParseConfig(data []byte) (Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, &InvalidClusterConfigError{Reason: err.Error()}
	}

	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) normalized() Config {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 4369
	}
	if c.HeartbeatIntervalMs <= 0 {
		c.HeartbeatIntervalMs = 5000
	}
	if c.HeartbeatMissThreshold <= 0 {
		c.HeartbeatMissThreshold = 3
	}
	if c.ReconnectBaseDelayMs <= 0 {
		c.ReconnectBaseDelayMs = 1000
	}
	if c.ReconnectMaxDelayMs <= 0 {
		c.ReconnectMaxDelayMs = 30000
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = 1 << 20
	}
	return c
}

// Normalized returns a copy of c with every zero-valued optional field
// replaced by its spec §6 default.
func (c Config) Normalized() Config { return c.normalized() }

// NodeID returns this config's `name@host:port` identity.
func (c Config) NodeID() string {
	return fmt.Sprintf("%s@%s:%d", c.NodeName, c.Host, c.Port)
}

// Validate checks the normalized config for spec §6 compliance.
func (c Config) Validate() error {
	if c.NodeName == "" {
		return &InvalidClusterConfigError{Reason: "nodeName is required"}
	}
	if err := ValidateNodeID(c.NodeID()); err != nil {
		return &InvalidClusterConfigError{Reason: err.Error()}
	}
	for _, seed := range c.Seeds {
		if err := ValidateNodeID(seed); err != nil {
			return &InvalidClusterConfigError{Reason: fmt.Sprintf("seed %q: %v", seed, err)}
		}
	}
	return nil
}

func (c Config) heartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

func (c Config) reconnectBase() time.Duration {
	return time.Duration(c.ReconnectBaseDelayMs) * time.Millisecond
}

func (c Config) reconnectMax() time.Duration {
	return time.Duration(c.ReconnectMaxDelayMs) * time.Millisecond
}

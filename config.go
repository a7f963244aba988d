package xcubus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML on-disk form of the bus and relay
// construction parameters. An empty channel string selects the
// default bus.
type FileConfig struct {
	Channel            string `yaml:"channel"`
	Addr               string `yaml:"addr"`
	ListenAddr         string `yaml:"listen_addr"`
	RxQueueSize        int    `yaml:"rx_queue_size"`
	ReceiveOwnMessages bool   `yaml:"receive_own_messages"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("xcubus: read config: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("xcubus: parse config %q: %w", path, err)
	}
	if fc.RxQueueSize < 0 {
		return FileConfig{}, fmt.Errorf("xcubus: config %q: rx_queue_size must be >= 0", path)
	}
	return fc, nil
}

// BusConfig maps the file form onto bus construction parameters.
func (fc FileConfig) BusConfig() Config {
	cfg := Config{
		ReceiveOwnMessages: fc.ReceiveOwnMessages,
		RxQueueSize:        fc.RxQueueSize,
		Addr:               fc.Addr,
	}
	if fc.Channel != "" {
		cfg.Channel = fc.Channel
	}
	return cfg
}

// RelayConfig maps the file form onto relay construction parameters.
func (fc FileConfig) RelayConfig() RelayConfig {
	cfg := RelayConfig{ListenAddr: fc.ListenAddr}
	if fc.Channel != "" {
		cfg.Channel = fc.Channel
	}
	return cfg
}

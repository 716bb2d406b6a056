package state

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Duration is a time.Duration that is written as "300ms" in config files
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// LocalCfg represents local node-level configuration
type LocalCfg struct {
	LogDir         string   `yaml:"log_dir,omitempty"`         // directory the route journal is written to
	LogPath        string   `yaml:"log_path,omitempty"`        // if not empty, diagnostic logs are also written to this file
	UpdateInterval Duration `yaml:"update_interval,omitempty"` // period between two vector broadcasts
	RecvTimeout    Duration `yaml:"recv_timeout,omitempty"`    // longest wait for an inbound vector per period
	DialTimeout    Duration `yaml:"dial_timeout,omitempty"`
	SilenceTTL     Duration `yaml:"silence_ttl,omitempty"` // a neighbour not heard from for this long is reported silent
	DebugAddr      string   `yaml:"debug_addr,omitempty"`  // if not empty, expvar and metrics are served here
}

func DefaultLocalCfg() LocalCfg {
	return LocalCfg{
		LogDir:         LogDir,
		UpdateInterval: Duration(UpdateDelay),
		RecvTimeout:    Duration(RecvTimeout),
		DialTimeout:    Duration(DialTimeout),
		SilenceTTL:     Duration(SilenceTTL),
	}
}

// ReadLocalConfig reads a node config file, leaving defaults in place for missing fields.
func ReadLocalConfig(path string) (*LocalCfg, error) {
	cfg := DefaultLocalCfg()
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

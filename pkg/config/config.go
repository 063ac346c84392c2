// Package config loads the pkgrun daemon's configuration: a YAML file
// overlaid by cobra persistent flags, the same two-layer model
// cmd/warren/apply.go uses for resource manifests (gopkg.in/yaml.v3 struct
// tags) and cmd/warren/main.go uses for its global flags.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/pkgrun/pkg/log"
	"github.com/cuemby/pkgrun/pkg/types"
	"github.com/cuemby/pkgrun/pkg/volume"
)

// Config is every knob the driver and its front-end need that isn't
// per-call: where package data and scripts live, how long a call may run
// before it's timed out, the Container RPC socket convention, and the
// ambient logging setup.
type Config struct {
	DataDir       string        `yaml:"dataDir"`
	ListenAddr    string        `yaml:"listenAddr"`
	CallTimeout   time.Duration `yaml:"callTimeout"`
	RPCSocketGlob string        `yaml:"rpcSocketGlob"` // e.g. "%s/ctl.sock", %s = container id
	LogLevel      log.Level     `yaml:"logLevel"`
	LogJSON       bool          `yaml:"logJSON"`
	TLSCertFile   string        `yaml:"tlsCertFile"`
	TLSKeyFile    string        `yaml:"tlsKeyFile"`
	TLSCAFile     string        `yaml:"tlsCAFile"`
	MetricsListen string        `yaml:"metricsListen"`
	Volumes       []VolumeSpec  `yaml:"volumes"`
}

// VolumeSpec is one volume declaration as it appears in the config file;
// VolumeMap turns a slice of these into the volume.Map the driver consults.
type VolumeSpec struct {
	ID       string `yaml:"id"`
	Subpath  string `yaml:"subpath"`
	Absolute string `yaml:"absolute"`
	ReadOnly bool   `yaml:"readOnly"`
}

// VolumeMap builds the volume.Map this config declares.
func (c Config) VolumeMap() *volume.Map {
	entries := make(map[types.VolumeId]volume.Entry, len(c.Volumes))
	for _, v := range c.Volumes {
		entries[types.VolumeId(v.ID)] = volume.Entry{Subpath: v.Subpath, Absolute: v.Absolute, ReadOnly: v.ReadOnly}
	}
	return volume.NewMap(entries)
}

// Default returns the configuration a standalone `pkgrun run` invocation
// uses when no file is given.
func Default() Config {
	return Config{
		DataDir:       "/var/lib/pkgrun",
		ListenAddr:    "127.0.0.1:7262",
		CallTimeout:   30 * time.Second,
		RPCSocketGlob: "%s/ctl.sock",
		LogLevel:      log.InfoLevel,
		MetricsListen: "127.0.0.1:9262",
	}
}

// Load reads path as YAML over top of Default(). A missing path is not an
// error: the caller gets defaults, matching a CLI that works with zero
// configuration and only needs a file for the daemon/cluster-facing paths.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first configuration error a caller should surface
// before starting the driver.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("dataDir must be set")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("callTimeout must be positive")
	}
	return nil
}

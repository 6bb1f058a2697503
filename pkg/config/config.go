// Package config loads the one piece of on-disk configuration a
// custody engine ships: a data-directory override, the default memory
// backend, procedure-registry feature toggles, and logging settings.
// Everything else (router.Options, transport wiring) stays a plain struct built
// up in code, following the teacher's Manager.Config/Worker.Config
// convention of no external config framework.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options is the on-disk shape of warden.yaml.
type Options struct {
	// DataDir overrides the data directory. Load leaves it empty when
	// warden.yaml omits it; wardenctl then uses "./warden-data".
	DataDir string `yaml:"data_dir"`

	// Backend selects the MemoryBackend every spawned actor uses by
	// default: "buffer" (mlocked, the default), "file", or
	// "noncontiguous".
	Backend string `yaml:"backend"`

	// Procedures lists which registered procedure kinds are enabled.
	// An empty list enables everything the binary registers; this is
	// a deny-by-omission toggle, not a registration mechanism.
	Procedures []string `yaml:"procedures"`

	// Logging controls the process-wide logger.
	Logging LoggingOptions `yaml:"logging"`
}

// LoggingOptions configures pkg/log.Init.
type LoggingOptions struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the zero-config Options: mlocked buffers, info-level
// console logging, every registered procedure enabled.
func Default() *Options {
	return &Options{
		Backend: "buffer",
		Logging: LoggingOptions{Level: "info"},
	}
}

// Load reads and parses a warden.yaml-shaped file at path. A missing
// file is not an error: Load returns Default() unchanged, since every
// field has a sensible zero-config value.
func Load(path string) (*Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if opts.Backend == "" {
		opts.Backend = "buffer"
	}
	if opts.Logging.Level == "" {
		opts.Logging.Level = "info"
	}
	return opts, nil
}

// ProcedureEnabled reports whether kind should be registered, given
// this configuration's Procedures allow-list. An empty list allows
// everything.
func (o *Options) ProcedureEnabled(kind string) bool {
	if len(o.Procedures) == 0 {
		return true
	}
	for _, k := range o.Procedures {
		if k == kind {
			return true
		}
	}
	return false
}

// Package config loads the YAML-driven vmInit parameters for cmd/vmpagerd,
// the ambient configuration layer spec.md itself is silent on (spec.md's
// core takes its arguments directly from the VM_INIT syscall).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the boot-time configuration for one vmpagerd run.
type Config struct {
	Mappings int `yaml:"mappings"`
	Pages    int `yaml:"pages"`
	Frames   int `yaml:"frames"`
	Pagers   int `yaml:"pagers"`

	PageSize   int `yaml:"pageSize"`
	SectorSize int `yaml:"sectorSize"`
	TrackSize  int `yaml:"trackSize"` // sectors per track
	DiskTracks int `yaml:"diskTracks"`

	MaxProc int `yaml:"maxProc"`
}

// Default returns the configuration scenario S1/S2/S3 of spec.md §8 are
// sized for by default: small enough to force eviction quickly.
func Default() Config {
	return Config{
		Mappings:   4,
		Pages:      4,
		Frames:     2,
		Pagers:     2,
		PageSize:   4096,
		SectorSize: 512,
		TrackSize:  16,
		DiskTracks: 64,
		MaxProc:    64,
	}
}

// Load reads and validates a YAML config file. Fields the file omits keep
// their Default() value; a field the file sets explicitly, even to zero,
// keeps the file's value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration is self-consistent before it reaches
// vmInit, which only checks the mappings/pages/frames/pagers quartet.
func (c Config) Validate() error {
	if c.Mappings != c.Pages {
		return fmt.Errorf("config: mappings (%d) must equal pages (%d)", c.Mappings, c.Pages)
	}
	if c.Frames <= 0 || c.Pagers <= 0 {
		return fmt.Errorf("config: frames and pagers must be positive")
	}
	if c.PageSize <= 0 || c.PageSize%c.SectorSize != 0 {
		return fmt.Errorf("config: pageSize (%d) must be a positive multiple of sectorSize (%d)", c.PageSize, c.SectorSize)
	}
	if c.MaxProc <= 0 {
		return fmt.Errorf("config: maxProc must be positive")
	}
	return nil
}

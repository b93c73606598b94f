// Package config loads an optional YAML preset for the cmd/hermit CLI: the
// execution limits, seed environment, and a VFS seed directory to mount as
// the interpreter's root filesystem. This is ambient CLI configuration, not
// part of the language cores themselves (SPEC_FULL.md §4).
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"mvdan.cc/sh/v3/expand"

	"github.com/hermit-sh/hermit"
	hfs "github.com/hermit-sh/hermit/fs"
	"github.com/hermit-sh/hermit/limits"
)

// Preset is the shape of a hermit config YAML file:
//
//	limits:
//	  maxIterations: 50000
//	  maxRecursion: 200
//	  maxOutputSize: 1048576
//	env:
//	  FOO: bar
//	seedDir: ./fixtures/root
type Preset struct {
	Limits  *limitsPreset     `yaml:"limits"`
	Env     map[string]string `yaml:"env"`
	SeedDir string            `yaml:"seedDir"`
}

type limitsPreset struct {
	MaxIterations int `yaml:"maxIterations"`
	MaxRecursion  int `yaml:"maxRecursion"`
	MaxOutputSize int `yaml:"maxOutputSize"`
}

// Load reads and parses the YAML preset at path. An empty path is not an
// error: it yields a zero Preset contributing no options.
func Load(path string) (*Preset, error) {
	if path == "" {
		return &Preset{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RunnerOptions turns the preset into the [hermit.Option] values NewRunner
// needs: overridden limits, a seeded environment, and a mounted seed
// directory, in that order.
func (p *Preset) RunnerOptions() ([]hermit.Option, error) {
	var opts []hermit.Option
	if p == nil {
		return opts, nil
	}

	if p.Limits != nil {
		opts = append(opts, hermit.WithLimits(limits.Limits{
			MaxIterations: p.Limits.MaxIterations,
			MaxRecursion:  p.Limits.MaxRecursion,
			MaxOutputSize: p.Limits.MaxOutputSize,
		}))
	}

	if p.Env != nil {
		var pairs []string
		for k, v := range p.Env {
			pairs = append(pairs, k+"="+v)
		}
		opts = append(opts, hermit.WithEnv(expand.ListEnviron(pairs...)))
	}

	if p.SeedDir != "" {
		dirFS := os.DirFS(p.SeedDir)
		vfs := hfs.SnapshotFS(dirFS)
		opts = append(opts, hermit.WithFileSystem(vfs))
	}

	return opts, nil
}

package session

import (
	"os"

	yaml "gopkg.in/yaml.v3"

	"compendium/internal/errs"
)

// ProjectConfig is the on-disk descriptor activate_project reads to learn a
// project's identity, working tree root, and the subset of it compendium
// should index.
type ProjectConfig struct {
	Project        string   `yaml:"project"`
	RootPath       string   `yaml:"root_path"`
	MonitoredPaths []string `yaml:"monitored_paths"`
}

func loadProjectConfig(path string) (ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProjectConfig{}, errs.Wrap(errs.KindInvalidArgument, "read project config", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ProjectConfig{}, errs.Wrap(errs.KindInvalidArgument, "parse project config", err)
	}
	if cfg.Project == "" {
		return ProjectConfig{}, errs.New(errs.KindInvalidArgument, "project config must set project")
	}
	if cfg.RootPath == "" {
		return ProjectConfig{}, errs.New(errs.KindInvalidArgument, "project config must set root_path")
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/animavtuber/core/internal/errs"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither a CLI argument nor ANIMA_CONFIG is set.
const DefaultPath = "config/config.yaml"

// ResolvePath implements the precedence in spec §6: CLI argument beats
// ANIMA_CONFIG beats the default path.
func ResolvePath(cliArg string) string {
	if cliArg != "" {
		return cliArg
	}
	if env := os.Getenv("ANIMA_CONFIG"); env != "" {
		return env
	}
	return DefaultPath
}

type mainDoc struct {
	Persona  string       `yaml:"persona"`
	Services ServiceNames `yaml:"services"`
	System   SystemConfig `yaml:"system"`
}

// Load reads the main config at path, grafts each named service fragment
// under its category key, interpolates environment variables, and applies
// hard environment overrides. Any failure is fatal and returned as a
// *errs.ConfigError.
func Load(path string) (*AppConfig, error) {
	mainBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ConfigError{Path: path, Err: fmt.Errorf("read main config: %w", err)}
	}

	var doc mainDoc
	if err := yaml.Unmarshal(mainBytes, &doc); err != nil {
		return nil, &errs.ConfigError{Path: path, Err: fmt.Errorf("parse main config: %w", err)}
	}

	base := filepath.Dir(path)
	cfg := &AppConfig{
		Persona:   doc.Persona,
		Services:  doc.Services,
		System:    doc.System,
		Fragments: make(map[string]*Fragment),
	}

	categories := map[string]string{
		"asr":   doc.Services.ASR,
		"tts":   doc.Services.TTS,
		"agent": doc.Services.Agent,
		"vad":   doc.Services.VAD,
	}
	for category, name := range categories {
		if name == "" {
			continue
		}
		fragPath := filepath.Join(base, "services", category, name+".yaml")
		frag, err := loadFragment(fragPath)
		if err != nil {
			return nil, &errs.ConfigError{Path: fragPath, Err: err}
		}
		cfg.Fragments[category] = interpolateFragment(frag)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadFragment(path string) (*Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fragment: %w", err)
	}
	var frag Fragment
	if err := yaml.Unmarshal(data, &frag); err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	return &frag, nil
}

// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, first match
// wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/roadguard/config.yaml",
	"/etc/roadguard/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix is the prefix for configuration environment variables:
// ROADGUARD_ARBITER_BLEND_WEIGHT maps to arbiter.blend_weight.
const EnvPrefix = "ROADGUARD_"

// Load builds the configuration from layered sources, lowest to highest
// precedence: struct defaults, an optional YAML file, environment
// variables. The result is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps ROADGUARD_SECTION_SOME_KEY to section.some_key. The
// first underscore separates the section; the rest stays a flat key, which
// matches how every section names its fields. Nested sections use a double
// underscore: ROADGUARD_CLASSIFIER__GUARD_LATENCY_BUDGET maps to
// classifier.guard.latency_budget.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

	if section, rest, found := strings.Cut(key, "__"); found {
		sub, field, ok := strings.Cut(rest, "_")
		if !ok {
			return section + "." + rest
		}
		return section + "." + sub + "." + field
	}
	section, field, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + field
}

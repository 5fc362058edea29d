// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order of
// priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/openpair/config.yaml",
	"/etc/openpair/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "OPENPAIR_CONFIG"

// envPrefix namespaces the environment variables read by the loader.
// OPENPAIR_SERVER_PORT -> server.port, OPENPAIR_FAIRNESS_PERIOD_DAYS ->
// fairness.period_days, and so on.
const envPrefix = "OPENPAIR_"

// Default returns a Config with all documented default values. The
// fairness magnitudes are the calibrated production values; see the
// FairnessConfig field docs for their semantics.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       120,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Dir:      "/data/openpair",
			InMemory: false,
			ModelDir: "/data/openpair/models",
		},
		Recommend: RecommendConfig{
			TopN:                3,
			ColdStartThreshold:  3,
			MaxCandidates:       500,
			RecencyHalfLifeDays: 14,
		},
		Fairness: FairnessConfig{
			Junior:                 TierQuota{Min: 2, Max: 8},
			Mid:                    TierQuota{Min: 3, Max: 12},
			Senior:                 TierQuota{Min: 4, Max: 16},
			PeriodDays:             30,
			DeficitBonusPerSlot:    0.15,
			DeficitBonusCap:        0.30,
			OverloadPenaltyPerSlot: 0.10,
			OverloadPenaltyCap:     0.30,
			RecencyBonusPerDay:     0.01,
			RecencyGraceDays:       14,
			RecencyBonusCap:        0.20,
			NeverHostedBonus:       0.20,
			MaxPerTier:             2,
			DiversityTolerance:     0.10,
		},
		Training: TrainingConfig{
			Interval:        24 * time.Hour,
			Timeout:         5 * time.Minute,
			MinRecords:      20,
			HoldoutFraction: 0.2,
			ErrorTolerance:  0.01,
			Ridge:           1.0,
			TrainOnStartup:  false,
		},
	}
}

// Load builds the configuration from three layers in increasing priority:
//
//  1. Defaults: built-in documented defaults
//  2. Config file: optional YAML file (first found in DefaultConfigPaths,
//     or the path named by OPENPAIR_CONFIG)
//  3. Environment variables: OPENPAIR_-prefixed overrides
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
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

// findConfigFile returns the first existing config file path, or "".
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

// envTransform maps OPENPAIR_SECTION_SOME_KEY to section.some_key.
// Only the first underscore separates the section from the key, so
// multi-word keys keep their underscores.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied through environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values into slices
// for known slice fields. Env vars arrive as plain strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

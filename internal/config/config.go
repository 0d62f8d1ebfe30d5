// Package config loads the staging engine's runtime configuration from a
// YAML file, applies defaults, lets environment variables override either,
// and validates the result before the Orchestrator is constructed.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Config is the explicit, immutable-after-load configuration record
// threaded through the Orchestrator and every Worker it dispatches, per
// the Design Notes' "no runtime globals" guidance.
type Config struct {
	RawRoot         string `yaml:"raw_root"`
	StageRoot       string `yaml:"stage_root"`
	ProceduresYAML  string `yaml:"procedures_yaml"`
	Workers         int    `yaml:"workers"`
	Force           bool   `yaml:"force"`
	OnlyYAMLData    bool   `yaml:"only_yaml_data"`
	LocalTZ         string `yaml:"local_tz"`
	ManifestName    string `yaml:"manifest_name"`
	TableExt        string `yaml:"table_ext"`
	LogLevel        string `yaml:"log_level"`
	LogFormat       string `yaml:"log_format"`
	MetricsAddr     string `yaml:"metrics_addr"`
}

// Load reads configFile (if non-empty) and merges in defaults and
// environment overrides, validating the result. A missing configFile is
// not fatal — the engine can run on defaults and environment variables
// alone, the same tolerant shape the ambient config loader uses.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	if configFile != "" {
		if err := loadFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.RawRoot == "" {
		cfg.RawRoot = "data/01_raw"
	}
	if cfg.StageRoot == "" {
		cfg.StageRoot = "data/02_stage/raw_measurements"
	}
	if cfg.ProceduresYAML == "" {
		cfg.ProceduresYAML = "config/procedures.yml"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.LocalTZ == "" {
		cfg.LocalTZ = "America/Santiago"
	}
	if cfg.ManifestName == "" {
		cfg.ManifestName = "manifest"
	}
	if cfg.TableExt == "" {
		cfg.TableExt = "csv"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPTOSTAGE_RAW_ROOT"); v != "" {
		cfg.RawRoot = v
	}
	if v := os.Getenv("OPTOSTAGE_STAGE_ROOT"); v != "" {
		cfg.StageRoot = v
	}
	if v := os.Getenv("OPTOSTAGE_PROCEDURES_YAML"); v != "" {
		cfg.ProceduresYAML = v
	}
	if v := os.Getenv("OPTOSTAGE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("OPTOSTAGE_FORCE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Force = b
		}
	}
	if v := os.Getenv("OPTOSTAGE_ONLY_YAML_DATA"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.OnlyYAMLData = b
		}
	}
	if v := os.Getenv("OPTOSTAGE_LOCAL_TZ"); v != "" {
		cfg.LocalTZ = v
	}
	if v := os.Getenv("OPTOSTAGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OPTOSTAGE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("OPTOSTAGE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}

// Validate rejects configurations the Orchestrator could not run with.
// An unreachable raw_root is startup-fatal and is checked here; the schema
// document is loaded, and a SchemaLoadFailure raised, in orchestrator.Run.
func Validate(cfg *Config) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.RawRoot == "" {
		return fmt.Errorf("raw_root must not be empty")
	}
	if cfg.StageRoot == "" {
		return fmt.Errorf("stage_root must not be empty")
	}
	if cfg.ProceduresYAML == "" {
		return fmt.Errorf("procedures_yaml must not be empty")
	}
	if _, err := os.Stat(cfg.RawRoot); err != nil {
		return fmt.Errorf("raw_root %s is not reachable: %w", cfg.RawRoot, err)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Env           string `mapstructure:"ENV"`
	DataDir       string `mapstructure:"MEDLOG_DATA_DIR"`
	LegacyDataDir string `mapstructure:"MEDLOG_LEGACY_DATA_DIR"`
	ExportDir     string `mapstructure:"MEDLOG_EXPORT_DIR"`
	Template      string `mapstructure:"MEDLOG_TEMPLATE"`
	Converter     string `mapstructure:"MEDLOG_CONVERTER"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("MEDLOG_DATA_DIR", filepath.Join(home, "MedicationLogger", "data"))
	v.SetDefault("MEDLOG_LEGACY_DATA_DIR", filepath.Join(home, "MedicationLogger", "patients"))
	v.SetDefault("MEDLOG_EXPORT_DIR", filepath.Join(home, "MedicationLogger", "exports"))
	v.SetDefault("MEDLOG_TEMPLATE", filepath.Join(home, "MedicationLogger", "medication_log_template.docx"))
	v.SetDefault("MEDLOG_CONVERTER", "soffice")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("ENV")
	v.BindEnv("MEDLOG_DATA_DIR")
	v.BindEnv("MEDLOG_LEGACY_DATA_DIR")
	v.BindEnv("MEDLOG_EXPORT_DIR")
	v.BindEnv("MEDLOG_TEMPLATE")
	v.BindEnv("MEDLOG_CONVERTER")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configured paths are usable. The data and export
// directories are created on demand elsewhere, so only outright-invalid
// values are rejected here.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("MEDLOG_DATA_DIR must not be empty")
	}
	if c.ExportDir == "" {
		return fmt.Errorf("MEDLOG_EXPORT_DIR must not be empty")
	}
	if c.Template == "" {
		return fmt.Errorf("MEDLOG_TEMPLATE must not be empty")
	}
	if c.LegacyDataDir != "" {
		if info, err := os.Stat(c.LegacyDataDir); err == nil && !info.IsDir() {
			return fmt.Errorf("MEDLOG_LEGACY_DATA_DIR %q is not a directory", c.LegacyDataDir)
		}
	}
	return nil
}

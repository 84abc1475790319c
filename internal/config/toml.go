// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Input   InputConfig   `toml:"input"`
	Trend   TrendConfig   `toml:"trend"`
	Output  OutputConfig  `toml:"output"`
	History HistoryConfig `toml:"history"`
	Log     LogConfig     `toml:"log"`
	Fetch   FetchConfig   `toml:"fetch"`
}

// InputConfig maps snapshot directory settings.
type InputConfig struct {
	Dir         *string `toml:"dir"`
	DatePattern *string `toml:"date-pattern"`
	DateLayout  *string `toml:"date-layout"`
	Namespace   *string `toml:"namespace"`
}

// TrendConfig maps extraction and extrapolation settings.
type TrendConfig struct {
	Field      *string `toml:"field"`
	Ranks      []int   `toml:"ranks"`
	StepMonths *int    `toml:"step-months"`
	Steps      *int    `toml:"steps"`
}

// OutputConfig maps chart output settings.
type OutputConfig struct {
	Dir        *string  `toml:"dir"`
	NameLayout *string  `toml:"name-layout"`
	DPI        *int     `toml:"dpi"`
	Width      *float64 `toml:"width"`
	Height     *float64 `toml:"height"`
	Open       *bool    `toml:"open"`
	XLSX       *string  `toml:"xlsx"`
}

// HistoryConfig maps run history settings.
type HistoryConfig struct {
	Enabled *bool `toml:"enabled"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// FetchConfig maps snapshot download settings.
type FetchConfig struct {
	URLTemplate *string `toml:"url-template"`
	Months      []int   `toml:"months"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/scan-io-git/blockscan/pkg/shared/files"
)

// DefaultConfigFile is loaded from the working directory when no config path
// is given and the file exists.
const DefaultConfigFile = ".blockscan.yml"

// Config is the YAML configuration of blockscan. Command line flags override it.
type Config struct {
	Logger   Logger   `yaml:"logger"`
	Analysis Analysis `yaml:"analysis"`
	Output   Output   `yaml:"output"`
	Cache    Cache    `yaml:"cache"`
	Watch    Watch    `yaml:"watch"`
}

type Logger struct {
	Level           string `yaml:"level"`
	DisableTime     *bool  `yaml:"disable_time"`
	JSONFormat      *bool  `yaml:"json_format"`
	IncludeLocation *bool  `yaml:"include_location"`
}

type Analysis struct {
	Select      []string `yaml:"select"`
	Disable     []string `yaml:"disable"`
	Exclude     []string `yaml:"exclude"`
	Jobs        int      `yaml:"jobs"`
	MaxFileSize int64    `yaml:"max_file_size"`
	NewFromRev  string   `yaml:"new_from_rev"`
}

type Output struct {
	Format   string `yaml:"format"`
	Summary  bool   `yaml:"summary"`
	ExitZero bool   `yaml:"exit_zero"`
	File     string `yaml:"file"`
}

type Cache struct {
	Path string `yaml:"path"`
}

type Watch struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Logger: Logger{Level: "INFO"},
		Analysis: Analysis{
			Jobs:        1,
			MaxFileSize: 10 * 1024 * 1024,
		},
		Output: Output{Format: "text"},
		Watch:  Watch{Debounce: 300 * time.Millisecond},
	}
}

// ValidateConfigPath checks that path names a regular file.
func ValidateConfigPath(path string) error {
	return files.ValidatePath(path)
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	d.SetStrict(true)
	if err := d.Decode(data); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// LoadConfig reads configPath over the defaults and validates the result.
// An empty configPath loads DefaultConfigFile when it exists.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			return cfg, nil
		}
		configPath = DefaultConfigFile
	}

	if err := LoadYAML(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

package docxfill

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config - file based settings of batch runs
type Config struct {
	Workers     int    `yaml:"workers"`
	OutputDir   string `yaml:"output_dir"`
	NamePattern string `yaml:"name_pattern"`

	// skip | fail
	Missing string `yaml:"missing"`

	// RRGGBB of generated text, empty keeps template colour
	Color                string `yaml:"color"`
	InheritRunProperties bool   `yaml:"inherit_run_properties"`

	Comments CommentsConfig `yaml:"comments"`
	Log      LogConfig      `yaml:"log"`
}

// CommentsConfig ..
type CommentsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Author  string `yaml:"author"`
}

// LogConfig ..
type LogConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultNamePattern - "<template>_<index>.docx"
const DefaultNamePattern = "{template}_{index}"

// DefaultConfig ..
func DefaultConfig() *Config {
	return &Config{
		Workers:     runtime.NumCPU(),
		OutputDir:   "output",
		NamePattern: DefaultNamePattern,
		Missing:     MissingSkip.String(),
		Color:       DefaultColor,
		Comments: CommentsConfig{
			Enabled: true,
			Author:  DefaultCommentAuthor,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads YAML config over defaults.
// Missing file gives defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) // #nosec G304 - config path is caller supplied
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

// Save writes config as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { // #nosec G306 - config is not secret
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Environment wins over file
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("DOCXFILL_OUTPUT_DIR"); dir != "" {
		c.OutputDir = dir
	}
	if n, err := strconv.Atoi(os.Getenv("DOCXFILL_WORKERS")); err == nil && n > 0 {
		c.Workers = n
	}
	if author := os.Getenv("DOCXFILL_COMMENT_AUTHOR"); author != "" {
		c.Comments.Author = author
	}
}

var (
	colorRe        = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Validate ..
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}
	if _, err := parseMissing(c.Missing); err != nil {
		return err
	}
	if c.Color != "" && !colorRe.MatchString(c.Color) {
		return fmt.Errorf("invalid color: %q (want RRGGBB)", c.Color)
	}
	if c.Log.Level != "" && !inSlice(c.Log.Level, validLogLevels) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Log.Level, validLogLevels)
	}
	return nil
}

func parseMissing(s string) (MissingPolicy, error) {
	switch s {
	case "", "skip":
		return MissingSkip, nil
	case "fail":
		return MissingFail, nil
	}
	return MissingSkip, fmt.Errorf("invalid missing policy: %s (valid: skip, fail)", s)
}

// Options - library options from config
func (c *Config) Options() Options {
	missing, _ := parseMissing(c.Missing)
	return Options{
		Policy: FormatPolicy{
			Color:                c.Color,
			InheritRunProperties: c.InheritRunProperties,
		},
		Missing:       missing,
		Comments:      c.Comments.Enabled,
		CommentAuthor: c.Comments.Author,
	}
}

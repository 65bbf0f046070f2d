package internal

import (
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/juv/internal/merge"
	"github.com/starford/juv/internal/uv"
)

// Environment variables read when building the default configuration.
const (
	EnvConfigFile = "JUV_CONFIG_FILE"
	EnvJupyter    = "JUV_JUPYTER"
	EnvPython     = "UV_PYTHON"
	EnvVisual     = "VISUAL"
	EnvEditor     = "EDITOR"
)

// Config represents the application configuration.
type Config struct {
	App ApplicationConfig `yaml:"app"`
	// Editor is the command used by "juv edit".
	Editor string `yaml:"editor"`
	// Jupyter is the default runtime, "kind" or "kind@version".
	Jupyter string `yaml:"jupyter"`
	// Python is the default interpreter request passed to uv.
	Python string       `yaml:"python"`
	UV     BinaryConfig `yaml:"uv"`
	Git    BinaryConfig `yaml:"git"`
	Merge  MergeConfig  `yaml:"merge"`
	Stamp  StampConfig  `yaml:"stamp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Editor, validation.Required),
		validation.Field(&c.Jupyter, validation.Required, validation.By(func(any) error {
			_, err := uv.ParseRuntime(c.Jupyter)
			return err
		})),
	); err != nil {
		return err
	}
	if err := c.UV.Validate(); err != nil {
		return err
	}
	if err := c.Git.Validate(); err != nil {
		return err
	}
	if err := c.Merge.Validate(); err != nil {
		return err
	}
	return c.Stamp.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// BinaryConfig names an external program.
type BinaryConfig struct {
	Binary string `yaml:"binary"`
}

// Validate validates the binary configuration.
func (c *BinaryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Binary, validation.Required),
	)
}

// MergeConfig tunes how edited cells are matched to existing ones.
type MergeConfig struct {
	MinSimilarity float64 `yaml:"min_similarity"`
}

// Validate validates the merge configuration.
func (c *MergeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinSimilarity, validation.Min(0.0), validation.Max(1.0)),
	)
}

// StampConfig holds settings for "juv stamp".
type StampConfig struct {
	// Timezone is an IANA name used for "now" and plain dates. Empty means
	// the system's local zone.
	Timezone string `yaml:"timezone"`
}

// Validate validates the stamp configuration.
func (c *StampConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
	)
}

// Location resolves Timezone.
func (c *StampConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// NewDefaultConfig returns a Config with defaults, taking editor, runtime
// and interpreter from getenv.
func NewDefaultConfig(getenv func(string) string) *Config {
	editor := getenv(EnvVisual)
	if editor == "" {
		editor = getenv(EnvEditor)
	}
	if editor == "" {
		editor = "vi"
	}
	jupyter := getenv(EnvJupyter)
	if jupyter == "" {
		jupyter = uv.KindLab
	}
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelWarn,
		},
		Editor:  editor,
		Jupyter: jupyter,
		Python:  getenv(EnvPython),
		UV:      BinaryConfig{Binary: "uv"},
		Git:     BinaryConfig{Binary: "git"},
		Merge:   MergeConfig{MinSimilarity: merge.DefaultMinSimilarity},
	}
}

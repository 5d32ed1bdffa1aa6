// Package config loads run settings from defaults, an optional YAML file and
// the environment. Command-line flags are applied by the caller last.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fpang/ai-video-generator/internal/chat"
	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// Image backends.
const (
	BackendImagen = "imagen"
	BackendGemini = "gemini"
)

// DefaultFile is read when no path is given and it exists in the working directory.
const DefaultFile = "video.yaml"

// Config holds every setting for a run.
type Config struct {
	OutputDir     string               `yaml:"output_dir"`
	Resolution    slideshow.Resolution `yaml:"resolution"`
	Voice         slideshow.Voice      `yaml:"voice"`
	ImageBackend  string               `yaml:"image_backend"`
	RefineWithLLM bool                 `yaml:"refine_with_llm"`
	Concurrency   int                  `yaml:"concurrency"`
	FPS           int                  `yaml:"fps"`
	Bundle        bool                 `yaml:"bundle"`

	// ServiceTimeout bounds each external call.
	ServiceTimeout time.Duration `yaml:"service_timeout"`
	// RunTimeout bounds a whole run. Zero means no limit.
	RunTimeout time.Duration `yaml:"run_timeout"`

	Models Models `yaml:"models"`
	AWS    AWS    `yaml:"aws"`
}

// Models names the Gemini models per service.
type Models struct {
	Text        string `yaml:"text"`
	Imagen      string `yaml:"imagen"`
	GeminiImage string `yaml:"gemini_image"`
	Speech      string `yaml:"speech"`
}

// AWS names the optional cloud resources. Empty names disable the feature.
type AWS struct {
	BucketName     string        `yaml:"bucket_name"`
	TableName      string        `yaml:"table_name"`
	EventBus       string        `yaml:"event_bus"`
	WorkerFunction string        `yaml:"worker_function"`
	APIKeyParam    string        `yaml:"api_key_param"`
	URLExpiry      time.Duration `yaml:"url_expiry"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		OutputDir:      "output",
		Resolution:     slideshow.DefaultResolution,
		Voice:          slideshow.DefaultVoice,
		ImageBackend:   BackendImagen,
		Concurrency:    1,
		FPS:            slideshow.DefaultFPS,
		ServiceTimeout: slideshow.DefaultServiceTimeout,
		Models: Models{
			Text:        chat.DefaultModelName,
			Imagen:      chat.DefaultImagenModel,
			GeminiImage: chat.DefaultGeminiImageName,
			Speech:      chat.DefaultSpeechModel,
		},
		AWS: AWS{
			APIKeyParam: "/ai-video-generator/gemini-api-key",
			URLExpiry:   time.Hour,
		},
	}
}

// Load merges defaults, the YAML file at path and the environment, then
// validates the result. An empty path reads DefaultFile when present.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strVars := map[string]*string{
		"VIDEO_OUTPUT_DIR":      &c.OutputDir,
		"VIDEO_IMAGE_BACKEND":   &c.ImageBackend,
		"GEMINI_MODEL":          &c.Models.Text,
		"GEMINI_IMAGEN_MODEL":   &c.Models.Imagen,
		"GEMINI_IMAGE_MODEL":    &c.Models.GeminiImage,
		"GEMINI_TTS_MODEL":      &c.Models.Speech,
		"VIDEO_BUCKET_NAME":     &c.AWS.BucketName,
		"VIDEO_TABLE_NAME":      &c.AWS.TableName,
		"VIDEO_EVENT_BUS":       &c.AWS.EventBus,
		"VIDEO_WORKER_FUNCTION": &c.AWS.WorkerFunction,
		"GEMINI_API_KEY_PARAM":  &c.AWS.APIKeyParam,
	}
	for name, dst := range strVars {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	if v, ok := get("VIDEO_SIZE"); ok {
		if err := c.Resolution.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("VIDEO_SIZE: %w", err)
		}
	}
	if v, ok := get("VIDEO_VOICE"); ok {
		if err := c.Voice.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("VIDEO_VOICE: %w", err)
		}
	}

	boolVars := map[string]*bool{
		"VIDEO_REFINE_WITH_LLM": &c.RefineWithLLM,
		"VIDEO_BUNDLE":          &c.Bundle,
	}
	for name, dst := range boolVars {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = b
		}
	}

	intVars := map[string]*int{
		"VIDEO_CONCURRENCY": &c.Concurrency,
		"VIDEO_FPS":         &c.FPS,
	}
	for name, dst := range intVars {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	durVars := map[string]*time.Duration{
		"VIDEO_SERVICE_TIMEOUT": &c.ServiceTimeout,
		"VIDEO_RUN_TIMEOUT":     &c.RunTimeout,
		"VIDEO_URL_EXPIRY":      &c.AWS.URLExpiry,
	}
	for name, dst := range durVars {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate checks enumerations and numeric bounds.
func (c *Config) Validate() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if !c.Resolution.Valid() {
		errs = append(errs, fmt.Errorf("unknown resolution %d", int(c.Resolution)))
	}
	if !c.Voice.Valid() {
		errs = append(errs, fmt.Errorf("unknown voice %d", int(c.Voice)))
	}
	switch c.ImageBackend {
	case BackendImagen, BackendGemini:
	default:
		errs = append(errs, fmt.Errorf("image_backend must be %q or %q, got %q", BackendImagen, BackendGemini, c.ImageBackend))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.FPS < 1 {
		errs = append(errs, fmt.Errorf("fps must be at least 1, got %d", c.FPS))
	}
	if c.ServiceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("service_timeout must be positive, got %s", c.ServiceTimeout))
	}
	if c.RunTimeout < 0 {
		errs = append(errs, fmt.Errorf("run_timeout must not be negative, got %s", c.RunTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ImageModel returns the model for the configured backend.
func (c *Config) ImageModel() string {
	if c.ImageBackend == BackendGemini {
		return c.Models.GeminiImage
	}
	return c.Models.Imagen
}

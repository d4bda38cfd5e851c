package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrConfiguration marks every failure to load or validate settings and the
// category map. Nothing is processed once it is returned.
var ErrConfiguration = errors.New("configuration error")

// Config holds the run-wide crop settings. It is loaded once and never
// mutated afterwards.
type Config struct {
	Confidence   float64 `json:"confidence" yaml:"confidence" toml:"confidence" validate:"gte=0,lte=1"`
	Padding      int     `json:"padding" yaml:"padding" toml:"padding" validate:"gte=0"`
	OutputFormat string  `json:"output_format" yaml:"output_format" toml:"output_format" validate:"oneof=jpg jpeg png bmp tif tiff webp"`
	JPEGQuality  int     `json:"jpeg_quality" yaml:"jpeg_quality" toml:"jpeg_quality" validate:"gte=1,lte=100"`
	DPI          int     `json:"dpi" yaml:"dpi" toml:"dpi" validate:"gte=36,lte=1200"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Confidence:   0.4,
		Padding:      0,
		OutputFormat: "jpg",
		JPEGQuality:  95,
		DPI:          150,
	}
}

// LoadConfigFromFile decodes path over the defaults, so missing keys keep
// their default value and unknown keys are ignored. The decoder is picked by
// extension; anything that is not YAML or TOML is read as JSON.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfiguration, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrConfiguration, path, err)
	}

	cfg.OutputFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.OutputFormat), "."))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and the output format.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s=%v fails %s=%s", fe.Field(), fe.Value(), fe.Tag(), fe.Param()))
	}
	return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(msgs, "; "))
}

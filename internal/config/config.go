package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	// Streaming server
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8470"`

	// Classifier
	ClassifierURL     string        `envconfig:"CLASSIFIER_URL" default:"http://localhost:8000"`
	ClassifierPath    string        `envconfig:"CLASSIFIER_PATH" default:"/classify"`
	ClassifierTimeout time.Duration `envconfig:"CLASSIFIER_TIMEOUT" default:"15s"`
	JPEGQuality       int           `envconfig:"JPEG_QUALITY" default:"85"`

	// Scoring and trigger
	CooldownMs        int     `envconfig:"COOLDOWN_MS" default:"2500"`
	AdequacyThreshold float64 `envconfig:"ADEQUACY_THRESHOLD" default:"35"`
	SampleBudget      int     `envconfig:"SAMPLE_BUDGET" default:"2800"`

	// Models
	ModelsDir   string `envconfig:"MODELS_DIR" default:"models"`
	CascadePath string `envconfig:"CASCADE_PATH" default:"cascade/facefinder"`
	ONNXLibrary string `envconfig:"ONNX_LIBRARY" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("DERMASCAN", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

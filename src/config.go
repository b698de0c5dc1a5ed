package src

import (
	"fmt"
	"line_chatbot/src/model"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	FlowFile string `envconfig:"FLOW_FILE"`

	LogConfig      model.LogConfig      `envconfig:""`
	StoreConfig    model.StoreConfig    `envconfig:""`
	LineConfig     model.LineConfig     `envconfig:""`
	LLMConfig      model.LLMConfig      `envconfig:""`
	GoogleConfig   model.GoogleConfig   `envconfig:""`
	BookingConfig  model.BookingConfig  `envconfig:""`
	DispatchConfig model.DispatchConfig `envconfig:""`
}

// LoadConfig reads an optional .env file and then the process environment
func LoadConfig(envFiles ...string) (*Config, error) {
	// .env is optional in every environment
	_ = godotenv.Load(envFiles...)

	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks cross-field requirements that envconfig tags cannot express
func (c *Config) Validate() error {
	switch c.StoreConfig.Backend {
	case "redis":
		if c.StoreConfig.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=redis")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreConfig.Backend)
	}

	switch c.BookingConfig.Backend {
	case "mongo":
		if c.BookingConfig.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when BOOKING_BACKEND=mongo")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown BOOKING_BACKEND %q", c.BookingConfig.Backend)
	}

	if c.LineConfig.ChannelAccessToken == "" {
		return fmt.Errorf("LINE_CHANNEL_ACCESS_TOKEN is required")
	}

	return nil
}

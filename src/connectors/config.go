package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"portfolioexecutor/src/security"
)

type Config struct {
	BaseURL   string `envconfig:"BROKER_BASE_URL" default:"https://paper-api.alpaca.markets"`
	StreamURL string `envconfig:"BROKER_STREAM_URL" default:"wss://paper-api.alpaca.markets/stream"`
	APIKey    string `envconfig:"BROKER_API_KEY"`
	APISecret string `envconfig:"BROKER_API_SECRET"`

	MinInterval   time.Duration `envconfig:"BROKER_MIN_INTERVAL" default:"350ms"`
	Timeout       time.Duration `envconfig:"BROKER_TIMEOUT" default:"15s"`
	RetryAttempts int           `envconfig:"BROKER_RETRY_ATTEMPTS" default:"5"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// WithDecryptedCredentials returns a copy of c whose API key and secret are
// opened when they were stored with the "enc:" prefix.
func (c Config) WithDecryptedCredentials() (Config, error) {
	key, err := security.DecryptString(c.APIKey)
	if err != nil {
		return c, fmt.Errorf("decrypt broker api key: %w", err)
	}
	secret, err := security.DecryptString(c.APISecret)
	if err != nil {
		return c, fmt.Errorf("decrypt broker api secret: %w", err)
	}
	c.APIKey = key
	c.APISecret = secret
	return c, nil
}

package openai

import "time"

type Config struct {
	BaseURL     string // default https://api.openai.com/v1
	APIKey      string
	Model       string // default gpt-4o-mini
	Temperature float32
	Timeout     time.Duration // default 45s

	// LenientOptional retries schema validation after sanitizing optional
	// fields the model got slightly wrong.
	LenientOptional bool
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	return c
}

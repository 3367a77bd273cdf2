package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppConfig     *AppConfig
	AIConfig      *AIConfig
	BrowserConfig *BrowserConfig
	DOMConfig     *DOMConfig
	AgentConfig   *AgentConfig
}

type AppConfig struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	Debug     bool   `envconfig:"DEBUG" default:"false"`
	TraceFile string `envconfig:"TRACE_FILE"`
	OutputDir string `envconfig:"OUTPUT_DIR" default:"./output"`
}

type AIConfig struct {
	Provider          string        `envconfig:"AI_PROVIDER" default:"anthropic"`
	APIKey            string        `envconfig:"AI_API_KEY"`
	Model             string        `envconfig:"AI_MODEL"`
	BaseURL           string        `envconfig:"AI_BASE_URL"`
	MaxTokens         int           `envconfig:"AI_MAX_TOKENS" default:"4096"`
	RequestsPerMinute int           `envconfig:"AI_REQUESTS_PER_MINUTE" default:"10"`
	Timeout           time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
}

type BrowserConfig struct {
	Driver         string `envconfig:"BROWSER_DRIVER" default:"playwright"`
	Headless       bool   `envconfig:"BROWSER_HEADLESS" default:"false"`
	SlowMo         int    `envconfig:"BROWSER_SLOW_MO" default:"100"`
	Timeout        int    `envconfig:"BROWSER_TIMEOUT" default:"30000"`
	UserDataDir    string `envconfig:"BROWSER_USER_DATA_DIR" default:"./browser-data"`
	UseScreenshots bool   `envconfig:"BROWSER_USE_SCREENSHOTS" default:"true"`
	ViewportWidth  int    `envconfig:"BROWSER_VIEWPORT_WIDTH" default:"1280"`
	ViewportHeight int    `envconfig:"BROWSER_VIEWPORT_HEIGHT" default:"800"`
}

type DOMConfig struct {
	ViewportExpansion int           `envconfig:"DOM_VIEWPORT_EXPANSION" default:"500"`
	Highlight         bool          `envconfig:"DOM_HIGHLIGHT" default:"true"`
	MaxDepth          int           `envconfig:"DOM_MAX_DEPTH" default:"256"`
	MaxNodes          int           `envconfig:"DOM_MAX_NODES" default:"20000"`
	HighlightTTL      time.Duration `envconfig:"DOM_HIGHLIGHT_TTL" default:"5s"`
}

type AgentConfig struct {
	MaxIterations        int `envconfig:"AGENT_MAX_ITERATIONS" default:"16"`
	MaxConsecutiveErrors int `envconfig:"AGENT_MAX_CONSECUTIVE_ERRORS" default:"3"`
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"

	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}

func (c *Config) validate() error {
	switch c.AIConfig.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIConfig.Provider)
	}

	switch c.BrowserConfig.Driver {
	case DriverPlaywright, DriverChromedp:
	default:
		return fmt.Errorf("unknown BROWSER_DRIVER %q", c.BrowserConfig.Driver)
	}

	if c.BrowserConfig.ViewportWidth <= 0 || c.BrowserConfig.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.BrowserConfig.ViewportWidth, c.BrowserConfig.ViewportHeight)
	}

	if c.DOMConfig.ViewportExpansion < 0 {
		return fmt.Errorf("DOM_VIEWPORT_EXPANSION must not be negative, got %d", c.DOMConfig.ViewportExpansion)
	}

	for _, limit := range []struct {
		name  string
		value int
	}{
		{"DOM_MAX_DEPTH", c.DOMConfig.MaxDepth},
		{"DOM_MAX_NODES", c.DOMConfig.MaxNodes},
		{"AGENT_MAX_ITERATIONS", c.AgentConfig.MaxIterations},
		{"AGENT_MAX_CONSECUTIVE_ERRORS", c.AgentConfig.MaxConsecutiveErrors},
	} {
		if limit.value < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", limit.name, limit.value)
		}
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables holding the target account credentials
const (
	EnvUsername = "BINDUP_USERNAME"
	EnvPassword = "BINDUP_PASSWORD"
)

// ErrMissingCredentials is returned when a case needs credentials that are not set
var ErrMissingCredentials = errors.New("missing credentials: set " + EnvUsername + " and " + EnvPassword)

// AppConfig holds the complete application configuration
type AppConfig struct {
	Browser     BrowserConfig     `yaml:"browser"`
	Detector    DetectorConfig    `yaml:"detector"`
	Retry       RetryConfig       `yaml:"retry"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Performance PerformanceConfig `yaml:"performance"`
	Runner      RunnerConfig      `yaml:"runner"`
	IO          IOConfig          `yaml:"io"`
	Proxies     ProxyConfig       `yaml:"proxies"`
	Target      TargetConfig      `yaml:"target"`
}

// BrowserConfig holds the browser driver configuration
type BrowserConfig struct {
	Driver        string        `yaml:"driver"` // chromedp, playwright or static
	Headless      bool          `yaml:"headless"`
	RemoteURL     string        `yaml:"remote_url"`
	UserAgent     string        `yaml:"user_agent"`
	UserAgents    []string      `yaml:"user_agents,omitempty"`
	WindowWidth   int           `yaml:"window_width"`
	WindowHeight  int           `yaml:"window_height"`
	Timeout       time.Duration `yaml:"timeout"`
	AcceptDialogs bool          `yaml:"accept_dialogs"`
}

// DetectorConfig holds the element detector configuration
type DetectorConfig struct {
	CandidateTimeout time.Duration `yaml:"candidate_timeout"`
}

// RetryConfig holds the retry executor configuration
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// MetricsConfig holds the metrics report configuration
type MetricsConfig struct {
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	TopN          int           `yaml:"top_n"`
}

// PerformanceConfig holds the performance monitor configuration
type PerformanceConfig struct {
	ExpectedDuration time.Duration `yaml:"expected_duration"`
	BrowserLabel     string        `yaml:"browser_label"`
}

// RunnerConfig holds the case runner configuration
type RunnerConfig struct {
	Workers       int           `yaml:"workers"`
	RateLimit     time.Duration `yaml:"rate_limit"`
	CaseTimeout   time.Duration `yaml:"case_timeout"`
	PassThreshold float64       `yaml:"pass_threshold"`
}

// IOConfig holds the input/output configuration
type IOConfig struct {
	CasesFile     string `yaml:"cases_file"`
	OutputFile    string `yaml:"output_file"`
	OutputFormat  string `yaml:"output_format"`
	ScreenshotDir string `yaml:"screenshot_dir"`
}

// ProxyConfig holds the proxy configuration
type ProxyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Rotate  bool     `yaml:"rotate"`
	List    []string `yaml:"list"`
	Auth    struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"auth"`
}

// TargetConfig describes the application under test
type TargetConfig struct {
	BaseURL  string                   `yaml:"base_url"`
	LoginURL string                   `yaml:"login_url"`
	Elements map[string]ElementConfig `yaml:"elements"`
	Popups   []string                 `yaml:"popups"`
}

// ElementConfig is a named UI element with its selector fallbacks
type ElementConfig struct {
	Description string   `yaml:"description"`
	Primary     string   `yaml:"primary"`
	Fallbacks   []string `yaml:"fallbacks"`
}

// Credentials holds the target account login
type Credentials struct {
	Username string
	Password string
}

// Valid reports whether both fields are set
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// Load loads the configuration from a YAML file on top of the defaults
func Load(filename string) (*AppConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config := CreateDefault()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	// Set default user agents if none provided
	if len(config.Browser.UserAgents) == 0 {
		config.Browser.UserAgents = DefaultUserAgents
	}
	if config.Browser.UserAgent == "" {
		config.Browser.UserAgent = config.Browser.UserAgents[0]
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", filename, err)
	}

	return config, nil
}

// CreateDefault creates a default configuration
func CreateDefault() *AppConfig {
	return &AppConfig{
		Browser: BrowserConfig{
			Driver:        DriverChromedp,
			Headless:      true,
			UserAgent:     DefaultUserAgents[0],
			UserAgents:    DefaultUserAgents,
			WindowWidth:   1920,
			WindowHeight:  1080,
			Timeout:       30 * time.Second,
			AcceptDialogs: true,
		},
		Detector: DetectorConfig{
			CandidateTimeout: 2 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
		},
		Metrics: MetricsConfig{
			SlowThreshold: 30 * time.Second,
			TopN:          5,
		},
		Performance: PerformanceConfig{
			ExpectedDuration: 10 * time.Second,
			BrowserLabel:     "chromium",
		},
		Runner: RunnerConfig{
			Workers:       1,
			RateLimit:     0,
			CaseTimeout:   5 * time.Minute,
			PassThreshold: 0.7,
		},
		IO: IOConfig{
			OutputFile:    "results.json",
			OutputFormat:  "json",
			ScreenshotDir: "screenshots",
		},
		Proxies: ProxyConfig{
			Rotate: true,
			List:   []string{},
		},
		Target: TargetConfig{
			BaseURL:  DefaultBaseURL,
			LoginURL: DefaultLoginURL,
			Elements: DefaultElements(),
			Popups:   DefaultPopups,
		},
	}
}

// Validate checks values that would otherwise fail deep inside a run
func (c *AppConfig) Validate() error {
	switch c.Browser.Driver {
	case DriverChromedp, DriverPlaywright, DriverStatic:
	default:
		return fmt.Errorf("unknown browser driver %q", c.Browser.Driver)
	}
	if c.Runner.PassThreshold < 0 || c.Runner.PassThreshold > 1 {
		return fmt.Errorf("runner.pass_threshold must be within [0, 1], got %v", c.Runner.PassThreshold)
	}
	if c.Runner.Workers < 1 {
		return fmt.Errorf("runner.workers must be at least 1, got %d", c.Runner.Workers)
	}
	for name, el := range c.Target.Elements {
		if el.Primary == "" {
			return fmt.Errorf("target.elements.%s has no primary selector", name)
		}
	}
	return nil
}

// LoadEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; existing variables are kept.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// LoadCredentials reads the target account credentials from the environment
func LoadCredentials() Credentials {
	return Credentials{
		Username: os.Getenv(EnvUsername),
		Password: os.Getenv(EnvPassword),
	}
}

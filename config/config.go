package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultBaseURL = "https://krisha.kz"

type Config struct {
	BaseURL     string
	Fetcher     string
	Proxy       ProxyConfig
	Scraper     ScraperConfig
	Scheduler   SchedulerConfig
	LogPath     string
	LogLevel    string
	MetricsAddr string
	PresetsDir  string
	Searches    map[string]*SearchPreset
}

type ProxyConfig struct {
	URL string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	UserAgent       string
	RandomUserAgent bool
	DelayMS         int
	TimeoutSec      int
	ParsePolicy     string
	BrowserHeadless bool
}

// Timeout is the per-request deadline. Non-positive values fall back to 60s.
func (c *ScraperConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// SearchPreset is a saved search read from config/searches/*.yaml.
// Filters uses the short filter names, e.g. rooms or price_to.
type SearchPreset struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Category string         `yaml:"category"`
	Mode     string         `yaml:"mode"`
	Limit    int            `yaml:"limit"`
	Filters  map[string]any `yaml:"filters"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL: getEnv("KRISHA_BASE_URL", DefaultBaseURL),
		Fetcher: getEnv("FETCHER", "collector"),
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Scraper: ScraperConfig{
			UserAgent:       os.Getenv("USER_AGENT"),
			RandomUserAgent: getEnvBool("RANDOM_USER_AGENT", false),
			DelayMS:         getEnvInt("SCRAPE_DELAY_MS", 500),
			TimeoutSec:      getEnvInt("FETCH_TIMEOUT_SEC", 60),
			ParsePolicy:     getEnv("PARSE_POLICY", "strict"),
			BrowserHeadless: getEnvBool("BROWSER_HEADLESS", true),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SEARCH_CRON"),
		},
		LogPath:     os.Getenv("LOG_PATH"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		PresetsDir:  getEnv("SEARCH_PRESETS_DIR", "config/searches"),
		Searches:    make(map[string]*SearchPreset),
	}

	if interval := os.Getenv("SEARCH_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSearchPresets(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSearchPresets() error {
	entries, err := os.ReadDir(c.PresetsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(c.PresetsDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var preset SearchPreset
		if err := yaml.Unmarshal(data, &preset); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if preset.ID == "" {
			preset.ID = strings.TrimSuffix(entry.Name(), ext)
		}
		if _, dup := c.Searches[preset.ID]; dup {
			return fmt.Errorf("%s: duplicate search preset id %q", path, preset.ID)
		}

		c.Searches[preset.ID] = &preset
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

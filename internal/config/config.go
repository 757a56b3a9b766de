package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"prodcrawl/internal/domain"
	"prodcrawl/internal/platform"
)

// MinPacingDelay is the lowest accepted delay between page navigations.
const MinPacingDelay = time.Second

// Config holds all configuration for both binaries.
// Values are read by viper from a config file or environment variables.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`

	CrawlPlatform    string        `mapstructure:"CRAWL_PLATFORM"`
	CrawlMode        string        `mapstructure:"CRAWL_MODE"`
	CrawlURLs        string        `mapstructure:"CRAWL_URLS"`
	CrawlKeyword     string        `mapstructure:"CRAWL_KEYWORD"`
	CrawlCategory    string        `mapstructure:"CRAWL_CATEGORY"`
	CrawlCategoryRef string        `mapstructure:"CRAWL_CATEGORY_REF"`
	CrawlMaxItems    int           `mapstructure:"CRAWL_MAX_ITEMS"`
	CrawlMaxReviews  int           `mapstructure:"CRAWL_MAX_REVIEWS"`
	CrawlPacingDelay time.Duration `mapstructure:"CRAWL_PACING_DELAY"`
	CrawlPageTimeout time.Duration `mapstructure:"CRAWL_PAGE_TIMEOUT"`
	CrawlFeatured    bool          `mapstructure:"CRAWL_FEATURED"`

	BrowserBin       string `mapstructure:"BROWSER_BIN"`
	BrowserHeadless  bool   `mapstructure:"BROWSER_HEADLESS"`
	BrowserUserAgent string `mapstructure:"BROWSER_USER_AGENT"`

	StorageBackend   string `mapstructure:"STORAGE_BACKEND"`
	BadgerDBPath     string `mapstructure:"BADGERDB_PATH"`
	PostgresDSN      string `mapstructure:"POSTGRES_DSN"`
	PostgresMaxConns int    `mapstructure:"POSTGRES_MAX_CONNS"`

	FXEndpoint        string        `mapstructure:"FX_ENDPOINT"`
	FXDisplayCurrency string        `mapstructure:"FX_DISPLAY_CURRENCY"`
	FXRefreshInterval time.Duration `mapstructure:"FX_REFRESH_INTERVAL"`

	ImageMinDimension int    `mapstructure:"IMAGE_MIN_DIMENSION"`
	ImageBlockedHosts string `mapstructure:"IMAGE_BLOCKED_HOSTS"`
	ImageBlockedPaths string `mapstructure:"IMAGE_BLOCKED_PATHS"`

	AffiliateAppKey      string        `mapstructure:"AFFILIATE_APP_KEY"`
	AffiliateAppSecret   string        `mapstructure:"AFFILIATE_APP_SECRET"`
	AffiliateTrackingID  string        `mapstructure:"AFFILIATE_TRACKING_ID"`
	AffiliateEndpoint    string        `mapstructure:"AFFILIATE_ENDPOINT"`
	AffiliateMaxAttempts int           `mapstructure:"AFFILIATE_MAX_ATTEMPTS"`
	AffiliateBaseBackoff time.Duration `mapstructure:"AFFILIATE_BASE_BACKOFF"`
	AffiliateRPS         float64       `mapstructure:"AFFILIATE_RPS"`
	AffiliateMode        string        `mapstructure:"AFFILIATE_MODE"`
	AffiliateKeywords    string        `mapstructure:"AFFILIATE_KEYWORDS"`
	AffiliateCategoryIDs string        `mapstructure:"AFFILIATE_CATEGORY_IDS"`
	AffiliatePageSize    int           `mapstructure:"AFFILIATE_PAGE_SIZE"`
	AffiliatePages       int           `mapstructure:"AFFILIATE_PAGES"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `mapstructure:"TELEGRAM_CHAT_ID"`

	MetricsPushgatewayURL string `mapstructure:"METRICS_PUSHGATEWAY_URL"`
}

// defaults registers every key so env-only runs unmarshal. Viper only
// considers keys it already knows about when decoding.
var defaults = map[string]any{
	"LOG_LEVEL": "info",

	"CRAWL_PLATFORM":     "",
	"CRAWL_MODE":         string(domain.ModeDirectURL),
	"CRAWL_URLS":         "",
	"CRAWL_KEYWORD":      "",
	"CRAWL_CATEGORY":     "",
	"CRAWL_CATEGORY_REF": "",
	"CRAWL_MAX_ITEMS":    50,
	"CRAWL_MAX_REVIEWS":  20,
	"CRAWL_PACING_DELAY": "3s",
	"CRAWL_PAGE_TIMEOUT": "30s",
	"CRAWL_FEATURED":     false,

	"BROWSER_BIN":        "",
	"BROWSER_HEADLESS":   true,
	"BROWSER_USER_AGENT": "",

	"STORAGE_BACKEND":    "badger",
	"BADGERDB_PATH":      "./badger_data",
	"POSTGRES_DSN":       "",
	"POSTGRES_MAX_CONNS": 4,

	"FX_ENDPOINT":         "",
	"FX_DISPLAY_CURRENCY": "KRW",
	"FX_REFRESH_INTERVAL": "1h",

	"IMAGE_MIN_DIMENSION": 0,
	"IMAGE_BLOCKED_HOSTS": "",
	"IMAGE_BLOCKED_PATHS": "",

	"AFFILIATE_APP_KEY":      "",
	"AFFILIATE_APP_SECRET":   "",
	"AFFILIATE_TRACKING_ID":  "",
	"AFFILIATE_ENDPOINT":     "https://api-sg.aliexpress.com/sync",
	"AFFILIATE_MAX_ATTEMPTS": 5,
	"AFFILIATE_BASE_BACKOFF": "1s",
	"AFFILIATE_RPS":          2.0,
	"AFFILIATE_MODE":         "link",
	"AFFILIATE_KEYWORDS":     "",
	"AFFILIATE_CATEGORY_IDS": "",
	"AFFILIATE_PAGE_SIZE":    50,
	"AFFILIATE_PAGES":        1,

	"TELEGRAM_BOT_TOKEN": "",
	"TELEGRAM_CHAT_ID":   0,

	"METRICS_PUSHGATEWAY_URL": "",
}

// LoadConfig reads .env, then configs/config.yaml under path, then the
// environment. Later sources win.
func LoadConfig(path string) (config Config, err error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; everything can come from the environment.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if config.CrawlPacingDelay < MinPacingDelay {
		config.CrawlPacingDelay = MinPacingDelay
	}
	config.FXDisplayCurrency = strings.ToUpper(strings.TrimSpace(config.FXDisplayCurrency))
	config.StorageBackend = strings.ToLower(strings.TrimSpace(config.StorageBackend))
	return config, nil
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Platform returns the parsed crawl platform.
func (c Config) Platform() (domain.Platform, error) {
	return domain.ParsePlatform(c.CrawlPlatform)
}

// Mode returns the parsed crawl mode.
func (c Config) Mode() (domain.CrawlMode, error) {
	return domain.ParseCrawlMode(c.CrawlMode)
}

// CrawlParams assembles the mode parameters of a run.
func (c Config) CrawlParams() domain.CrawlParams {
	return domain.CrawlParams{
		URLs:     SplitList(c.CrawlURLs),
		Keyword:  strings.TrimSpace(c.CrawlKeyword),
		Category: strings.TrimSpace(c.CrawlCategory),
		MaxItems: c.CrawlMaxItems,
	}
}

func (c Config) validateStorage() error {
	switch c.StorageBackend {
	case "badger", "":
		if c.BadgerDBPath == "" {
			return errors.New("BADGERDB_PATH is not set")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is not set")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

// ValidateCrawler checks everything the crawler binary needs at startup.
func (c Config) ValidateCrawler() error {
	p, err := c.Platform()
	if err != nil {
		return fmt.Errorf("CRAWL_PLATFORM: %w", err)
	}
	mode, err := c.Mode()
	if err != nil {
		return fmt.Errorf("CRAWL_MODE: %w", err)
	}
	adapter, err := platform.DefaultRegistry().Get(p)
	if err != nil {
		return err
	}
	if !platform.Supports(adapter, mode) {
		return fmt.Errorf("platform %s does not support crawl mode %s (supported: %v)", p, mode, platform.SupportedModes(adapter))
	}

	params := c.CrawlParams()
	switch mode {
	case domain.ModeDirectURL:
		if len(params.URLs) == 0 {
			return errors.New("CRAWL_URLS is required for direct-url mode")
		}
	case domain.ModeSearch:
		if params.Keyword == "" {
			return errors.New("CRAWL_KEYWORD is required for search mode")
		}
	case domain.ModeCategory:
		if params.Category == "" {
			return errors.New("CRAWL_CATEGORY is required for category mode")
		}
	}
	if c.CrawlMaxItems < 0 {
		return errors.New("CRAWL_MAX_ITEMS must not be negative")
	}

	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.FXEndpoint == "" {
		return errors.New("FX_ENDPOINT is not set")
	}
	return nil
}

// ValidateAffiliate checks everything the affiliate binary needs at startup.
func (c Config) ValidateAffiliate() error {
	if c.AffiliateAppKey == "" || c.AffiliateAppSecret == "" {
		return errors.New("AFFILIATE_APP_KEY and AFFILIATE_APP_SECRET are required")
	}
	switch c.AffiliateMode {
	case "search":
		if c.AffiliateKeywords == "" && c.AffiliateCategoryIDs == "" {
			return errors.New("AFFILIATE_KEYWORDS or AFFILIATE_CATEGORY_IDS is required for search mode")
		}
	case "link":
	default:
		return fmt.Errorf("unknown AFFILIATE_MODE %q", c.AffiliateMode)
	}
	return c.validateStorage()
}

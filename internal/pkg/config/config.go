package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Scraper   ScraperConfig   `yaml:"scraper"`
	API       APIConfig       `yaml:"api"`
	Browser   BrowserConfig   `yaml:"browser"`
	Captcha   CaptchaConfig   `yaml:"captcha"`
	Selectors SelectorsConfig `yaml:"selectors"`
	Capture   CaptureConfig   `yaml:"capture"`
	Paths     PathsConfig     `yaml:"paths"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Timezone  string          `yaml:"timezone"` // IANA name for start_time formatting, empty = local
}

type ScraperConfig struct {
	Method     string `yaml:"method"` // api | browser | network | auto
	Limit      int    `yaml:"limit"`
	Headless   bool   `yaml:"headless"`
	SaveToFile bool   `yaml:"save_to_file"`
}

type APIConfig struct {
	BaseURL    string `yaml:"base_url"`
	SiteURL    string `yaml:"site_url"`
	LandingURL string `yaml:"landing_url"`
	// Endpoints are tried in order. Placeholders: {base_url}, {site_url}, {now_ms}, {date}.
	Endpoints []string          `yaml:"endpoints"`
	Timeout   time.Duration     `yaml:"timeout"`
	DelayMin  time.Duration     `yaml:"delay_min"`
	DelayMax  time.Duration     `yaml:"delay_max"`
	UserAgent string            `yaml:"user_agent"`
	Headers   map[string]string `yaml:"headers"`
	// Cloudflare wraps the HTTP transport with browser-like TLS and header defaults.
	Cloudflare bool `yaml:"cloudflare"`
}

type BrowserConfig struct {
	URL                string        `yaml:"url"`
	UserAgent          string        `yaml:"user_agent"`
	ViewportWidth      int           `yaml:"viewport_width"`
	ViewportHeight     int           `yaml:"viewport_height"`
	NavigationTimeout  time.Duration `yaml:"navigation_timeout"`
	ElementTimeout     time.Duration `yaml:"element_timeout"`
	ChromePath         string        `yaml:"chrome_path"`
	Scroll             ScrollConfig  `yaml:"scroll"`
	PostLoadDelay      time.Duration `yaml:"post_load_delay"`
	PostInteractDelay  time.Duration `yaml:"post_interact_delay"`
	InteractionEnabled bool          `yaml:"interaction_enabled"`
}

type ScrollConfig struct {
	Count         int           `yaml:"count"`
	Distance      int           `yaml:"distance"`
	Variance      int           `yaml:"variance"`
	MinDistance   int           `yaml:"min_distance"`
	Delay         time.Duration `yaml:"delay"`
	DelayVariance time.Duration `yaml:"delay_variance"`
	ScrollBackP   float64       `yaml:"scroll_back_probability"`
	ClickP        float64       `yaml:"click_probability"`
	MaxTabClicks  int           `yaml:"max_tab_clicks"`
}

type CaptchaConfig struct {
	Selectors    []string      `yaml:"selectors"`
	TitleTerms   []string      `yaml:"title_terms"`
	ContentTerms []string      `yaml:"content_terms"`
	WaitTimeout  time.Duration `yaml:"wait_timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	// Settle is the pause between the operator signal and the re-check.
	Settle time.Duration `yaml:"settle"`
	// RecheckDelay is the pause after a solved attempt before Handle detects again.
	RecheckDelay time.Duration `yaml:"recheck_delay"`
}

type SelectorsConfig struct {
	Containers []string `yaml:"containers"`
	EventLink  string   `yaml:"event_link"`
	EventPath  string   `yaml:"event_path"`
	TeamNames  []string `yaml:"team_names"`
	Tournament []string `yaml:"tournament"`
	StartTime  []string `yaml:"start_time"`
	Status     []string `yaml:"status"`
	Tabs       []string `yaml:"tabs"`
}

type CaptureConfig struct {
	Host string `yaml:"host"`
	Path string `yaml:"path"`
}

type PathsConfig struct {
	DataDir        string `yaml:"data_dir"`
	CookiesFile    string `yaml:"cookies_file"`
	RequestsFile   string `yaml:"requests_file"`
	MatchesDir     string `yaml:"matches_dir"`
	ScreenshotsDir string `yaml:"screenshots_dir"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // postgres | sqlite, empty disables
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	TTL      time.Duration `yaml:"ttl"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // DEBUG | INFO | WARN | ERROR
	File  string `yaml:"file"`  // optional JSON log file
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration the scraper runs with when no file is given.
func Default() *Config {
	return &Config{
		Scraper: ScraperConfig{
			Method:     "browser",
			Limit:      5,
			Headless:   false,
			SaveToFile: true,
		},
		API: APIConfig{
			BaseURL:    "https://api.sofascore.com/api/v1",
			SiteURL:    "https://www.sofascore.com",
			LandingURL: "https://www.sofascore.com/football",
			Endpoints: []string{
				"{base_url}/sport/football/events/live",
				"{base_url}/sport/football/scheduled-events/{now_ms}",
				"{base_url}/sport/football/livescores/json",
				"{base_url}/football/live-feed",
				"{base_url}/sport/football/scheduled-events/{date}",
				"{base_url}/mobile/sport/football/live",
				"{site_url}/football/livescore/json",
			},
			Timeout:   10 * time.Second,
			DelayMin:  time.Second,
			DelayMax:  2 * time.Second,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			Headers: map[string]string{
				"Accept":             "application/json, text/plain, */*",
				"Accept-Language":    "en-US,en;q=0.9",
				"Referer":            "https://www.sofascore.com/football",
				"Origin":             "https://www.sofascore.com",
				"sec-ch-ua":          `"Chromium";v="122", "Google Chrome";v="122", "Not(A:Brand";v="24"`,
				"sec-ch-ua-mobile":   "?0",
				"sec-ch-ua-platform": `"macOS"`,
				"sec-fetch-dest":     "empty",
				"sec-fetch-mode":     "cors",
				"sec-fetch-site":     "same-site",
			},
		},
		Browser: BrowserConfig{
			URL:               "https://www.sofascore.com/football",
			UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			ViewportWidth:     1280,
			ViewportHeight:    800,
			NavigationTimeout: 60 * time.Second,
			ElementTimeout:    30 * time.Second,
			Scroll: ScrollConfig{
				Count:         5,
				Distance:      300,
				Variance:      100,
				MinDistance:   50,
				Delay:         1500 * time.Millisecond,
				DelayVariance: time.Second,
				ScrollBackP:   0.3,
				ClickP:        0.2,
				MaxTabClicks:  3,
			},
			PostLoadDelay:      3 * time.Second,
			PostInteractDelay:  3 * time.Second,
			InteractionEnabled: true,
		},
		Captcha: CaptchaConfig{
			Selectors: []string{
				"iframe[src*='captcha']",
				"iframe[src*='recaptcha']",
				"iframe[src*='cloudflare']",
				".captcha-container",
				"#captcha",
				"div.g-recaptcha",
				"div[class*='captcha']",
			},
			TitleTerms: []string{"captcha", "security check", "cloudflare", "human verification"},
			ContentTerms: []string{
				"captcha",
				"security check",
				"cloudflare",
				"verify you are human",
				"bot protection",
				"prove you are human",
				"complete the security check",
				"access denied",
				"ddos protection",
			},
			WaitTimeout:  300 * time.Second,
			MaxAttempts:  3,
			Settle:       2 * time.Second,
			RecheckDelay: 3 * time.Second,
		},
		Selectors: SelectorsConfig{
			Containers: []string{
				"a[href*='/event/']",
				"div[data-id]",
				"li.event-list__item",
				".event-block",
				"[data-tournament]",
			},
			EventLink:  "a[href*='/event/']",
			EventPath:  "/event/",
			TeamNames:  []string{".teamName", ".team-name", "[data-home-team]", "[data-away-team]", ".participant__participantName"},
			Tournament: []string{".tournament", ".tournament-name", "[data-tournament]", ".event__title--name"},
			StartTime:  []string{".time", ".event__time", "[data-starttime]"},
			Status:     []string{".status", ".event__status", "[data-status]"},
			Tabs: []string{
				"nav a[href='#']",
				".tabs button",
				".tab-content",
				"div[role='tab']",
				".sports-filter",
				".tournament-filter",
				"[data-sport='football']",
				".tournament-page-tab",
			},
		},
		Capture: CaptureConfig{
			Host: "api.sofascore.com",
			Path: "/football/",
		},
		Paths: PathsConfig{
			DataDir:        "data",
			CookiesFile:    "data/cookies/sofascore_cookies.json",
			RequestsFile:   "data/api_requests/sofascore_api_requests.json",
			MatchesDir:     "data/matches",
			ScreenshotsDir: "data/screenshots",
		},
		Redis: RedisConfig{
			Key: "sofascore:matches:latest",
			TTL: 6 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Load reads a YAML file on top of Default(), applies environment overrides and validates.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Secrets stay out of yaml and come from the environment.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); v != "" {
		c.Telegram.BotToken = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if v := strings.TrimSpace(os.Getenv("STORAGE_DSN")); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

// Validate checks the invariants the components rely on.
func (c *Config) Validate() error {
	var errs []error

	switch c.Scraper.Method {
	case "api", "browser", "network", "auto":
	default:
		errs = append(errs, fmt.Errorf("scraper.method: unknown method %q", c.Scraper.Method))
	}
	if c.Scraper.Limit < 0 {
		errs = append(errs, errors.New("scraper.limit must be >= 0"))
	}
	if len(c.API.Endpoints) == 0 {
		errs = append(errs, errors.New("api.endpoints must not be empty"))
	}
	if c.API.DelayMax < c.API.DelayMin {
		errs = append(errs, errors.New("api.delay_max must be >= api.delay_min"))
	}
	if c.Browser.ViewportWidth <= 100 || c.Browser.ViewportHeight <= 100 {
		errs = append(errs, errors.New("browser viewport must be larger than 100x100"))
	}
	if c.Browser.Scroll.MinDistance < 0 {
		errs = append(errs, errors.New("browser.scroll.min_distance must be >= 0"))
	}
	if c.Captcha.MaxAttempts < 1 {
		errs = append(errs, errors.New("captcha.max_attempts must be >= 1"))
	}
	if c.Captcha.WaitTimeout < 0 {
		errs = append(errs, errors.New("captcha.wait_timeout must be >= 0"))
	}
	if len(c.Selectors.Containers) == 0 {
		errs = append(errs, errors.New("selectors.containers must not be empty"))
	}
	if c.Selectors.EventLink == "" {
		errs = append(errs, errors.New("selectors.event_link must be set"))
	}
	switch c.Storage.Driver {
	case "", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unsupported driver %q", c.Storage.Driver))
	}
	if c.Storage.Driver != "" && c.Storage.DSN == "" {
		errs = append(errs, errors.New("storage.dsn is required when storage.driver is set"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Location resolves Timezone; empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

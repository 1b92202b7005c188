package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "TRENDPRESS_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	redisURLEnv      = "REDIS_URL"
	chatGPTAPIKeyEnv = "CHATGPT_API_KEY"
	chatGPTModelEnv  = "CHATGPT_MODEL"
	mediaAPIKeyEnv   = "MEDIA_API_KEY"
	scraperURLEnv    = "SCRAPER_URL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig     `yaml:"logging"`
	Database   DatabaseConfig    `yaml:"database"`
	Redis      RedisConfig       `yaml:"redis"`
	Queue      QueueConfig       `yaml:"queue"`
	Poller     PollerConfig      `yaml:"poller"`
	ChatGPT    ChatGPTConfig     `yaml:"chatgpt"`
	Media      MediaConfig       `yaml:"media"`
	Scraper    ScraperConfig     `yaml:"scraper"`
	Workspaces []WorkspaceConfig `yaml:"workspaces"`
}

// LoggingConfig selects handler level and format.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN runs
// the pipeline on in-memory stores.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig describes the queue transport. An empty URL selects the
// in-process queue.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// QueueConfig tunes the worker runtime.
type QueueConfig struct {
	Name        string        `yaml:"name"`
	Concurrency int           `yaml:"concurrency"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BackoffBase time.Duration `yaml:"backoffBase"`
}

// PollerConfig defines how often periodic scans fire.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ChatGPTConfig defines how to contact the completion API.
type ChatGPTConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// MediaConfig wires the media-hosting collaborator.
type MediaConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// ScraperConfig wires the external scraper service.
type ScraperConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// PlatformConfig carries one platform's credentials inside a workspace seed.
type PlatformConfig struct {
	Platform string `yaml:"platform"`
	Token    string `yaml:"token"`
	ChatID   string `yaml:"chatId"`
	Handle   string `yaml:"handle"`
}

// WorkspaceConfig seeds a tenant when no database is configured.
type WorkspaceConfig struct {
	ID                string           `yaml:"id"`
	Name              string           `yaml:"name"`
	Accounts          []string         `yaml:"accounts"`
	Subject           string           `yaml:"subject"`
	MinLikes          int              `yaml:"minLikes"`
	HotScoreThreshold float64          `yaml:"hotScoreThreshold"`
	MaxPostAgeHours   int              `yaml:"maxPostAgeHours"`
	DailyPostLimit    int              `yaml:"dailyPostLimit"`
	PublishTimes      []string         `yaml:"publishTimes"`
	Timezone          string           `yaml:"timezone"`
	ReviewWindowHours int              `yaml:"reviewWindowHours"`
	TranslationPrompt string           `yaml:"translationPrompt"`
	RelevancePrompt   string           `yaml:"relevancePrompt"`
	AutoApproveDrafts bool             `yaml:"autoApproveDrafts"`
	AutoApprovePrompt string           `yaml:"autoApprovePrompt"`
	Platforms         []PlatformConfig `yaml:"platforms"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(redisURLEnv); v != "" {
		c.Redis.URL = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(mediaAPIKeyEnv); v != "" {
		c.Media.APIKey = v
	}

	if v := os.Getenv(scraperURLEnv); v != "" {
		c.Scraper.Endpoint = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.JSON {
		base.Logging.JSON = true
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}
	if override.Redis.URL != "" {
		base.Redis = override.Redis
	}

	if override.Queue.Name != "" {
		base.Queue.Name = override.Queue.Name
	}
	if override.Queue.Concurrency > 0 {
		base.Queue.Concurrency = override.Queue.Concurrency
	}
	if override.Queue.MaxAttempts > 0 {
		base.Queue.MaxAttempts = override.Queue.MaxAttempts
	}
	if override.Queue.BackoffBase > 0 {
		base.Queue.BackoffBase = override.Queue.BackoffBase
	}

	if override.Poller.Interval > 0 {
		base.Poller.Interval = override.Poller.Interval
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}
	if override.ChatGPT.Timeout > 0 {
		base.ChatGPT.Timeout = override.ChatGPT.Timeout
	}

	if override.Media.Endpoint != "" {
		base.Media.Endpoint = override.Media.Endpoint
	}
	if override.Media.APIKey != "" {
		base.Media.APIKey = override.Media.APIKey
	}

	if override.Scraper.Endpoint != "" {
		base.Scraper.Endpoint = override.Scraper.Endpoint
	}
	if override.Scraper.APIKey != "" {
		base.Scraper.APIKey = override.Scraper.APIKey
	}

	if len(override.Workspaces) > 0 {
		base.Workspaces = override.Workspaces
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Queue: QueueConfig{
			Name:        "trendpress",
			Concurrency: 4,
			MaxAttempts: 3,
			BackoffBase: 5 * time.Second,
		},
		Poller: PollerConfig{Interval: 30 * time.Second},
		ChatGPT: ChatGPTConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
			Timeout:  30 * time.Second,
		},
	}
}

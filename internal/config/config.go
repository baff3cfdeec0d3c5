package config

import (
	"os"

	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/paracket/paracket/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Adapter   AdapterConfig   `yaml:"adapter"`
	Auth      AuthConfig      `yaml:"auth"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Logger    logger.Config   `yaml:"logger"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type StoreConfig struct {
	Dir string `yaml:"dir"`
	// LockStaleAfter is how old a leftover run lock may be before a new scan
	// takes it over, as a time.Duration string.
	LockStaleAfter string `yaml:"lock_stale_after"`
}

type SchedulerConfig struct {
	// Disabled turns off the in-process periodic scan, for deployments that
	// drive the scan command from external cron instead.
	Disabled       bool   `yaml:"disabled"`
	ScanInterval   string `yaml:"scan_interval"`
	PublishTimeout string `yaml:"publish_timeout"`
}

type AdapterConfig struct {
	OpenAIAPIKey string `yaml:"openai_api_key"`
	Model        string `yaml:"model"`
}

type AuthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TOTPSecret string `yaml:"totp_secret"`
}

// PlatformsConfig supplies per-platform credential fallbacks used when a
// scheduled post does not embed its own credentials.
type PlatformsConfig struct {
	Twitter  TwitterConfig  `yaml:"twitter"`
	Mastodon MastodonConfig `yaml:"mastodon"`
	Reddit   RedditConfig   `yaml:"reddit"`
}

type TwitterConfig struct {
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	AccessToken  string `yaml:"access_token"`
	AccessSecret string `yaml:"access_secret"`
}

type MastodonConfig struct {
	Instance    string `yaml:"instance"`
	AccessToken string `yaml:"access_token"`
}

type RedditConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := yamlenv.LoadConfig[Config](configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyDefaults(cfg)
	applyEnvFallbacks(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5872
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "data/scheduled_posts"
	}
	if cfg.Store.LockStaleAfter == "" {
		cfg.Store.LockStaleAfter = "10m"
	}
	if cfg.Scheduler.ScanInterval == "" {
		cfg.Scheduler.ScanInterval = "5m"
	}
	if cfg.Scheduler.PublishTimeout == "" {
		cfg.Scheduler.PublishTimeout = "30s"
	}
	if cfg.Adapter.Model == "" {
		cfg.Adapter.Model = "gpt-4o"
	}
}

// applyEnvFallbacks fills credential fields from the process environment so
// the scan command works under cron with no config file at all.
func applyEnvFallbacks(cfg *Config) {
	setIfEmpty(&cfg.Adapter.OpenAIAPIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.Platforms.Twitter.APIKey, "TWITTER_API_KEY")
	setIfEmpty(&cfg.Platforms.Twitter.APISecret, "TWITTER_API_SECRET")
	setIfEmpty(&cfg.Platforms.Twitter.AccessToken, "TWITTER_ACCESS_TOKEN")
	setIfEmpty(&cfg.Platforms.Twitter.AccessSecret, "TWITTER_ACCESS_SECRET")
	setIfEmpty(&cfg.Platforms.Mastodon.Instance, "MASTODON_INSTANCE")
	setIfEmpty(&cfg.Platforms.Mastodon.AccessToken, "MASTODON_ACCESS_TOKEN")
	setIfEmpty(&cfg.Platforms.Reddit.ClientID, "REDDIT_CLIENT_ID")
	setIfEmpty(&cfg.Platforms.Reddit.ClientSecret, "REDDIT_CLIENT_SECRET")
	setIfEmpty(&cfg.Platforms.Reddit.Username, "REDDIT_USERNAME")
	setIfEmpty(&cfg.Platforms.Reddit.Password, "REDDIT_PASSWORD")
}

func setIfEmpty(field *string, envKey string) {
	if *field == "" {
		*field = os.Getenv(envKey)
	}
}

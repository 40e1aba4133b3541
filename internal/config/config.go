package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	SteamAPIKey      string `mapstructure:"STEAM_API_KEY"`
	SteamAppListURL  string `mapstructure:"STEAM_APP_LIST_URL"`
	SteamStoreURL    string `mapstructure:"STEAM_STORE_URL"`
	SteamCountryCode string `mapstructure:"STEAM_COUNTRY_CODE"`
	SteamLanguage    string `mapstructure:"STEAM_LANGUAGE"`
	AppListPath      string `mapstructure:"APPLIST_PATH"`

	InstantGamingBaseURL string `mapstructure:"INSTANT_GAMING_BASE_URL"`

	CrawlUserAgent     string        `mapstructure:"CRAWL_USER_AGENT"`
	CrawlHTTPTimeout   time.Duration `mapstructure:"CRAWL_HTTP_TIMEOUT"`
	CrawlCooldown      time.Duration `mapstructure:"CRAWL_COOLDOWN"`
	CrawlFlushInterval int           `mapstructure:"CRAWL_FLUSH_INTERVAL"`
	CrawlWorkers       int           `mapstructure:"CRAWL_WORKERS"`
	CrawlQueueSize     int           `mapstructure:"CRAWL_QUEUE_SIZE"`
}

var AppConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STEAM_APP_LIST_URL", "https://api.steampowered.com/ISteamApps/GetAppList/v0002/")
	v.SetDefault("STEAM_STORE_URL", "https://store.steampowered.com")
	v.SetDefault("STEAM_LANGUAGE", "english")
	v.SetDefault("APPLIST_PATH", "applist.json")
	v.SetDefault("INSTANT_GAMING_BASE_URL", "https://www.instant-gaming.com/en/")
	v.SetDefault("CRAWL_USER_AGENT", "Mozilla/5.0 (compatible; GamesFinder/1.0)")
	v.SetDefault("CRAWL_HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("CRAWL_COOLDOWN", 5*time.Minute)
	v.SetDefault("CRAWL_FLUSH_INTERVAL", 200)
	v.SetDefault("CRAWL_WORKERS", 2)
	v.SetDefault("CRAWL_QUEUE_SIZE", 16)
}

// Load reads the configuration from a .env file in dir and the environment.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	setDefaults(v)

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	// AutomaticEnv only covers keys viper already knows about.
	for _, key := range []string{"DATABASE_URL", "JWT_SECRET", "STEAM_API_KEY", "STEAM_COUNTRY_CODE"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() {
	cfg, err := Load(".")
	if err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	AppConfig = cfg
}

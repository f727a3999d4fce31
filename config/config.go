package config

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Listen           string
	JWTSecret        string
	AutoSaveInterval time.Duration
	HistoryLimit     int
	RandomUserURL    string
	ChatBaseURL      string
	GitHub           OAuthConfig
	OIDC             OIDCConfig
	TextGen          TextGenConfig
	Weather          WeatherConfig
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type OIDCConfig struct {
	IssuerURL string
	OAuthConfig
}

type TextGenConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	QuoteURL string
}

type WeatherConfig struct {
	BaseURL  string
	APIKey   string
	Location string
	Interval time.Duration
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": v}).Warn("Invalid duration, using default")
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": v}).Warn("Invalid integer, using default")
		return fallback
	}
	return n
}

// Load reads the environment. Storage selection is read separately by
// stores.GetStore.
func Load(listen string) Config {
	cfg := Config{
		Listen:           listen,
		JWTSecret:        getEnv("JWT_SECRET", ""),
		AutoSaveInterval: getDuration("AUTOSAVE_INTERVAL", 30*time.Second),
		HistoryLimit:     getInt("HISTORY_LIMIT", 0),
		RandomUserURL:    getEnv("RANDOM_USER_URL", "https://randomuser.me/api/"),
		ChatBaseURL:      getEnv("CHAT_BASE_URL", "https://jsonplaceholder.typicode.com"),
		GitHub: OAuthConfig{
			ClientID:     getEnv("GITHUB_CLIENT_ID", ""),
			ClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GITHUB_REDIRECT_URL", ""),
		},
		OIDC: OIDCConfig{
			IssuerURL: getEnv("OIDC_ISSUER_URL", ""),
			OAuthConfig: OAuthConfig{
				ClientID:     getEnv("OIDC_CLIENT_ID", ""),
				ClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("OIDC_REDIRECT_URL", ""),
			},
		},
		TextGen: TextGenConfig{
			BaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
			APIKey:   getEnv("OPENAI_API_KEY", ""),
			Model:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			QuoteURL: getEnv("QUOTE_URL", "https://api.quotable.io/random"),
		},
		Weather: WeatherConfig{
			BaseURL:  getEnv("WEATHER_BASE_URL", "https://api.weatherapi.com/v1"),
			APIKey:   getEnv("WEATHER_API_KEY", ""),
			Location: getEnv("WEATHER_LOCATION", "India"),
			Interval: getDuration("WEATHER_INTERVAL", 5*time.Minute),
		},
	}

	if cfg.JWTSecret == "" {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}
	if cfg.TextGen.APIKey == "" {
		logrus.Warn("OPENAI_API_KEY is not set. Text generation will use fallbacks.")
	}
	if cfg.Weather.APIKey == "" {
		logrus.Warn("WEATHER_API_KEY is not set. Weather requests will fail.")
	}
	return cfg
}

func (c OAuthConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func (c OIDCConfig) Configured() bool {
	return c.IssuerURL != "" && c.ClientID != ""
}

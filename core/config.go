package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	APIConfig struct {
		BaseURL        string
		RequestTimeout time.Duration
	}

	CacheConfig struct {
		Driver   string // memory | redis | sqlite
		RedisURL string
		DBPath   string
		TTL      time.Duration
	}

	ServerConfig struct {
		Address                string
		SecretKey              string
		SessionExpirationDelta time.Duration
	}

	Config struct {
		Env             string
		Debug           bool
		TestMode        bool
		AppName         string
		Build           string
		FrontendBaseURL string
		SearchDebounce  time.Duration
		RollbarToken    string
		SendgridApiKey  string
		API             APIConfig
		Cache           CacheConfig
		Server          ServerConfig

		defaultFromEmail string
	}
)

// DefaultFromEmail parses the configured sender; an unparsable value falls back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

// LoadConfig reads the configuration from the environment.
// ENV selects DEV (default), TEST, QA or PROD; config/.env.<env> is loaded first if it exists.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Admissions")
	v.SetDefault("build", "dev")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("searchDebounce", 500*time.Millisecond)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Admissions <noreply@localhost>")
	v.SetDefault("api.baseURL", "http://localhost:8000")
	v.SetDefault("api.requestTimeout", 15*time.Second)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redisURL", "")
	v.SetDefault("cache.dbPath", "admissions-cache.db")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.secretKey", "kz1-9vq)rm$+c2=ox&wadm(l!x)#*p4(#tg7h^$uehn5emq")
	v.SetDefault("server.sessionExpirationDelta", 12*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		SearchDebounce:   v.GetDuration("searchDebounce"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		API: APIConfig{
			BaseURL:        strings.TrimRight(v.GetString("api.baseURL"), "/"),
			RequestTimeout: v.GetDuration("api.requestTimeout"),
		},
		Cache: CacheConfig{
			Driver:   strings.ToLower(v.GetString("cache.driver")),
			RedisURL: v.GetString("cache.redisURL"),
			DBPath:   v.GetString("cache.dbPath"),
			TTL:      v.GetDuration("cache.ttl"),
		},
		Server: ServerConfig{
			Address:                v.GetString("server.address"),
			SecretKey:              v.GetString("server.secretKey"),
			SessionExpirationDelta: v.GetDuration("server.sessionExpirationDelta"),
		},
	}
	return conf, nil
}

// configDir is ADMISSIONS_CONFIG_DIR if set, ./config otherwise.
func configDir() string {
	if dir := os.Getenv("ADMISSIONS_CONFIG_DIR"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "config"
	}
	return filepath.Join(wd, "config")
}

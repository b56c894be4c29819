package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"required,oneof=trace debug info warn warning error fatal panic"`

	// Cache.
	CacheTTL       time.Duration `validate:"gt=0"`
	StaleRetention time.Duration `validate:"gte=0"`
	ServeStale     bool

	// RefreshMinInterval throttles forced refreshes of a fresh snapshot.
	RefreshMinInterval time.Duration `validate:"gte=0"`

	// Fill pipeline.
	FetchTimeout     time.Duration `validate:"gt=0"`
	FetchRetries     int           `validate:"gte=0,lte=10"`
	RetryInterval    time.Duration `validate:"gt=0"`
	RetryMaxInterval time.Duration `validate:"gtefield=RetryInterval"`
	JoinStrategy     string        `validate:"oneof=keyed positional"`

	// HTTPTimeout bounds every outbound provider request.
	HTTPTimeout time.Duration `validate:"gt=0"`

	// WarmInterval refreshes the cache in the background; 0 disables it.
	WarmInterval time.Duration `validate:"gte=0"`

	// Redis snapshot store; empty address keeps snapshots in memory.
	RedisAddr string `validate:"omitempty,hostname_port"`
	RedisDB   int    `validate:"gte=0"`

	JHUBaseURL string `validate:"omitempty,url"`
	RKIBaseURL string `validate:"omitempty,url"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("stale.retention", "24h")
	v.SetDefault("serve.stale", false)
	v.SetDefault("refresh.min.interval", "1m")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.retries", 2)
	v.SetDefault("retry.interval", "500ms")
	v.SetDefault("retry.max.interval", "5s")
	v.SetDefault("join.strategy", "keyed")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("warm.interval", "0s")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jhu.base.url", "")
	v.SetDefault("rki.base.url", "")
}

// Load reads configuration from an optional YAML file and the environment
// (CACHE_TTL overrides cache.ttl). An empty file path only searches the
// working directory for config.yaml.
func Load(file string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.WithField("prefix", "config").Debugf("no .env file loaded: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		log.WithField("prefix", "config").Debug("no config file, reading environment only")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &AppConfig{
		Port:         v.GetString("port"),
		LogLevel:     strings.ToLower(v.GetString("log.level")),
		ServeStale:   v.GetBool("serve.stale"),
		FetchRetries: v.GetInt("fetch.retries"),
		JoinStrategy: strings.ToLower(v.GetString("join.strategy")),
		RedisAddr:    v.GetString("redis.addr"),
		RedisDB:      v.GetInt("redis.db"),
		JHUBaseURL:   v.GetString("jhu.base.url"),
		RKIBaseURL:   v.GetString("rki.base.url"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"cache.ttl", &cfg.CacheTTL},
		{"stale.retention", &cfg.StaleRetention},
		{"refresh.min.interval", &cfg.RefreshMinInterval},
		{"fetch.timeout", &cfg.FetchTimeout},
		{"retry.interval", &cfg.RetryInterval},
		{"retry.max.interval", &cfg.RetryMaxInterval},
		{"http.timeout", &cfg.HTTPTimeout},
		{"warm.interval", &cfg.WarmInterval},
	}
	for _, d := range durations {
		val, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envName(d.key), err)
		}
		*d.dst = val
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout    time.Duration `koanf:"read_timeout"`
		WriteTimeout   time.Duration `koanf:"write_timeout"`
		IdleTimeout    time.Duration `koanf:"idle_timeout"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
	} `koanf:"http"`

	GRPC struct {
		Addr string `koanf:"addr"`
	} `koanf:"grpc"`

	Storage struct {
		Driver string `koanf:"driver"` // memory | mysql
	} `koanf:"storage"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
		Migrate         bool          `koanf:"migrate"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Intent struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"intent"`

	Rabbit struct {
		Enabled    bool   `koanf:"enabled"`
		URL        string `koanf:"url"`
		Exchange   string `koanf:"exchange"`
		Queue      string `koanf:"queue"`
		RoutingKey string `koanf:"routing_key"`
		Prefetch   int    `koanf:"prefetch"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Enabled      bool     `koanf:"enabled"`
		Brokers      []string `koanf:"brokers"`
		GroupID      string   `koanf:"group_id"`
		TopicCourier string   `koanf:"topic_courier"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	Gateway struct {
		SaltKey     string `koanf:"salt_key"`
		SaltIndex   string `koanf:"salt_index"`
		RedirectURL string `koanf:"redirect_url"`
		Currency    string `koanf:"currency"`
	} `koanf:"gateway"`

	Provider struct {
		BaseURL      string        `koanf:"base_url"`
		ClientID     string        `koanf:"client_id"`
		ClientSecret string        `koanf:"client_secret"`
		Timeout      time.Duration `koanf:"timeout"`
		MaxFailures  uint32        `koanf:"max_failures"`
		OpenTimeout  time.Duration `koanf:"open_timeout"`
	} `koanf:"provider"`

	Mail struct {
		Host     string `koanf:"host"`
		Port     int    `koanf:"port"`
		Username string `koanf:"username"`
		Password string `koanf:"password"`
		From     string        `koanf:"from"`
		Timeout  time.Duration `koanf:"timeout"`
	} `koanf:"mail"`

	Reconciler struct {
		Interval time.Duration `koanf:"interval"`
		Grace    time.Duration `koanf:"grace"`
		Batch    int           `koanf:"batch"`
	} `koanf:"reconciler"`

	Otel struct {
		Endpoint       string  `koanf:"endpoint"`
		URLPath        string  `koanf:"url_path"`
		Insecure       bool    `koanf:"insecure"`
		ServiceVersion string  `koanf:"service_version"`
		SampleRatio    float64 `koanf:"sample_ratio"`
	} `koanf:"otel"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix BOOKSTORE_, nested with __)
	// e.g. BOOKSTORE_MYSQL__DSN, BOOKSTORE_GATEWAY__SALT_KEY
	if err := k.Load(env.Provider("BOOKSTORE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "BOOKSTORE_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	switch c.Storage.Driver {
	case "memory":
	case "mysql":
		if c.MySQL.DSN == "" {
			return fmt.Errorf("mysql.dsn required")
		}
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr required")
		}
	default:
		return fmt.Errorf("storage.driver must be memory or mysql, got %q", c.Storage.Driver)
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret required")
	}
	if c.Gateway.SaltKey == "" || c.Gateway.SaltIndex == "" {
		return fmt.Errorf("gateway.salt_key and gateway.salt_index required")
	}
	if c.Rabbit.Enabled && c.Rabbit.URL == "" {
		return fmt.Errorf("rabbitmq.url required when enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when enabled")
	}
	return nil
}

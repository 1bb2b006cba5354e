package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverKafka  = "kafka"
	DriverRedis  = "redis"
)

type AppCfg struct {
	Env             string `mapstructure:"env"`
	Port            int    `mapstructure:"port"`
	ShutdownSeconds int    `mapstructure:"shutdown_seconds"`
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min"`
}

func (a *AppCfg) PortString() string { return fmt.Sprintf("%d", a.Port) }

func (a *AppCfg) Development() bool { return a.Env == "development" }

type LogCfg struct {
	Level string `mapstructure:"level"`
}

type BackendCfg struct {
	Driver string `mapstructure:"driver"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type FeedCfg struct {
	Driver string `mapstructure:"driver"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
	Channel  string `mapstructure:"channel"`
}

type S3Cfg struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type JwtCfg struct {
	Secret   string `mapstructure:"secret"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

type SessionCfg struct {
	Dir string `mapstructure:"dir"`
}

type ChatCfg struct {
	AutoOpen    bool  `mapstructure:"auto_open"`
	SearchLimit int64 `mapstructure:"search_limit"`
}

type Config struct {
	App     AppCfg     `mapstructure:"app"`
	Log     LogCfg     `mapstructure:"log"`
	Backend BackendCfg `mapstructure:"backend"`
	Mongo   MongoCfg   `mapstructure:"mongo"`
	Feed    FeedCfg    `mapstructure:"feed"`
	Kafka   KafkaCfg   `mapstructure:"kafka"`
	Redis   RedisCfg   `mapstructure:"redis"`
	S3      S3Cfg      `mapstructure:"s3"`
	JWT     JwtCfg     `mapstructure:"jwt"`
	Session SessionCfg `mapstructure:"session"`
	Chat    ChatCfg    `mapstructure:"chat"`

	// Derived
	ShutdownTimeout time.Duration `mapstructure:"-"`
	TokenTTL        time.Duration `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.shutdown_seconds", 10)
	v.SetDefault("app.rate_limit_per_min", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("backend.driver", DriverMemory)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chat")
	v.SetDefault("feed.driver", DriverMemory)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "chat.messages")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "chat")
	v.SetDefault("redis.channel", "chat:messages")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.public_base_url", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl_hours", 24*7)
	v.SetDefault("session.dir", ".chat-session")
	v.SetDefault("chat.auto_open", true)
	v.SetDefault("chat.search_limit", 20)
}

// Load reads configuration from path (or ./config.yaml, ./config/config.yaml when path is
// empty), a .env file and CHAT_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CHAT")
	// CHAT_APP_PORT overrides app.port
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.App.ShutdownSeconds <= 0 {
		cfg.App.ShutdownSeconds = 10
	}
	if cfg.JWT.TTLHours <= 0 {
		cfg.JWT.TTLHours = 24 * 7
	}
	if cfg.Chat.SearchLimit <= 0 {
		cfg.Chat.SearchLimit = 20
	}
	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSeconds) * time.Second
	cfg.TokenTTL = time.Duration(cfg.JWT.TTLHours) * time.Hour

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.App.Port <= 0 {
		return errors.New("app.port missing or invalid")
	}
	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret missing")
	}
	if cfg.Session.Dir == "" {
		return errors.New("session.dir missing")
	}

	switch cfg.Backend.Driver {
	case DriverMemory:
	case DriverMongo:
		if cfg.Mongo.URI == "" || cfg.Mongo.Database == "" {
			return errors.New("mongo.uri and mongo.database required for mongo backend")
		}
	default:
		return fmt.Errorf("invalid backend.driver %q (use memory or mongo)", cfg.Backend.Driver)
	}

	switch cfg.Feed.Driver {
	case DriverMemory:
		if cfg.Backend.Driver != DriverMemory {
			return errors.New("memory feed requires the memory backend")
		}
	case DriverMongo:
		if cfg.Backend.Driver != DriverMongo {
			return errors.New("mongo feed requires the mongo backend")
		}
	case DriverKafka:
		if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
			return errors.New("kafka.brokers and kafka.topic required for kafka feed")
		}
	case DriverRedis:
		if cfg.Redis.Addr == "" || cfg.Redis.Channel == "" {
			return errors.New("redis.addr and redis.channel required for redis feed")
		}
	default:
		return fmt.Errorf("invalid feed.driver %q", cfg.Feed.Driver)
	}
	if cfg.Feed.Driver != DriverMemory && cfg.Feed.Driver != DriverMongo && cfg.Backend.Driver == DriverMemory {
		return errors.New("kafka and redis feeds require the mongo backend")
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	pkgconfig "github.com/weiawesome/wes-io-chat/pkg/config"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	History   HistoryConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Archive   ArchiveConfig
	Log       log.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	Path           string
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type HistoryConfig struct {
	Driver      string        // redis, memory
	MaxMessages int           `mapstructure:"max_messages"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	OpTimeout   time.Duration `mapstructure:"op_timeout"`
}

type RedisConfig struct {
	URL          string
	Address      string
	Password     string
	DB           int
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string
	Leeway    time.Duration
}

type ArchiveConfig struct {
	Driver string // none, kafka
	Kafka  KafkaConfig
}

type KafkaConfig struct {
	Brokers    string
	Topic      string
	Partitions int
}

var (
	ErrInvalidHistoryBound = errors.New("history.max_messages must be at least 1")
	ErrMissingJWTSecret    = errors.New("auth.jwt_secret is required")
)

// Load reads ./config/config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper applies defaults and env bindings to v and decodes the result.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if err := pkgconfig.BindEnvs(v, map[string][]string{
		"server.port":              {"CHAT_PORT", "PORT"},
		"redis.url":                {"REDIS_URL"},
		"redis.address":            {"REDIS_ADDRESS"},
		"redis.password":           {"REDIS_PASSWORD"},
		"auth.jwt_secret":          {"JWT_ACCESS_SECRET"},
		"auth.issuer":              {"JWT_ISSUER"},
		"history.driver":           {"HISTORY_DRIVER"},
		"history.max_messages":     {"HISTORY_MAX"},
		"archive.driver":           {"ARCHIVE_DRIVER"},
		"archive.kafka.brokers":    {"KAFKA_BROKERS"},
		"archive.kafka.topic":      {"KAFKA_TOPIC"},
		"archive.kafka.partitions": {"KAFKA_PARTITIONS"},
		"log.level":                {"LOG_LEVEL"},
	}); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Server.ReadTimeout = pkgconfig.Duration(v, "server.read_timeout", 15*time.Second)
	cfg.Server.WriteTimeout = pkgconfig.Duration(v, "server.write_timeout", 15*time.Second)
	cfg.Server.IdleTimeout = pkgconfig.Duration(v, "server.idle_timeout", 60*time.Second)
	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.History.OpTimeout = pkgconfig.Duration(v, "history.op_timeout", 2*time.Second)
	cfg.Redis.ReadTimeout = pkgconfig.Duration(v, "redis.read_timeout", 3*time.Second)
	cfg.Redis.WriteTimeout = pkgconfig.Duration(v, "redis.write_timeout", 3*time.Second)
	cfg.Auth.Leeway = pkgconfig.Duration(v, "auth.leeway", 0)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4001)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("websocket.path", "/")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.allowed_origins", []string{})
	v.SetDefault("history.driver", "redis")
	v.SetDefault("history.max_messages", 50)
	v.SetDefault("history.key_prefix", "room")
	v.SetDefault("history.op_timeout", "2s")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.leeway", "0s")
	v.SetDefault("archive.driver", "none")
	v.SetDefault("archive.kafka.brokers", "localhost:9092")
	v.SetDefault("archive.kafka.topic", "chat-messages")
	v.SetDefault("archive.kafka.partitions", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "chat-service")
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.History.MaxMessages < 1 {
		return ErrInvalidHistoryBound
	}
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.WebSocket.SendBuffer < 1 {
		c.WebSocket.SendBuffer = 1
	}
	switch c.History.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported history driver: %s", c.History.Driver)
	}
	switch c.Archive.Driver {
	case "", "none", "kafka":
	default:
		return fmt.Errorf("unsupported archive driver: %s", c.Archive.Driver)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

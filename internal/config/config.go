package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Engine    EngineConfig    `mapstructure:"engine"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
	// heartbeat endpoints are limited separately, clients send them every few seconds
	HeartbeatPerMinute int `mapstructure:"heartbeat_per_minute"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// CurveStep maps accuracies at or above MinAccuracy to Multiplier.
type CurveStep struct {
	MinAccuracy float64 `mapstructure:"min_accuracy"`
	Multiplier  float64 `mapstructure:"multiplier"`
}

// EngineConfig holds the scoring and locking knobs of the finalization engine.
// It is the only section that is hot reloaded.
type EngineConfig struct {
	FirstAttemptBonus     float64     `mapstructure:"first_attempt_bonus"`
	RetryDecay            float64     `mapstructure:"retry_decay"`
	MinSecondsPerQuestion float64     `mapstructure:"min_seconds_per_question"`
	RushPenaltyFactor     float64     `mapstructure:"rush_penalty_factor"`
	AccuracyCurve         []CurveStep `mapstructure:"accuracy_curve"`

	LockTTLSeconds int `mapstructure:"lock_ttl_seconds"`
	LockWaitMillis int `mapstructure:"lock_wait_millis"`

	ClampSlackSeconds   float64 `mapstructure:"clamp_slack_seconds"`
	MaxHeartbeatSeconds float64 `mapstructure:"max_heartbeat_seconds"`

	AttemptTTLHours       int `mapstructure:"attempt_ttl_hours"`
	ReadTimeRetentionDays int `mapstructure:"read_time_retention_days"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FirstAttemptBonus:     1.25,
		RetryDecay:            0.5,
		MinSecondsPerQuestion: 3,
		RushPenaltyFactor:     0,
		LockTTLSeconds:        30,
		LockWaitMillis:        2000,
		ClampSlackSeconds:     5,
		MaxHeartbeatSeconds:   30,
		AttemptTTLHours:       72,
		ReadTimeRetentionDays: 180,
	}
}

func (e EngineConfig) LockTTL() time.Duration {
	return time.Duration(e.LockTTLSeconds) * time.Second
}

func (e EngineConfig) LockWait() time.Duration {
	return time.Duration(e.LockWaitMillis) * time.Millisecond
}

func (e EngineConfig) AttemptTTL() time.Duration {
	return time.Duration(e.AttemptTTLHours) * time.Hour
}

func (e EngineConfig) ReadTimeRetention() time.Duration {
	return time.Duration(e.ReadTimeRetentionDays) * 24 * time.Hour
}

// Validate rejects tuning that would break the scoring contract.
func (e EngineConfig) Validate() error {
	if e.FirstAttemptBonus < 1 {
		return fmt.Errorf("engine.first_attempt_bonus must be >= 1, got %v", e.FirstAttemptBonus)
	}
	if e.RetryDecay <= 0 || e.RetryDecay > 1 {
		return fmt.Errorf("engine.retry_decay must be in (0,1], got %v", e.RetryDecay)
	}
	if e.RushPenaltyFactor < 0 || e.RushPenaltyFactor > 1 {
		return fmt.Errorf("engine.rush_penalty_factor must be in [0,1], got %v", e.RushPenaltyFactor)
	}
	if e.LockTTLSeconds <= 0 || e.LockWaitMillis < 0 {
		return fmt.Errorf("engine lock settings must be positive")
	}
	for _, s := range e.AccuracyCurve {
		if s.MinAccuracy < 0 || s.MinAccuracy > 1 || s.Multiplier < 0 {
			return fmt.Errorf("engine.accuracy_curve step %+v out of range", s)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultEngineConfig()
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("rabbitmq.exchange", "analytics.events")
	v.SetDefault("rate_limit.max_requests", 100000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("rate_limit.heartbeat_per_minute", 120)
	v.SetDefault("engine.first_attempt_bonus", d.FirstAttemptBonus)
	v.SetDefault("engine.retry_decay", d.RetryDecay)
	v.SetDefault("engine.min_seconds_per_question", d.MinSecondsPerQuestion)
	v.SetDefault("engine.rush_penalty_factor", d.RushPenaltyFactor)
	v.SetDefault("engine.lock_ttl_seconds", d.LockTTLSeconds)
	v.SetDefault("engine.lock_wait_millis", d.LockWaitMillis)
	v.SetDefault("engine.clamp_slack_seconds", d.ClampSlackSeconds)
	v.SetDefault("engine.max_heartbeat_seconds", d.MaxHeartbeatSeconds)
	v.SetDefault("engine.attempt_ttl_hours", d.AttemptTTLHours)
	v.SetDefault("engine.read_time_retention_days", d.ReadTimeRetentionDays)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("XP_ENGINE")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// RabbitMQ
	v.BindEnv("rabbitmq.url", "RABBITMQ_URL")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

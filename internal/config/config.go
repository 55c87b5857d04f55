package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDb   int    `env:"REDIS_DB"   envDefault:"0"      validate:"min=0,max=15"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"chat_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"chat_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"chat_db"`

	JwtSecret  string        `env:"JWT_SECRET"  envDefault:"mysecretkey" validate:"required"`
	JwtTTL     time.Duration `env:"JWT_TTL"     envDefault:"60m"         validate:"gt=0"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"12"          validate:"min=4,max=31"`

	WsWriteWait      time.Duration `env:"WS_WRITE_WAIT"      envDefault:"10s" validate:"gt=0"`
	WsPongWait       time.Duration `env:"WS_PONG_WAIT"       envDefault:"60s" validate:"gt=0"`
	WsPingPeriod     time.Duration `env:"WS_PING_PERIOD"     envDefault:"54s" validate:"gt=0,ltfield=WsPongWait"`
	WsReadLimit      int64         `env:"WS_READ_LIMIT"      envDefault:"512" validate:"min=1"`
	WsAllowedOrigins []string      `env:"WS_ALLOWED_ORIGINS" envSeparator:","`

	MembershipCacheTTL time.Duration `env:"MEMBERSHIP_CACHE_TTL" envDefault:"5m" validate:"gte=0"`
	SendRateLimit      int           `env:"SEND_RATE_LIMIT"      envDefault:"20" validate:"min=0"`
	SendRateWindow     time.Duration `env:"SEND_RATE_WINDOW"     envDefault:"10s" validate:"gt=0"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}

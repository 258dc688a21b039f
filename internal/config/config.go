package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken string      `yaml:"discord_token"`
	DatabasePath string      `yaml:"database_path"`
	LogLevel     string      `yaml:"log_level"`
	OwnerID      string      `yaml:"owner_id"`
	Games        GamesConfig `yaml:"games"`
	EmbedColors  EmbedColors `yaml:"embed_colors"`
}

type GamesConfig struct {
	SignupMinimum    int `yaml:"signup_minimum"`
	SignupMaximum    int `yaml:"signup_maximum"`
	EditDelaySeconds int `yaml:"edit_delay_seconds"`
}

type EmbedColors struct {
	Action int `yaml:"action"`
	Error  int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "data/xenonbot.db",
		LogLevel:     "info",
		Games: GamesConfig{
			SignupMinimum:    2,
			SignupMaximum:    50,
			EditDelaySeconds: 3,
		},
		EmbedColors: EmbedColors{
			Action: 0x3498DB,
			Error:  0xEF4444,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.OwnerID = envString("OWNER_ID", cfg.OwnerID)
	cfg.Games.SignupMinimum = envInt("GAMES_SIGNUP_MINIMUM", cfg.Games.SignupMinimum)
	cfg.Games.SignupMaximum = envInt("GAMES_SIGNUP_MAXIMUM", cfg.Games.SignupMaximum)
	cfg.Games.EditDelaySeconds = envInt("GAMES_EDIT_DELAY_SECONDS", cfg.Games.EditDelaySeconds)
	cfg.EmbedColors.Action = envInt("EMBED_COLOR_ACTION", cfg.EmbedColors.Action)
	cfg.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.EmbedColors.Error)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Redis   RedisConfig
	CORS    CORSConfig
	Log     LogConfig
	Exam    ExamConfig
	Archive ArchiveConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ExamConfig tunes the exam scheduling and allocation engine.
type ExamConfig struct {
	// MorningStart/MorningEnd and AfternoonStart/AfternoonEnd define the two
	// fixed daily exam windows used to build the slot pool.
	MorningStart   string
	MorningEnd     string
	AfternoonStart string
	AfternoonEnd   string

	// RoomPool is the round-robin list of room codes used by the allocation
	// simulator.
	RoomPool []string

	// AllocationDelay is how long the deferred allocation pass waits after a
	// run before firing. Tunable, not a protocol guarantee.
	AllocationDelay time.Duration

	// CapacityMin/CapacityMax clamp room capacity requests.
	CapacityMin int
	CapacityMax int

	// RunCacheTTL bounds how long run summaries stay in the cache.
	RunCacheTTL time.Duration
}

// ArchiveConfig tunes the background export archive.
type ArchiveConfig struct {
	// ExportDir is where rendered exports are persisted.
	ExportDir string

	// SignSecret signs download tokens. Must be overridden outside dev.
	SignSecret string

	// SignedURLTTL bounds how long a download token stays valid.
	SignedURLTTL time.Duration

	// Workers sizes the render worker pool.
	Workers int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Exam = ExamConfig{
		MorningStart:    v.GetString("EXAM_MORNING_START"),
		MorningEnd:      v.GetString("EXAM_MORNING_END"),
		AfternoonStart:  v.GetString("EXAM_AFTERNOON_START"),
		AfternoonEnd:    v.GetString("EXAM_AFTERNOON_END"),
		RoomPool:        splitAndTrim(v.GetString("EXAM_ROOM_POOL")),
		AllocationDelay: parseDuration(v.GetString("EXAM_ALLOCATION_DELAY"), 1200*time.Millisecond),
		CapacityMin:     v.GetInt("EXAM_CAPACITY_MIN"),
		CapacityMax:     v.GetInt("EXAM_CAPACITY_MAX"),
		RunCacheTTL:     parseDuration(v.GetString("EXAM_RUN_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Archive = ArchiveConfig{
		ExportDir:    v.GetString("ARCHIVE_EXPORT_DIR"),
		SignSecret:   v.GetString("ARCHIVE_SIGN_SECRET"),
		SignedURLTTL: parseDuration(v.GetString("ARCHIVE_URL_TTL"), 24*time.Hour),
		Workers:      v.GetInt("ARCHIVE_WORKERS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EXAM_MORNING_START", "09:30")
	v.SetDefault("EXAM_MORNING_END", "12:30")
	v.SetDefault("EXAM_AFTERNOON_START", "13:30")
	v.SetDefault("EXAM_AFTERNOON_END", "16:30")
	v.SetDefault("EXAM_ROOM_POOL", "A-101,A-102,A-201,B-103,B-202,C-105,C-206,D-110,D-210")
	v.SetDefault("EXAM_ALLOCATION_DELAY", "1200ms")
	v.SetDefault("EXAM_CAPACITY_MIN", 30)
	v.SetDefault("EXAM_CAPACITY_MAX", 140)
	v.SetDefault("EXAM_RUN_CACHE_TTL", "10m")

	v.SetDefault("ARCHIVE_EXPORT_DIR", "./exports")
	v.SetDefault("ARCHIVE_SIGN_SECRET", "dev-archive-secret")
	v.SetDefault("ARCHIVE_URL_TTL", "24h")
	v.SetDefault("ARCHIVE_WORKERS", 2)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

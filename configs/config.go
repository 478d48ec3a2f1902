package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/postpilot/dispatch/internal/guardrail"
	"github.com/postpilot/dispatch/internal/platform"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Config struct {
	Port        string
	PostgresURI string
	RedisURI    string
	SecretKey   string
	R2          R2

	DryRun bool

	PostingTimezone    string
	PostingWindowStart int
	PostingWindowEnd   int
	DefaultDailyLimit  int
	DailyLimits        map[platform.Platform]int

	DefaultRateBudget int
	RateBudgets       map[platform.Platform]int

	BannedWords []string
	BannedTags  []string
	RiskLevel   guardrail.RiskLevel

	TickInterval time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Port:        getEnv("PORT", "3000"),
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", ""),
		SecretKey:   getEnv("SECRET_KEY", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		DryRun:             getEnvBool("DRY_RUN", false),
		PostingTimezone:    getEnv("POSTING_TIMEZONE", "UTC"),
		PostingWindowStart: getEnvInt("POSTING_WINDOW_START", 9),
		PostingWindowEnd:   getEnvInt("POSTING_WINDOW_END", 22),
		DefaultDailyLimit:  getEnvInt("DAILY_LIMIT_DEFAULT", 10),
		DailyLimits:        perPlatformInts("DAILY_LIMIT_"),
		DefaultRateBudget:  getEnvInt("RATE_LIMIT_DEFAULT", 30),
		RateBudgets:        perPlatformInts("RATE_LIMIT_"),
		BannedWords:        getEnvList("BANNED_WORDS", nil),
		BannedTags:         getEnvList("BANNED_TAGS", nil),
		RiskLevel:          guardrail.RiskLevel(getEnv("RISK_LEVEL", string(guardrail.RiskNormal))),
		TickInterval:       getEnvDuration("TICK_INTERVAL", time.Minute),
	}
}

// perPlatformInts reads <prefix><PLATFORM> overrides, e.g. DAILY_LIMIT_TELEGRAM.
func perPlatformInts(prefix string) map[platform.Platform]int {
	out := make(map[platform.Platform]int)
	for _, p := range platform.All() {
		key := prefix + strings.ToUpper(string(p))
		if v := os.Getenv(key); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				out[p] = i
			}
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

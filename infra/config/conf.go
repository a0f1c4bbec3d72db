package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every variable the gateway reads
const EnvPrefix = "UPIPAY_"

// AppConfig represents the application configuration
type AppConfig struct {
	Provider       string
	Environment    string
	WebhookURL     string
	BaseURL        string
	HTTPTimeout    time.Duration
	EnableBreaker  bool
	BreakerTimeout time.Duration
	LoggingLevel   string
	LogJSON        bool
	EnableLogging  bool
	OpenSearchURL  string
	OpenSearchUser string
	OpenSearchPass string
	OpenSearchIdx  string
}

var (
	appConfigInstance *AppConfig
	appConfigMu       sync.Mutex
)

// LoadEnvFile loads a .env file if present. A missing file is not an error.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// GetAppConfig returns the application configuration
func GetAppConfig() *AppConfig {
	appConfigMu.Lock()
	defer appConfigMu.Unlock()

	if appConfigInstance == nil {
		appConfigInstance = &AppConfig{
			Provider:       GetEnv(EnvPrefix+"PROVIDER", ""),
			Environment:    GetEnv(EnvPrefix+"ENVIRONMENT", "sandbox"),
			WebhookURL:     GetEnv(EnvPrefix+"WEBHOOK_URL", ""),
			BaseURL:        GetEnv(EnvPrefix+"BASE_URL", ""),
			HTTPTimeout:    GetDurationEnv(EnvPrefix+"HTTP_TIMEOUT", 30*time.Second),
			EnableBreaker:  GetBoolEnv(EnvPrefix+"ENABLE_BREAKER", false),
			BreakerTimeout: GetDurationEnv(EnvPrefix+"BREAKER_TIMEOUT", 30*time.Second),
			LoggingLevel:   GetEnv(EnvPrefix+"LOGGING_LEVEL", "info"),
			LogJSON:        GetBoolEnv(EnvPrefix+"LOG_JSON", false),
			EnableLogging:  GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
			OpenSearchURL:  GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser: GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass: GetEnv("OPENSEARCH_PASSWORD", ""),
			OpenSearchIdx:  GetEnv("OPENSEARCH_INDEX", "upipay-system-logs"),
		}
	}
	return appConfigInstance
}

// ResetAppConfig drops the cached configuration so the next call re-reads the environment
func ResetAppConfig() {
	appConfigMu.Lock()
	appConfigInstance = nil
	appConfigMu.Unlock()
}

// LoadCredentials reads UPIPAY_<PROVIDER>_<FIELD> variables for the given
// credential keys. Keys that are unset are left out of the result.
func LoadCredentials(provider string, keys []string) map[string]string {
	creds := make(map[string]string, len(keys))
	for _, key := range keys {
		if value := os.Getenv(CredentialEnvKey(provider, key)); value != "" {
			creds[key] = value
		}
	}
	return creds
}

// CredentialEnvKey maps ("razorpay", "keySecret") to UPIPAY_RAZORPAY_KEY_SECRET
func CredentialEnvKey(provider, key string) string {
	var b strings.Builder
	var prev rune
	for i, r := range key {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(prev) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
		prev = r
	}
	return EnvPrefix + strings.ToUpper(provider) + "_" + b.String()
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetDurationEnv accepts Go durations ("15s") or plain seconds ("15")
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	RedisURL string

	KafkaBrokers []string
	KafkaTopic   string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	// BlacklistMargin is added on top of JWTExpiry when blacklisting a
	// revoked session, so the cache entry outlives every token bound to it.
	BlacklistMargin time.Duration

	SessionExpiry time.Duration
	OtpExpiry     time.Duration

	MaxFailedLogins int
	LockoutDuration time.Duration
	MaxOtpAttempts  int

	// AllowUnlinkLastCredential permits removing an account's last remaining
	// way to sign in. Off means the unlink is refused when it would strand
	// the account.
	AllowUnlinkLastCredential bool

	GoogleClientID string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts       string
	Sessions       string
	Otps           string
	ExternalLogins string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Accounts:       getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			Sessions:       getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Otps:           getEnv("DYNAMO_TABLE_OTPS", "account_otps"),
			ExternalLogins: getEnv("DYNAMO_TABLE_EXTERNAL_LOGINS", "external_logins"),
		},

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "account-events"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvMinutes("JWT_EXPIRY_MINUTES", 60),
		BlacklistMargin:   getEnvMinutes("BLACKLIST_MARGIN_MINUTES", 5),

		SessionExpiry: getEnvMinutes("SESSION_EXPIRY_MINUTES", 7*24*60),
		OtpExpiry:     getEnvMinutes("OTP_EXPIRY_MINUTES", 15),

		MaxFailedLogins: getEnvInt("MAX_FAILED_LOGINS", 5),
		LockoutDuration: getEnvMinutes("LOCKOUT_MINUTES", 15),
		MaxOtpAttempts:  getEnvInt("MAX_OTP_ATTEMPTS", 5),

		AllowUnlinkLastCredential: getEnvBool("ALLOW_UNLINK_LAST_CREDENTIAL", true),

		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvMinutes(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Minute
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

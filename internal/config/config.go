package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	DynamoDB DynamoDBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	OTP      OTPConfig
	Quota    QuotaConfig
	SMS      SMSConfig
	Google   GoogleConfig
	S3       S3Config
	Payment  PaymentConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

type LogConfig struct {
	Level string
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type OTPConfig struct {
	Length           int
	Expiry           time.Duration
	MaxAttempts      int
	RateLimitMax     int
	RateLimitWindow  time.Duration
	Cooldown         time.Duration
	SweepInterval    time.Duration
	CountryCode      string
	SubscriberDigits int
	AllowLeadingZero bool
}

type QuotaConfig struct {
	FreeContactViews    int
	FreeListings        int
	PremiumContactViews int
	PremiumListings     int
}

type SMSConfig struct {
	Endpoint string
	APIKey   string
	SenderID string
	Timeout  time.Duration
}

type GoogleConfig struct {
	ClientID     string
	TokenInfoURL string
	Timeout      time.Duration
}

type S3Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	AccessKeyID    string
	SecretKey      string
	Prefix         string
	PublicURL      string
	MaxUploadBytes int64
	MaxFiles       int
}

type PaymentConfig struct {
	BaseURL      string
	KeyID        string
	KeySecret    string
	PremiumPrice int64
	Currency     string
	Timeout      time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			CORSOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "ap-south-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "RentNest"),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SecretKey:     getEnv("JWT_SECRET_KEY", ""),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		OTP: OTPConfig{
			Length:           getEnvAsInt("OTP_LENGTH", 6),
			Expiry:           getEnvAsDuration("OTP_EXPIRY", 10*time.Minute),
			MaxAttempts:      getEnvAsInt("OTP_MAX_ATTEMPTS", 3),
			RateLimitMax:     getEnvAsInt("OTP_RATE_LIMIT_MAX", 5),
			RateLimitWindow:  getEnvAsDuration("OTP_RATE_LIMIT_WINDOW", time.Hour),
			Cooldown:         getEnvAsDuration("OTP_RESEND_COOLDOWN", time.Minute),
			SweepInterval:    getEnvAsDuration("OTP_SWEEP_INTERVAL", 5*time.Minute),
			CountryCode:      getEnv("OTP_COUNTRY_CODE", "+91"),
			SubscriberDigits: getEnvAsInt("OTP_SUBSCRIBER_DIGITS", 10),
			AllowLeadingZero: getEnvAsBool("OTP_ALLOW_LEADING_ZERO", false),
		},
		Quota: QuotaConfig{
			FreeContactViews:    getEnvAsInt("QUOTA_FREE_CONTACT_VIEWS", 1),
			FreeListings:        getEnvAsInt("QUOTA_FREE_LISTINGS", 2),
			PremiumContactViews: getEnvAsInt("QUOTA_PREMIUM_CONTACT_VIEWS", 10),
			PremiumListings:     getEnvAsInt("QUOTA_PREMIUM_LISTINGS", 20),
		},
		SMS: SMSConfig{
			Endpoint: getEnv("SMS_ENDPOINT", "https://www.fast2sms.com/dev/bulkV2"),
			APIKey:   getEnv("SMS_API_KEY", ""),
			SenderID: getEnv("SMS_SENDER_ID", "RNTNST"),
			Timeout:  getEnvAsDuration("SMS_TIMEOUT", 10*time.Second),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			TokenInfoURL: getEnv("GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo"),
			Timeout:      getEnvAsDuration("GOOGLE_TIMEOUT", 10*time.Second),
		},
		S3: S3Config{
			Bucket:         getEnv("S3_BUCKET", ""),
			Region:         getEnv("S3_REGION", "ap-south-1"),
			Endpoint:       getEnv("S3_ENDPOINT", ""),
			AccessKeyID:    getEnv("S3_ACCESS_KEY_ID", ""),
			SecretKey:      getEnv("S3_SECRET_ACCESS_KEY", ""),
			Prefix:         getEnv("S3_PREFIX", "properties"),
			PublicURL:      getEnv("S3_PUBLIC_URL", ""),
			MaxUploadBytes: int64(getEnvAsInt("S3_MAX_UPLOAD_BYTES", 5<<20)),
			MaxFiles:       getEnvAsInt("S3_MAX_FILES", 5),
		},
		Payment: PaymentConfig{
			BaseURL:      getEnv("PAYMENT_BASE_URL", "https://api.razorpay.com"),
			KeyID:        getEnv("PAYMENT_KEY_ID", ""),
			KeySecret:    getEnv("PAYMENT_KEY_SECRET", ""),
			PremiumPrice: int64(getEnvAsInt("PAYMENT_PREMIUM_PRICE", 49900)),
			Currency:     getEnv("PAYMENT_CURRENCY", "INR"),
			Timeout:      getEnvAsDuration("PAYMENT_TIMEOUT", 15*time.Second),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	if len(cfg.JWT.SecretKey) < 32 {
		return nil, fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes (256 bits)")
	}

	if cfg.OTP.Length <= 0 || cfg.OTP.MaxAttempts <= 0 {
		return nil, fmt.Errorf("OTP_LENGTH and OTP_MAX_ATTEMPTS must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

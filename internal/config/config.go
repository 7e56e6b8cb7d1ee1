package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTP store backends.
const (
	OTPStoreMemory = "memory"
	OTPStoreRedis  = "redis"
	OTPStoreDynamo = "dynamo"
)

// SMS delivery modes. SMSModeDisabled accepts phone-channel codes without
// delivering them; SMSModeSNS publishes them through AWS SNS.
const (
	SMSModeDisabled = "disabled"
	SMSModeSNS      = "sns"
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

	S3BucketPrefix       string
	StoragePublicBaseURL string
	StorageListPageSize  int
	StorageTimeout       time.Duration
	UploadURLTTL         time.Duration
	UploadMaxFileSize    int64

	OTPStore          string
	OTPTTL            time.Duration
	OTPMaxAttempts    int
	OTPIssuePerMinute int
	OTPIssueBurst     int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTPHost        string
	SMTPPort        int
	SMTPFrom        string
	SMTPUsername    string
	SMTPPassword    string
	DeliveryTimeout time.Duration
	SMSMode         string
	SNSRegion       string

	JWTPrivateKeyPath   string
	JWTPublicKeyPath    string
	JWTExpiry           time.Duration
	SessionCookieName   string
	SessionCookieSecure bool
	AdminIdentifiers    []string

	AllowedOrigins []string // CORS allowed origins
	// TrustProxy honours X-Forwarded-For / X-Real-Ip for client IPs. Enable
	// only behind a proxy that overwrites those headers.
	TrustProxy bool
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	OTPCodes string
	Uploads  string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			OTPCodes: getEnv("DYNAMO_TABLE_OTP_CODES", "otp_codes"),
			Uploads:  getEnv("DYNAMO_TABLE_UPLOADS", "uploads"),
		},
		S3BucketPrefix:       getEnv("S3_BUCKET_PREFIX", ""),
		StoragePublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:4566"),
		StorageListPageSize:  getEnvInt("STORAGE_LIST_PAGE_SIZE", 100),
		StorageTimeout:       getEnvDuration("STORAGE_TIMEOUT", 10*time.Second),
		UploadURLTTL:         getEnvDuration("UPLOAD_URL_TTL", 15*time.Minute),
		UploadMaxFileSize:    int64(getEnvInt("UPLOAD_MAX_FILE_SIZE", 10<<20)),
		OTPStore:             getEnv("OTP_STORE", OTPStoreMemory),
		OTPTTL:               getEnvDuration("OTP_TTL", 2*time.Minute),
		OTPMaxAttempts:       getEnvInt("OTP_MAX_ATTEMPTS", 5),
		OTPIssuePerMinute:    getEnvInt("OTP_ISSUE_PER_MINUTE", 1),
		OTPIssueBurst:        getEnvInt("OTP_ISSUE_BURST", 3),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		SMTPHost:             getEnv("SMTP_HOST", "localhost"),
		SMTPPort:             getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:             getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		DeliveryTimeout:      getEnvDuration("DELIVERY_TIMEOUT", 10*time.Second),
		SMSMode:              getEnv("SMS_MODE", SMSModeDisabled),
		SNSRegion:            getEnv("SNS_REGION", "us-east-1"),
		JWTPrivateKeyPath:    getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:     getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:            getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),
		SessionCookieName:    getEnv("SESSION_COOKIE_NAME", "token"),
		SessionCookieSecure:  getEnvBool("SESSION_COOKIE_SECURE", false),
		AdminIdentifiers:     getEnvList("ADMIN_IDENTIFIERS", ""),
		AllowedOrigins:       getEnvList("ALLOWED_ORIGINS", "*"),
		TrustProxy:           getEnvBool("TRUST_PROXY", false),
	}
}

// Validate reports the first configuration value that would make the
// service misbehave at runtime.
func (c *Config) Validate() error {
	switch c.OTPStore {
	case OTPStoreMemory, OTPStoreRedis, OTPStoreDynamo:
	default:
		return fmt.Errorf("OTP_STORE must be one of memory, redis, dynamo; got %q", c.OTPStore)
	}
	switch c.SMSMode {
	case SMSModeDisabled, SMSModeSNS:
	default:
		return fmt.Errorf("SMS_MODE must be one of disabled, sns; got %q", c.SMSMode)
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if c.OTPMaxAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive")
	}
	if c.OTPIssuePerMinute <= 0 || c.OTPIssueBurst <= 0 {
		return fmt.Errorf("OTP_ISSUE_PER_MINUTE and OTP_ISSUE_BURST must be positive")
	}
	if c.UploadURLTTL <= 0 {
		return fmt.Errorf("UPLOAD_URL_TTL must be positive")
	}
	// S3 DeleteObjects accepts at most 1000 keys per call.
	if c.StorageListPageSize <= 0 || c.StorageListPageSize > 1000 {
		return fmt.Errorf("STORAGE_LIST_PAGE_SIZE must be within 1..1000")
	}
	return nil
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	PublicBaseURL  string // used to build password-reset links sent by email
	AllowedOrigins []string

	StoreBackend string // "dynamo" | "mongo" | "memory"

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	MongoURI      string
	MongoDatabase string

	NotVerifiedRetention time.Duration
	RecoveryCodeTTL      time.Duration
	ResendCooldown       time.Duration

	TokenSecretKey  string // base64-encoded HMAC key
	TokenExpiration time.Duration

	EmailTransport   string // "http" | "sns" | "smtp"
	EmailSender      ClientConfig
	UserDetails      ClientConfig
	SNSRegion        string
	SNSEmailTopicARN string
	SMTPHost         string
	SMTPPort         int
	SMTPFrom         string
	SMTPUsername     string
	SMTPPassword     string
}

// DynamoTables holds the DynamoDB table name for each collection.
type DynamoTables struct {
	NotVerifiedUsers      string
	VerifiedUsers         string
	PasswordRecoveryCodes string
	EmailClaims           string
}

// ClientConfig describes one remote HTTP service.
type ClientConfig struct {
	URL              string
	Timeout          time.Duration
	RetryMaxElapsed  time.Duration
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
}

var defaults = map[string]any{
	"APP_PORT":        "3000",
	"APP_ENV":         "development",
	"PUBLIC_BASE_URL": "http://localhost:3000",
	"ALLOWED_ORIGINS": "*",
	"STORE_BACKEND":   "dynamo",

	"AWS_REGION":                           "us-east-1",
	"AWS_ENDPOINT_URL":                     "",
	"AWS_ACCESS_KEY_ID":                    "",
	"AWS_SECRET_ACCESS_KEY":                "",
	"DYNAMO_TABLE_NOT_VERIFIED_USERS":      "not_verified_users",
	"DYNAMO_TABLE_VERIFIED_USERS":          "verified_users",
	"DYNAMO_TABLE_PASSWORD_RECOVERY_CODES": "password_recovery_codes",
	"DYNAMO_TABLE_EMAIL_CLAIMS":            "email_claims",

	"MONGO_URI":      "mongodb://localhost:27017",
	"MONGO_DATABASE": "auth",

	"NOT_VERIFIED_RETENTION": "720h",
	"RECOVERY_CODE_TTL":      "5m",
	"RESEND_COOLDOWN":        "5m",

	"TOKEN_SECRET_KEY": "",
	"TOKEN_EXPIRATION": "1h",

	"EMAIL_TRANSPORT":                 "http",
	"EMAIL_SENDER_URL":                "http://localhost:8081",
	"EMAIL_SENDER_TIMEOUT":            "5s",
	"EMAIL_SENDER_RETRY_MAX_ELAPSED":  "10s",
	"EMAIL_SENDER_BREAKER_FAILURES":   5,
	"EMAIL_SENDER_BREAKER_OPEN_DELAY": "30s",
	"USER_DETAILS_URL":                "http://localhost:8082",
	"USER_DETAILS_TIMEOUT":            "5s",
	"USER_DETAILS_RETRY_MAX_ELAPSED":  "10s",
	"USER_DETAILS_BREAKER_FAILURES":   5,
	"USER_DETAILS_BREAKER_OPEN_DELAY": "30s",
	"SNS_REGION":                      "us-east-1",
	"SNS_EMAIL_TOPIC_ARN":             "",
	"SMTP_HOST":                       "localhost",
	"SMTP_PORT":                       1025,
	"SMTP_FROM":                       "noreply@example.com",
	"SMTP_USERNAME":                   "",
	"SMTP_PASSWORD":                   "",
}

// Load reads all configuration from environment variables.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	return &Config{
		AppPort:        v.GetString("APP_PORT"),
		AppEnv:         v.GetString("APP_ENV"),
		PublicBaseURL:  strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		AllowedOrigins: strings.Split(v.GetString("ALLOWED_ORIGINS"), ","),
		StoreBackend:   v.GetString("STORE_BACKEND"),

		AWSRegion:      v.GetString("AWS_REGION"),
		AWSEndpointURL: v.GetString("AWS_ENDPOINT_URL"),
		AWSAccessKeyID: v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:   v.GetString("AWS_SECRET_ACCESS_KEY"),
		DynamoTables: DynamoTables{
			NotVerifiedUsers:      v.GetString("DYNAMO_TABLE_NOT_VERIFIED_USERS"),
			VerifiedUsers:         v.GetString("DYNAMO_TABLE_VERIFIED_USERS"),
			PasswordRecoveryCodes: v.GetString("DYNAMO_TABLE_PASSWORD_RECOVERY_CODES"),
			EmailClaims:           v.GetString("DYNAMO_TABLE_EMAIL_CLAIMS"),
		},

		MongoURI:      v.GetString("MONGO_URI"),
		MongoDatabase: v.GetString("MONGO_DATABASE"),

		NotVerifiedRetention: v.GetDuration("NOT_VERIFIED_RETENTION"),
		RecoveryCodeTTL:      v.GetDuration("RECOVERY_CODE_TTL"),
		ResendCooldown:       v.GetDuration("RESEND_COOLDOWN"),

		TokenSecretKey:  v.GetString("TOKEN_SECRET_KEY"),
		TokenExpiration: v.GetDuration("TOKEN_EXPIRATION"),

		EmailTransport:   v.GetString("EMAIL_TRANSPORT"),
		EmailSender:      clientConfig(v, "EMAIL_SENDER"),
		UserDetails:      clientConfig(v, "USER_DETAILS"),
		SNSRegion:        v.GetString("SNS_REGION"),
		SNSEmailTopicARN: v.GetString("SNS_EMAIL_TOPIC_ARN"),
		SMTPHost:         v.GetString("SMTP_HOST"),
		SMTPPort:         v.GetInt("SMTP_PORT"),
		SMTPFrom:         v.GetString("SMTP_FROM"),
		SMTPUsername:     v.GetString("SMTP_USERNAME"),
		SMTPPassword:     v.GetString("SMTP_PASSWORD"),
	}
}

func clientConfig(v *viper.Viper, prefix string) ClientConfig {
	return ClientConfig{
		URL:              strings.TrimRight(v.GetString(prefix+"_URL"), "/"),
		Timeout:          v.GetDuration(prefix + "_TIMEOUT"),
		RetryMaxElapsed:  v.GetDuration(prefix + "_RETRY_MAX_ELAPSED"),
		BreakerFailures:  v.GetUint32(prefix + "_BREAKER_FAILURES"),
		BreakerOpenDelay: v.GetDuration(prefix + "_BREAKER_OPEN_DELAY"),
	}
}

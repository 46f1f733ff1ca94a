package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pkgstrings "memberverify/pkg/platform/strings"
)

// Server captures process-level configuration. Values come from the
// environment, optionally seeded from a .env file.
type Server struct {
	Addr     string
	BaseURL  string
	LogLevel string
	// LogFormat is "json" or "text".
	LogFormat string

	// TokenSecret signs verification tokens.
	TokenSecret string
	// CronSecret guards the job trigger endpoints (Authorization: Bearer ...).
	CronSecret string
	// AdminToken guards the admin endpoints (X-Admin-Token).
	AdminToken string
	// AdminTokenHash is a bcrypt hash of the admin token; it takes precedence
	// over AdminToken.
	AdminTokenHash string
	// RateLimitDisabled turns the per-IP limits off, for local load tests.
	RateLimitDisabled bool

	DatabaseURL string
	Redis       RedisConfig
	Storage     StorageConfig
	Mail        MailConfig
	Mailbox     MailboxConfig
	Kafka       KafkaConfig
	Jobs        JobsConfig
}

// RedisConfig configures the shared rate-limit counter store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig configures the S3-compatible badge photo bucket.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MailConfig configures outbound SMTP for reminders and the contact form.
type MailConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	FromName     string
	ReplyTo      string
	Bcc          string
	ContactInbox string
	TLS          bool
}

// MailboxConfig configures the inbox scanned by the email matcher.
type MailboxConfig struct {
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	CorporateDomain string
	IntakeAddress   string
	MaxResults      int64
}

// KafkaConfig enables mirroring of verification events and audit entries.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// JobsConfig sets in-process job cadence. Zero disables a job.
type JobsConfig struct {
	PurgeInterval    time.Duration
	MailPollInterval time.Duration
	ReminderInterval time.Duration
	// RateLimitSweep prunes expired in-memory rate-limit windows. Unused with redis.
	RateLimitSweep time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win.
func FromEnv() Server {
	_ = godotenv.Load()

	return Server{
		Addr:              getEnv("MEMBERVERIFY_ADDR", ":8080"),
		BaseURL:           strings.TrimSuffix(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		TokenSecret:       getEnv("TOKEN_SECRET", "dev-secret-key-change-in-production"),
		CronSecret:        os.Getenv("CRON_SECRET"),
		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		AdminTokenHash:    os.Getenv("ADMIN_TOKEN_HASH"),
		RateLimitDisabled: getBool("RATELIMIT_DISABLED", false),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    getEnv("STORAGE_BUCKET", "badge-photos"),
			UseSSL:    getBool("STORAGE_USE_SSL", true),
		},
		Mail: MailConfig{
			Host:         os.Getenv("EMAIL_HOST"),
			Port:         getInt("EMAIL_PORT", 587),
			Username:     os.Getenv("EMAIL_USER"),
			Password:     os.Getenv("EMAIL_PASS"),
			From:         os.Getenv("UNION_EMAIL"),
			FromName:     os.Getenv("UNION_EMAIL_NAME"),
			ReplyTo:      os.Getenv("UNION_REPLY_TO"),
			Bcc:          os.Getenv("UNION_BCC"),
			ContactInbox: os.Getenv("CONTACT_EMAIL"),
			TLS:          getBool("EMAIL_TLS", true),
		},
		Mailbox: MailboxConfig{
			ClientID:        os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret:    os.Getenv("GOOGLE_CLIENT_SECRET"),
			RefreshToken:    os.Getenv("GOOGLE_REFRESH_TOKEN"),
			CorporateDomain: os.Getenv("CORPORATE_MAIL_DOMAIN"),
			IntakeAddress:   os.Getenv("VERIFICATION_INTAKE_ADDRESS"),
			MaxResults:      int64(getInt("MAILBOX_MAX_RESULTS", 50)),
		},
		Kafka: KafkaConfig{
			Brokers: pkgstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "memberverify.events"),
		},
		Jobs: JobsConfig{
			PurgeInterval:    getDuration("PURGE_INTERVAL", time.Hour),
			MailPollInterval: getDuration("MAIL_POLL_INTERVAL", 5*time.Minute),
			ReminderInterval: getDuration("REMINDER_INTERVAL", 0),
			RateLimitSweep:   getDuration("RATELIMIT_SWEEP_INTERVAL", time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only AMQP_URL and DATABASE_URL are
// required.
type Config struct {
	// Broker
	AMQPURL         string
	TopicExchange   string
	HeadersExchange string
	ControlQueue    string

	// Queue creation arguments. Zero disables the argument.
	QueueExpires   time.Duration // x-expires
	QueueMaxLength int           // x-max-length
	QueueMaxSize   int           // x-max-length-bytes

	// Subscription store
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// IRC backend
	IRCEnabled     bool
	IRCEndpoint    string // host:port
	IRCNick        string
	IRCPassword    string // NickServ password; empty disables identification
	IRCUseTLS      bool
	IRCLineRate    time.Duration // minimum delay between outbound lines
	IRCConnectWait time.Duration // bounded wait for a live connection per delivery

	// Email backend
	EmailEnabled     bool
	SMTPHostname     string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPRequireAuth  bool
	SMTPRequireTLS   bool
	EmailFromAddress string

	// Ops HTTP server
	HTTPPort        string
	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	amqpURL := os.Getenv("AMQP_URL")
	if amqpURL == "" {
		return nil, fmt.Errorf("AMQP_URL is required")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		AMQPURL:         amqpURL,
		TopicExchange:   getEnv("TOPIC_EXCHANGE", "amq.topic"),
		HeadersExchange: getEnv("HEADERS_EXCHANGE", "amq.match"),
		ControlQueue:    getEnv("CONTROL_QUEUE", "notifyhub.control"),

		QueueExpires:   getDuration("QUEUE_EXPIRES", 0),
		QueueMaxLength: getInt("QUEUE_MAX_LENGTH", 0),
		QueueMaxSize:   getInt("QUEUE_MAX_SIZE", 0),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		IRCEnabled:     getBool("IRC_ENABLED", false),
		IRCEndpoint:    getEnv("IRC_ENDPOINT", "irc.libera.chat:6697"),
		IRCNick:        getEnv("IRC_NICK", "notifyhub"),
		IRCPassword:    os.Getenv("IRC_PASSWORD"),
		IRCUseTLS:      getBool("IRC_USE_TLS", true),
		IRCLineRate:    getDuration("IRC_LINE_RATE", 600*time.Millisecond),
		IRCConnectWait: getDuration("IRC_CONNECT_WAIT", 30*time.Second),

		EmailEnabled:     getBool("EMAIL_ENABLED", false),
		SMTPHostname:     getEnv("SMTP_SERVER_HOSTNAME", "localhost"),
		SMTPPort:         getInt("SMTP_SERVER_PORT", 25),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		SMTPRequireAuth:  getBool("SMTP_REQUIRE_AUTHENTICATION", false),
		SMTPRequireTLS:   getBool("SMTP_REQUIRE_TLS", true),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", "notifications@localhost"),

		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

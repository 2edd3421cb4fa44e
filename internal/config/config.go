package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses duration values
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The backend service URLs default to the local
// development ports the TicketChief services bind to; everything the gateway
// can degrade without (journal database, Redis, broker) is optional.
type Config struct {
	Env         string        // application environment (e.g. "dev", "prod")
	Port        string        // HTTP port to listen on
	JWTSecret   string        // secret shared with the identity service for verifying session tokens
	IdentityURL string        // base URL of the identity service
	EventsURL   string        // base URL of the event/seating service
	OrdersURL   string        // base URL of the order service
	PaymentsURL string        // base URL of the payment service
	HTTPTimeout time.Duration // per-call timeout for request/response backend calls
	SessionTTL  time.Duration // idle TTL after which a shopper session is evicted
	DBUser      string        // journal database username (journal disabled when DB_HOST unset)
	DBPass      string        // journal database password (optional)
	DBHost      string        // journal database host address
	DBPort      string        // journal database port number
	DBName      string        // journal database name
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:         must("APP_ENV"),    // environment (dev/test/prod)
		Port:        must("APP_PORT"),   // port to bind the HTTP server
		JWTSecret:   must("JWT_SECRET"), // secret used for verifying session tokens
		IdentityURL: envStr("IDENTITY_SERVICE_URL", "http://localhost:8001"),
		EventsURL:   envStr("EVENTS_SERVICE_URL", "http://localhost:8002"),
		OrdersURL:   envStr("ORDERS_SERVICE_URL", "http://localhost:8003"),
		PaymentsURL: envStr("PAYMENTS_SERVICE_URL", "http://localhost:8004"),
		HTTPTimeout: envDur("BACKEND_HTTP_TIMEOUT", 15*time.Second),
		SessionTTL:  envDur("SESSION_IDLE_TTL", 30*time.Minute),
		DBUser:      os.Getenv("DB_USER"),
		DBPass:      os.Getenv("DB_PASS"),
		DBHost:      os.Getenv("DB_HOST"),
		DBPort:      envStr("DB_PORT", "3306"),
		DBName:      os.Getenv("DB_NAME"),
	}
}

// JournalEnabled reports whether the optional checkout journal is
// configured.
func (c Config) JournalEnabled() bool { return c.DBHost != "" && c.DBName != "" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

package config // package config loads application configuration from environment variables

import (
	"log"      // log is used to report configuration errors and halt execution
	"net/http" // http provides the SameSite cookie modes
	"os"       // os provides access to environment variables
	"strconv"  // strconv converts strings to other types
	"strings"
)

// minSecretLen is the shortest HS256 signing key accepted at startup.
const minSecretLen = 32

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	DBAutoMigrate   bool          // create tables on startup when missing
	JWTSecret       string        // secret used to sign session tokens
	SessionTTLHours int           // session token time-to-live in hours
	BcryptCost      int           // bcrypt cost for password hashing
	CookieSecure    bool          // mark session and csrf cookies Secure
	CookieSameSite  http.SameSite // SameSite mode for the session cookie
	LegacySentinels bool          // emit the legacy string markers instead of JSON null / []
	ConsumerEnabled bool          // run the booking event consumer in-process
	LogLevel        string        // slog level name
	QueueLogDir     string        // directory of the consumer's booking.log
	CORSOrigins     []string      // origins allowed to send credentialed requests
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  A signing key shorter
// than 32 bytes is treated as a misconfiguration.
func Load() Config {
	cfg := Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		DBAutoMigrate:   envBool("DB_AUTO_MIGRATE", true),
		JWTSecret:       must("JWT_SECRET"),
		SessionTTLHours: mustInt("SESSION_TTL_HOURS"),
		BcryptCost:      mustInt("BCRYPT_COST"),
		CookieSecure:    envBool("COOKIE_SECURE", false),
		CookieSameSite:  parseSameSite(envStr("COOKIE_SAMESITE", "lax")),
		LegacySentinels: envBool("WIRE_LEGACY_SENTINELS", false),
		ConsumerEnabled: envBool("QUEUE_CONSUMER_ENABLED", false),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		QueueLogDir:     envStr("QUEUE_LOG_DIR", "logs"),
		CORSOrigins:     splitList(envStr("CORS_ORIGINS", "http://localhost:5173")),
	}
	if len(cfg.JWTSecret) < minSecretLen {
		log.Fatalf("JWT_SECRET must be at least %d bytes", minSecretLen)
	}
	if cfg.SessionTTLHours <= 0 {
		log.Fatalf("SESSION_TTL_HOURS must be positive")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}

package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time is used for duration-typed settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
	Env               string        // application environment (e.g. "dev", "prod")
	Port              string        // HTTP port to listen on
	DBUser            string        // database username
	DBPass            string        // database password (optional)
	DBHost            string        // database host address
	DBPort            string        // database port number
	DBName            string        // database name
	JWTSecret         string        // secret used to sign JWTs
	AccessTTLMin      int           // access token time-to-live in minutes
	RefreshTTLDays    int           // refresh token time-to-live in days
	BcryptCost        int           // bcrypt cost for password hashing
	SessionLimit      int           // max live refresh tokens per user
	EmailCheckKey     string        // access key for the mailbox verification API (empty = fail closed)
	EmailCheckBaseURL string        // base URL of the mailbox verification API
	EmailCheckTimeout time.Duration // hard timeout for the mailbox verification call
	UploadDir         string        // root directory for uploaded avatar files
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The email check key
// is deliberately optional here: registration fails closed at the gate
// instead of keeping the whole service from booting.
func Load() Config {
	return Config{
		Env:               must("APP_ENV"),
		Port:              must("APP_PORT"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"), // empty allowed
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		JWTSecret:         must("JWT_SECRET"),
		AccessTTLMin:      envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays:    envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:        envInt("BCRYPT_COST", 10),
		SessionLimit:      envInt("SESSION_LIMIT", 5),
		EmailCheckKey:     os.Getenv("EMAIL_CHECK_ACCESS_KEY"),
		EmailCheckBaseURL: getenv("EMAIL_CHECK_BASE_URL", "http://apilayer.net/api/check"),
		EmailCheckTimeout: envDur("EMAIL_CHECK_TIMEOUT", 5*time.Second),
		UploadDir:         getenv("UPLOAD_DIR", "public"),
	}
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

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}

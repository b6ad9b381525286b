package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time parses the fleet service timeout
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Tokens are issued by the external auth
// service; this service only needs the shared signing secret to verify
// them.
type Config struct {
    Env          string        // application environment (e.g. "dev", "prod")
    Port         string        // HTTP port to listen on
    DBUser       string        // database username
    DBPass       string        // database password (optional)
    DBHost       string        // database host address
    DBPort       string        // database port number
    DBName       string        // database name
    JWTSecret    string        // secret used to verify JWTs from the auth service
    FleetBaseURL string        // base URL of the external fleet (seat inventory) service
    FleetTimeout time.Duration // per-call timeout for fleet service requests
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:          must("APP_ENV"),                                 // environment (dev/test/prod)
        Port:         must("APP_PORT"),                                // port to bind the HTTP server
        DBUser:       must("DB_USER"),                                 // database user
        DBPass:       os.Getenv("DB_PASS"),                            // database password (empty allowed)
        DBHost:       must("DB_HOST"),                                 // database host
        DBPort:       must("DB_PORT"),                                 // database port
        DBName:       must("DB_NAME"),                                 // database name
        JWTSecret:    must("JWT_SECRET"),                              // shared secret for verifying JWTs
        FleetBaseURL: must("FLEET_SERVICE_BASE_URL"),                  // fleet service base URL
        FleetTimeout: mustDur("FLEET_SERVICE_TIMEOUT", 5*time.Second), // fleet call timeout
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

// mustDur reads an optional duration variable, falling back to the given
// default when unset.  An unparsable value exits with a fatal log message.
func mustDur(key string, def time.Duration) time.Duration {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    d, err := time.ParseDuration(s)
    if err != nil {
        log.Fatalf("invalid duration for %s: %q", key, s)
    }
    return d
}

// Helper functions shared by the redis, cache and rate limit loaders.
func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func envBool(key string, def bool) bool {
    switch getenv(key, "") {
    case "1", "true", "TRUE", "True", "yes", "on":
        return true
    case "0", "false", "FALSE", "False", "no", "off":
        return false
    }
    return def
}

func envInt(key string, def int) int {
    if v := os.Getenv(key); v != "" {
        if n, err := strconv.Atoi(v); err == nil {
            return n
        }
    }
    return def
}

func envDur(key string, def time.Duration) time.Duration {
    if v := os.Getenv(key); v != "" {
        if d, err := time.ParseDuration(v); err == nil {
            return d
        }
    }
    return def
}

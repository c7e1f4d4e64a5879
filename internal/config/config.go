package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time expresses the hold TTL as a duration
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations and ints
// for the booking windows and point pricing.
type Config struct {
    Env             string        // application environment (e.g. "dev", "prod")
    Port            string        // HTTP port to listen on
    DBUser          string        // database username
    DBPass          string        // database password (optional)
    DBHost          string        // database host address
    DBPort          string        // database port number
    DBName          string        // database name
    JWTSecret       string        // secret used to verify member access tokens
    AMQPURL         string        // RabbitMQ connection string (optional)
    HoldTTL         time.Duration // how long a booking session holds its seats
    PointValueCents uint32        // monetary value of one loyalty point, in cents
    PayURL          string        // payment provider checkout URL
    PayReturnURL    string        // URL the provider redirects back to
    PayMerchantCode string        // merchant identifier at the provider
    PaySecret       string        // shared secret used to sign provider requests
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:             must("APP_ENV"),      // environment (dev/test/prod)
        Port:            must("APP_PORT"),     // port to bind the HTTP server
        DBUser:          must("DB_USER"),      // database user
        DBPass:          os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:          must("DB_HOST"),      // database host
        DBPort:          must("DB_PORT"),      // database port
        DBName:          must("DB_NAME"),      // database name
        JWTSecret:       must("JWT_SECRET"),   // secret for verifying member tokens
        AMQPURL:         os.Getenv("RABBITMQ_URL"),
        HoldTTL:         time.Duration(envInt("HOLD_TTL_MIN", 5)) * time.Minute,
        PointValueCents: uint32(envInt("POINT_VALUE_CENTS", 1000)),
        PayURL:          must("PAY_URL"),
        PayReturnURL:    must("PAY_RETURN_URL"),
        PayMerchantCode: must("PAY_MERCHANT_CODE"),
        PaySecret:       must("PAY_SECRET"),
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

// envInt reads an integer environment variable, falling back to a default
// when the variable is unset or malformed.
func envInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return def
}

package config // package config loads application configuration from environment variables

import (
    "fmt"
    "log/slog"
    "os"
    "strconv"
    "strings"

    "github.com/joho/godotenv"
)

// Storage modes.
const (
    StorageMemory = "memory" // registry and accounts live in process memory
    StorageMySQL  = "mysql"  // registry is journaled to MySQL and restored at startup
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    Storage        string // memory | mysql
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time-to-live in minutes
    BcryptCost     int    // bcrypt cost for password hashing
    AMQPURL        string // broker URL; empty disables event publishing
    EventsConsumer bool   // run the hackathon.created consumer in-process
}

// Load reads a .env file when present, then environment variables, and
// returns a validated Config.
func Load() (Config, error) {
    if err := godotenv.Load(); err != nil {
        slog.Debug("no .env file found, using process environment")
    }
    cfg := Config{
        Env:            envStr("APP_ENV", "dev"),
        Port:           envStr("APP_PORT", "8080"),
        Storage:        strings.ToLower(envStr("STORAGE", StorageMemory)),
        DBUser:         os.Getenv("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"),
        DBHost:         os.Getenv("DB_HOST"),
        DBPort:         envStr("DB_PORT", "3306"),
        DBName:         os.Getenv("DB_NAME"),
        JWTSecret:      os.Getenv("JWT_SECRET"),
        AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),
        BcryptCost:     envInt("BCRYPT_COST", 10),
        AMQPURL:        amqpURL(),
        EventsConsumer: envBool("EVENTS_CONSUMER", false),
    }
    if err := cfg.validate(); err != nil {
        return Config{}, err
    }
    return cfg, nil
}

func (c Config) validate() error {
    if c.JWTSecret == "" {
        return fmt.Errorf("missing required env var: %s", "JWT_SECRET")
    }
    switch c.Storage {
    case StorageMemory:
    case StorageMySQL:
        for key, v := range map[string]string{"DB_USER": c.DBUser, "DB_HOST": c.DBHost, "DB_NAME": c.DBName} {
            if v == "" {
                return fmt.Errorf("missing required env var for mysql storage: %s", key)
            }
        }
    default:
        return fmt.Errorf("invalid STORAGE %q (want memory or mysql)", c.Storage)
    }
    if c.AccessTTLMin <= 0 {
        return fmt.Errorf("invalid int for ACCESS_TOKEN_TTL_MIN: %d", c.AccessTTLMin)
    }
    if c.BcryptCost < 4 || c.BcryptCost > 31 {
        return fmt.Errorf("invalid BCRYPT_COST: %d", c.BcryptCost)
    }
    return nil
}

// amqpURL honours both RABBITMQ_URL and AMQP_URL.
func amqpURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
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

package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings compares boolean flag spellings
	"time"    // time parses duration values
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for token
// lifetimes, ints for hashing costs.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	DBMaxOpen      int           // connection pool ceiling
	DBMaxIdle      int           // idle connections kept in the pool
	DBConnLifetime time.Duration // recycle connections older than this
	RedisAddr      string        // host:port of the session/limiter cache
	RedisPassword  string        // optional cache password
	RedisDB        int           // redis logical database number
	RedisTLS       bool          // dial the cache over TLS
	AccessSecret   string        // secret used to sign access tokens
	RefreshSecret  string        // secret used to sign refresh tokens
	AccessTTL      time.Duration // access token time-to-live (default 1h)
	RefreshTTL     time.Duration // refresh token time-to-live (default 7d)
	ActionTokenTTL time.Duration // password-reset / email-verification token lifetime
	Argon2Memory   uint32        // argon2id memory cost in KiB
	Argon2Time     uint32        // argon2id time cost (iterations)
	Argon2Threads  uint8         // argon2id parallelism degree
	LogLevel       string        // zap log level (debug/info/warn/error)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Both token secrets
// are required: the service refuses to start rather than issue unsigned or
// weakly-signed tokens.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),              // environment (dev/test/prod)
		Port:           must("APP_PORT"),             // port to bind the HTTP server
		DBUser:         must("DB_USER"),              // database user
		DBPass:         os.Getenv("DB_PASS"),         // database password (empty allowed)
		DBHost:         must("DB_HOST"),              // database host
		DBPort:         must("DB_PORT"),              // database port
		DBName:         must("DB_NAME"),              // database name
		AccessSecret:   must("ACCESS_TOKEN_SECRET"),  // HS256 secret for access tokens
		RefreshSecret:  must("REFRESH_TOKEN_SECRET"), // HS256 secret for refresh tokens
		DBMaxOpen:      envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdle:      envInt("DB_MAX_IDLE_CONNS", 25),
		DBConnLifetime: envDur("DB_CONN_LIFETIME", 30*time.Minute),
		RedisAddr:      redisAddr(),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        envInt("REDIS_DB", 0),
		RedisTLS:       envBool("REDIS_TLS"),
		AccessTTL:      envDur("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTTL:     envDur("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ActionTokenTTL: envDur("ACTION_TOKEN_TTL", time.Hour),
		Argon2Memory:   uint32(envInt("ARGON2_MEMORY_KB", 64*1024)),
		Argon2Time:     uint32(envInt("ARGON2_TIME", 3)),
		Argon2Threads:  uint8(envInt("ARGON2_THREADS", 2)),
		LogLevel:       envStr("LOG_LEVEL", "info"),
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

// redisAddr resolves the cache address.  REDIS_HOST/REDIS_PORT win over the
// REDIS_ADDR shorthand; with neither set the conventional local default is
// used.
func redisAddr() string {
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		return host + ":" + port
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
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

func envBool(k string) bool {
	v := os.Getenv(k)
	return strings.EqualFold(v, "true") || v == "1"
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

// Package config centralizes application configuration. It follows a
// "clean" configuration pattern where all tunables live outside the code
// and are sourced from command-line flags with environment-variable
// fallbacks (12-factor friendly). Flags are defined first so that `-help`
// shows all available knobs and their defaults.
//
// Typical usage:
//
//	cfg := config.Load() // reads os.Args and os.Environ
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg := config.LoadFromArgs(fs, getenv, []string{"-chunk_size=500"})
package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds all process configuration derived from flags and environment
// variables. All fields are plain values so the struct can be safely copied
// after construction; nothing reads the environment after Load returns.
type Config struct {
	// Source describes the input extract.
	CSVFile   string // Path or http(s) URL of the 311 CSV extract.
	ChunkSize int    // Rows per chunk; each chunk commits as one transaction.

	// DB describes the target database. When DSN is set it is used verbatim;
	// otherwise a driver-appropriate DSN is assembled from the discrete parts.
	DBKind     string // Storage backend kind: "mysql", "postgres", "sqlite", "mssql".
	DSN        string // Full DSN override (optional).
	DBHost     string // Database host.
	DBPort     string // Database port.
	DBUser     string // Database username.
	DBPassword string // Database password.
	DBName     string // Database name.

	// Ingest tunables.
	Table           string // Destination table.
	AutoCreateTable bool   // Create the destination table before loading.
	ErrorLogLimit   int    // Per-run cap on logged row-level write errors.
}

// LoadFromArgs builds a Config by defining flags on fs, wiring each flag to
// an environment-variable fallback via getenv, and then parsing args.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit CLI flags (in args) override the seeded defaults.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) *Config {
	cfg := &Config{}

	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOr := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	boolEnvOr := func(k string, d bool) bool {
		if v := strings.ToLower(getenv(k)); v != "" {
			switch v {
			case "1", "true", "yes", "on":
				return true
			case "0", "false", "no", "off":
				return false
			}
		}
		return d
	}

	fs.StringVar(&cfg.CSVFile, "csv_file", envOr("CSV_FILE", "data/data_311_Jan_2025.csv"), "Path or http(s) URL of the 311 CSV extract")
	fs.IntVar(&cfg.ChunkSize, "chunk_size", intEnvOr("CHUNK_SIZE", 10000), "Rows per chunk (one transaction per chunk)")

	fs.StringVar(&cfg.DBKind, "db_kind", envOr("DB_KIND", "mysql"), `Storage backend: "mysql", "postgres", "sqlite" or "mssql"`)
	fs.StringVar(&cfg.DSN, "dsn", getenv("DB_DSN"), "Full DSN override (optional)")
	fs.StringVar(&cfg.DBHost, "db_host", envOr("DB_HOST", "localhost"), "DB host")
	fs.StringVar(&cfg.DBPort, "db_port", envOr("DB_PORT", "4408"), "DB port")
	fs.StringVar(&cfg.DBUser, "db_user", envOr("DB_USER", "root"), "DB user")
	fs.StringVar(&cfg.DBPassword, "db_password", envOr("DB_PASSWORD", "rootpass"), "DB password")
	fs.StringVar(&cfg.DBName, "db_name", envOr("DB_NAME", "nyc311"), "DB name")

	fs.StringVar(&cfg.Table, "table", envOr("DB_TABLE", "service_requests"), "Destination table")
	fs.BoolVar(&cfg.AutoCreateTable, "auto_create_table", boolEnvOr("AUTO_CREATE_TABLE", true), "Create the destination table before loading")
	fs.IntVar(&cfg.ErrorLogLimit, "error_log_limit", intEnvOr("ERROR_LOG_LIMIT", 10), "Max row-level write errors to log per run")

	if args == nil {
		args = []string{}
	}
	_ = fs.Parse(args)
	return cfg
}

// Load is the production entry point. It wires the loader to the process
// flag set (flag.CommandLine), reads environment variables via os.Getenv,
// and parses os.Args[1:] as the CLI arguments.
func Load() *Config {
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

// Validate reports configuration problems that would make a run pointless.
// It returns the first problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CSVFile) == "" {
		return fmt.Errorf("csv_file must not be empty")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0 (got %d)", c.ChunkSize)
	}
	if strings.TrimSpace(c.Table) == "" {
		return fmt.Errorf("table must not be empty")
	}
	if c.ErrorLogLimit < 0 {
		return fmt.Errorf("error_log_limit must be >= 0 (got %d)", c.ErrorLogLimit)
	}
	switch c.DBKind {
	case "mysql", "postgres", "sqlite", "mssql":
		return nil
	default:
		return fmt.Errorf("unknown db_kind %q", c.DBKind)
	}
}

// BuildDSN returns the connection string for the configured backend. An
// explicit DSN override wins; otherwise one is assembled from the discrete
// host/port/user/password/database parts.
func (c *Config) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.DBKind {
	case "mysql":
		// parseTime makes the driver scan DATETIME columns into time.Time.
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	case "postgres":
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
			url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword), c.DBHost, c.DBPort, c.DBName)
	case "mssql":
		return fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s",
			url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword), c.DBHost, c.DBPort, c.DBName)
	case "sqlite":
		return c.DBName + ".db"
	default:
		return ""
	}
}

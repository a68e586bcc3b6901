package server

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"tasklist/internal/domain/errors"

	"github.com/caarlos0/env/v11"
)

const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Addr         string        `json:"addr" env:"ADDR"`
	Port         int           `json:"port" env:"PORT"`
	Storage      string        `json:"storage" env:"STORAGE"`
	DBStr        string        `json:"db_str" env:"DB_STR"`
	SQLitePath   string        `json:"sqlite_path" env:"SQLITE_PATH"`
	MigratePath  string        `json:"migrate_path" env:"MIGRATE_PATH"`
	JWTSecret    string        `json:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL     time.Duration `json:"-" env:"JWT_EXPIRE"`
	CORSOrigin   string        `json:"cors_origin" env:"CORS_ORIGIN"`
	Environment  string        `json:"environment" env:"APP_ENV"`
	BcryptCost   int           `json:"bcrypt_cost" env:"BCRYPT_COST"`
	MaxPageLimit int           `json:"max_page_limit" env:"MAX_PAGE_LIMIT"`
}

const (
	defaultAddr         = "0.0.0.0"
	defaultPort         = 8080
	defaultStorage      = StoragePostgres
	defaultDBStr        = "postgresql://shouldbeinVaultuser:shouldbeinVaultpassword@db:5432/tasks?sslmode=disable"
	defaultSQLitePath   = "tasks.db"
	defaultMigratePath  = "migrations"
	defaultTokenTTL     = 7 * 24 * time.Hour
	defaultCORSOrigin   = "*"
	defaultEnvironment  = EnvDevelopment
	defaultBcryptCost   = 10
	defaultMaxPageLimit = 100
)

func DefaultConfig() *Config {
	return &Config{
		Addr:         defaultAddr,
		Port:         defaultPort,
		Storage:      defaultStorage,
		DBStr:        defaultDBStr,
		SQLitePath:   defaultSQLitePath,
		MigratePath:  defaultMigratePath,
		TokenTTL:     defaultTokenTTL,
		CORSOrigin:   defaultCORSOrigin,
		Environment:  defaultEnvironment,
		BcryptCost:   defaultBcryptCost,
		MaxPageLimit: defaultMaxPageLimit,
	}
}

// ReadConfig layers defaults, an optional JSON file, environment variables
// and explicitly set flags, in that order of precedence.
func ReadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	addr := fs.String("addr", defaultAddr, "server listen address")
	port := fs.Int("port", defaultPort, "server listen port")
	storage := fs.String("storage", defaultStorage, "storage backend: postgres, sqlite or memory")
	dbstr := fs.String("dbstr", defaultDBStr, "database connection string")
	dbDsn := fs.String("dbdsn", "", "database DSN (takes precedence over dbstr)")
	sqlitePath := fs.String("sqlite", defaultSQLitePath, "sqlite database file")
	migratePath := fs.String("migratepath", defaultMigratePath, "path to the migrations directory")
	secret := fs.String("jwt-secret", "", "token signing secret")
	ttl := fs.String("jwt-expire", "", "token lifetime, e.g. 24h or 7d")
	configFile := fs.String("c", "", "path to a JSON config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	configPath := *configFile
	if configPath == "" {
		configPath = os.Getenv("CONFIG")
	}
	if configPath != "" {
		if err := loadJSONConfig(configPath, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "port":
			cfg.Port = *port
		case "storage":
			cfg.Storage = *storage
		case "dbstr":
			if *dbDsn == "" {
				cfg.DBStr = *dbstr
			}
		case "dbdsn":
			cfg.DBStr = *dbDsn
		case "sqlite":
			cfg.SQLitePath = *sqlitePath
		case "migratepath":
			cfg.MigratePath = *migratePath
		case "jwt-secret":
			cfg.JWTSecret = *secret
		case "jwt-expire":
			d, err := parseTTL(*ttl)
			if err != nil {
				flagErr = err
				return
			}
			cfg.TokenTTL = d
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type fileConfig struct {
	Config
	TokenTTL string `json:"jwt_expire"`
}

func loadJSONConfig(path string, cfg *Config) error {
	log.Println("[INFO] loading JSON config from:", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w %s: %v", errors.ErrConfigFileReadFailed, path, err)
	}

	fc := fileConfig{Config: *cfg}
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConfigParseFailed, err)
	}
	if fc.TokenTTL != "" {
		d, err := parseTTL(fc.TokenTTL)
		if err != nil {
			return err
		}
		fc.Config.TokenTTL = d
	}

	*cfg = fc.Config
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(v string) (any, error) {
				return parseTTL(v)
			},
		},
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConfigInvalidFormat, err)
	}

	if cfg.DBStr == defaultDBStr {
		dbUser := os.Getenv("DB_USER")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbName := os.Getenv("DB_NAME")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		if dbUser != "" && dbPassword != "" && dbName != "" && dbHost != "" && dbPort != "" {
			cfg.DBStr = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, dbHost, dbPort, dbName)
		}
	}
	return nil
}

// parseTTL accepts Go durations plus a whole-day form such as "7d".
func parseTTL(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%w: token lifetime %q", errors.ErrConfigInvalidFormat, v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: token lifetime %q", errors.ErrConfigInvalidFormat, v)
	}
	return d, nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535: %d", errors.ErrConfigInvalidFormat, c.Port)
	}
	switch c.Storage {
	case StoragePostgres, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage %q", errors.ErrConfigInvalidFormat, c.Storage)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET is required", errors.ErrConfigInvalidFormat)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%w: token lifetime must be positive", errors.ErrConfigInvalidFormat)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("%w: bcrypt cost must be between 4 and 31: %d", errors.ErrConfigInvalidFormat, c.BcryptCost)
	}
	if c.MaxPageLimit < 1 || c.MaxPageLimit > 100 {
		return fmt.Errorf("%w: max page limit must be between 1 and 100: %d", errors.ErrConfigInvalidFormat, c.MaxPageLimit)
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// withDefaults fills zero fields so a partially built Config stays usable.
func (c *Config) withDefaults() *Config {
	out := DefaultConfig()
	if c == nil {
		return out
	}
	merged := *c
	if merged.Addr == "" {
		merged.Addr = out.Addr
	}
	if merged.Port == 0 {
		merged.Port = out.Port
	}
	if merged.Storage == "" {
		merged.Storage = out.Storage
	}
	if merged.TokenTTL == 0 {
		merged.TokenTTL = out.TokenTTL
	}
	if merged.CORSOrigin == "" {
		merged.CORSOrigin = out.CORSOrigin
	}
	if merged.Environment == "" {
		merged.Environment = out.Environment
	}
	if merged.BcryptCost == 0 {
		merged.BcryptCost = out.BcryptCost
	}
	if merged.MaxPageLimit == 0 {
		merged.MaxPageLimit = out.MaxPageLimit
	}
	return &merged
}

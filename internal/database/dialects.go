package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	defaultApplicationName = "authhub"
	sqliteBusyTimeoutMS    = 5000
)

// dialect couples a DSN builder with the gorm dialector that consumes it.
type dialect struct {
	buildDSN func(Config) (string, error)
	open     func(string) gorm.Dialector
	prepare  func(*gorm.DB) error
}

var dialects = map[string]dialect{
	"sqlite":   {buildDSN: buildSQLiteDSN, open: sqlite.Open, prepare: enableForeignKeys},
	"postgres": {buildDSN: buildPostgresDSN, open: postgres.Open},
	"mysql":    {buildDSN: buildMySQLDSN, open: mysql.Open},
}

var driverAliases = map[string]string{
	"":           "sqlite",
	"sqlite3":    "sqlite",
	"postgresql": "postgres",
	"pgx":        "postgres",
	"mariadb":    "mysql",
}

func lookupDialect(driver string) (dialect, bool) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if alias, ok := driverAliases[name]; ok {
		name = alias
	}
	d, ok := dialects[name]
	return d, ok
}

func openDialect(d dialect, cfg Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		built, err := d.buildDSN(cfg)
		if err != nil {
			return nil, err
		}
		dsn = built
	}

	db, err := gorm.Open(d.open(dsn), gormConfig(cfg))
	if err != nil {
		return nil, err
	}
	if d.prepare != nil {
		if err := d.prepare(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func requireCredentials(driver string, cfg Config) error {
	if strings.TrimSpace(cfg.User) == "" || strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%s configuration requires user and database name", driver)
	}
	return nil
}

func hostPort(cfg Config, host string, port int) string {
	if h := strings.TrimSpace(cfg.Host); h != "" {
		host = h
	}
	if cfg.Port > 0 {
		port = cfg.Port
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// buildPostgresDSN renders a postgres:// URL. sslmode defaults to disable and
// the connection identifies itself as authhub unless Options override either.
func buildPostgresDSN(cfg Config) (string, error) {
	if err := requireCredentials("postgres", cfg); err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("sslmode", "disable")
	query.Set("application_name", defaultApplicationName)
	for key, value := range cfg.Options {
		query.Set(key, value)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.User(cfg.User),
		Host:     hostPort(cfg, "localhost", 5432),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String(), nil
}

// buildMySQLDSN delegates formatting to the driver so extra Options are
// validated the same way a hand-written DSN would be.
func buildMySQLDSN(cfg Config) (string, error) {
	if err := requireCredentials("mysql", cfg); err != nil {
		return "", err
	}

	base := mysqldriver.NewConfig()
	base.Net = "tcp"
	base.Addr = hostPort(cfg, "127.0.0.1", 3306)
	base.User = cfg.User
	base.Passwd = cfg.Password
	base.DBName = cfg.Name
	base.ParseTime = true
	base.Loc = time.UTC
	base.Collation = "utf8mb4_unicode_ci"

	dsn := base.FormatDSN()
	if len(cfg.Options) == 0 {
		return dsn, nil
	}

	keys := make([]string, 0, len(cfg.Options))
	for key := range cfg.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	extra := make([]string, 0, len(keys))
	for _, key := range keys {
		extra = append(extra, key+"="+url.QueryEscape(cfg.Options[key]))
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	parsed, err := mysqldriver.ParseDSN(dsn + sep + strings.Join(extra, "&"))
	if err != nil {
		return "", fmt.Errorf("mysql options: %w", err)
	}
	return parsed.FormatDSN(), nil
}

// buildSQLiteDSN targets a file on disk, creating its directory, or a shared
// in-memory database when no path is configured.
func buildSQLiteDSN(cfg Config) (string, error) {
	query := url.Values{}
	query.Set("_foreign_keys", "1")
	query.Set("_busy_timeout", strconv.Itoa(sqliteBusyTimeoutMS))

	path := strings.TrimSpace(cfg.Path)
	target := path
	if path == "" || strings.EqualFold(path, ":memory:") {
		target = ":memory:"
		query.Set("cache", "shared")
	} else {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		target = filepath.ToSlash(path)
		query.Set("_journal_mode", "WAL")
	}

	for key, value := range cfg.Options {
		query.Set(key, value)
	}
	return "file:" + target + "?" + query.Encode(), nil
}

func enableForeignKeys(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

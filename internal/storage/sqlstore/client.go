package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/platformbuilds/mirador-insights/internal/config"
)

const (
	DriverMySQL      = "mysql"
	DriverPostgreSQL = "postgresql"
	DriverSQLite     = "sqlite"
)

// Client wraps a database/sql pool together with its dialect.
type Client struct {
	DB     *sql.DB
	Driver string
}

// DriverName maps a configured driver to the database/sql driver name.
func DriverName(driver string) (string, error) {
	switch driver {
	case DriverMySQL:
		return "mysql", nil
	case DriverPostgreSQL:
		return "pgx", nil
	case DriverSQLite:
		return "sqlite", nil
	}
	return "", fmt.Errorf("unsupported sql driver %q", driver)
}

func dsnFrom(cfg config.SQLConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	switch cfg.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.User
		if mc.User == "" {
			mc.User = "root"
		}
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		mc.DBName = cfg.Database
		mc.ParseTime = true
		mc.Loc = time.UTC
		if len(cfg.Params) > 0 {
			mc.Params = cfg.Params
		}
		return mc.FormatDSN(), nil
	case DriverPostgreSQL:
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
			Path:   "/" + cfg.Database,
		}
		if cfg.User != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		}
		params := url.Values{}
		for k, v := range cfg.Params {
			params.Set(k, v)
		}
		u.RawQuery = params.Encode()
		return u.String(), nil
	case DriverSQLite:
		return "", fmt.Errorf("sqlite requires a dsn")
	}
	return "", fmt.Errorf("unsupported sql driver %q", cfg.Driver)
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg config.SQLConfig) (*Client, error) {
	driverName, err := DriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := dsnFrom(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 20
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 5
	}
	lifetime := time.Duration(cfg.ConnMaxLifetime) * time.Second
	if lifetime == 0 {
		lifetime = 30 * time.Minute
	}
	if cfg.Driver == DriverSQLite {
		// one writer; in-memory databases are per connection
		maxOpen, maxIdle = 1, 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}
	return &Client{DB: db, Driver: cfg.Driver}, nil
}

func (c *Client) Close() error { return c.DB.Close() }

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Rebind rewrites ? placeholders into the dialect's bind syntax.
func (c *Client) Rebind(query string) string {
	return Rebind(c.Driver, query)
}

func Rebind(driver, query string) string {
	if driver != DriverPostgreSQL {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// QuoteIdentifier quotes a validated identifier for the dialect. Dotted
// names are quoted per part.
func QuoteIdentifier(driver, ident string) string {
	q := `"`
	if driver == DriverMySQL {
		q = "`"
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = q + p + q
	}
	return strings.Join(parts, ".")
}

package sqlstore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-insights/internal/config"
)

func TestDSNFrom(t *testing.T) {
	dsn, err := dsnFrom(config.SQLConfig{Driver: DriverMySQL, Host: "db", User: "u", Password: "p", Database: "events"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "u:p@tcp(db:3306)/events?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")

	dsn, err = dsnFrom(config.SQLConfig{Driver: DriverPostgreSQL, Host: "pg", User: "u", Password: "p", Database: "events",
		Params: map[string]string{"sslmode": "disable"}})
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@pg:5432/events?sslmode=disable", dsn)

	dsn, err = dsnFrom(config.SQLConfig{Driver: DriverSQLite, DSN: "file.db"})
	require.NoError(t, err)
	assert.Equal(t, "file.db", dsn)

	_, err = dsnFrom(config.SQLConfig{Driver: DriverSQLite})
	assert.Error(t, err)
	_, err = dsnFrom(config.SQLConfig{Driver: "oracle", Host: "x"})
	assert.Error(t, err)
}

func TestDriverName(t *testing.T) {
	for in, want := range map[string]string{DriverMySQL: "mysql", DriverPostgreSQL: "pgx", DriverSQLite: "sqlite"} {
		got, err := DriverName(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := DriverName("mssql")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "SELECT MIN(ts) FROM t WHERE ts >= ? AND ts < ?"
	assert.Equal(t, "SELECT MIN(ts) FROM t WHERE ts >= $1 AND ts < $2", Rebind(DriverPostgreSQL, q))
	assert.Equal(t, q, Rebind(DriverMySQL, q))
	assert.Equal(t, q, Rebind(DriverSQLite, q))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`analytics`.`events`", QuoteIdentifier(DriverMySQL, "analytics.events"))
	assert.Equal(t, `"events"`, QuoteIdentifier(DriverPostgreSQL, "events"))
}

func TestOpen_SQLite(t *testing.T) {
	c, err := Open(context.Background(), config.SQLConfig{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.HealthCheck(context.Background()))
	_, err = c.DB.Exec("CREATE TABLE t (id INTEGER)")
	assert.NoError(t, err)
}

package repo

import (
	"context"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-insights/internal/config"
	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/storage/sqlstore"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

func openSQLite(t *testing.T) *sqlstore.Client {
	t.Helper()
	client, err := sqlstore.Open(context.Background(), config.SQLConfig{
		Driver: sqlstore.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "datasets.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestMigrate_UpDownUp(t *testing.T) {
	client := openSQLite(t)
	log := logger.NewNop()

	require.NoError(t, Migrate(client, LatestVersion, log))
	v, dirty, err := SchemaVersion(client)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), v)

	// already current
	require.NoError(t, Migrate(client, LatestVersion, log))

	require.NoError(t, Migrate(client, 1, log))
	v, _, err = SchemaVersion(client)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	require.NoError(t, Migrate(client, 0, log))
	v, _, err = SchemaVersion(client)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)

	require.NoError(t, Migrate(client, LatestVersion, log))
}

func TestMigrate_UnsupportedDriver(t *testing.T) {
	err := Migrate(&sqlstore.Client{Driver: "oracle"}, LatestVersion, logger.NewNop())
	assert.Error(t, err)
}

func TestDatasetRepo_CRUD(t *testing.T) {
	client := openSQLite(t)
	require.NoError(t, Migrate(client, LatestVersion, logger.NewNop()))
	r := NewDatasetRepo(client, logger.NewNop())
	ctx := context.Background()

	ds := &models.DatasetConfig{
		Name:       "pageviews",
		DataSource: "warehouse",
		Table:      "pageviews_raw",
		TimeColumn: "ts",
		TimeFormat: models.TimeFormatEpochSeconds,
		Timezone:   "Europe/Paris",
		Dimensions: []string{"country", "browser"},
		Properties: map[string]string{"selector": `{job="web"}`},
	}
	require.NoError(t, r.Upsert(ctx, ds))

	got, err := r.FindByName(ctx, "pageviews")
	require.NoError(t, err)
	assert.Equal(t, ds, got)

	ds.DataSource = "replica"
	ds.Dimensions = nil
	require.NoError(t, r.Upsert(ctx, ds))
	got, err = r.FindByName(ctx, "pageviews")
	require.NoError(t, err)
	assert.Equal(t, "replica", got.DataSource)
	assert.Nil(t, got.Dimensions)

	require.NoError(t, r.Upsert(ctx, &models.DatasetConfig{Name: "clicks", DataSource: "warehouse"}))
	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "clicks", all[0].Name)
	assert.Equal(t, "pageviews", all[1].Name)

	require.NoError(t, r.Delete(ctx, "clicks"))
	assert.ErrorIs(t, r.Delete(ctx, "clicks"), ErrNotFound)
	_, err = r.FindByName(ctx, "clicks")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, r.HealthCheck(ctx))
}

func TestDatasetRepo_UpsertValidates(t *testing.T) {
	client := openSQLite(t)
	require.NoError(t, Migrate(client, LatestVersion, logger.NewNop()))
	r := NewDatasetRepo(client, logger.NewNop())

	assert.Error(t, r.Upsert(context.Background(), &models.DatasetConfig{DataSource: "x"}))
}

func TestDatasetRepo_UpsertStatementPerDialect(t *testing.T) {
	mysqlRepo := NewDatasetRepo(&sqlstore.Client{Driver: sqlstore.DriverMySQL}, logger.NewNop())
	assert.Contains(t, mysqlRepo.upsertStatement(), "ON DUPLICATE KEY UPDATE")

	pgRepo := NewDatasetRepo(&sqlstore.Client{Driver: sqlstore.DriverPostgreSQL}, logger.NewNop())
	stmt := pgRepo.upsertStatement()
	assert.Contains(t, stmt, "ON CONFLICT (name)")
	assert.Contains(t, stmt, "$10")
	assert.NotContains(t, stmt, "?")
}

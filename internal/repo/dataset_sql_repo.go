package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/monitoring"
	"github.com/platformbuilds/mirador-insights/internal/storage/sqlstore"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

const datasetTable = "dataset_config"

const datasetColumns = "name, description, data_source, table_name, time_column, time_format, time_zone, dimensions, properties"

// DatasetRepo stores dataset configurations in the dataset_config table.
type DatasetRepo struct {
	client *sqlstore.Client
	logger logger.Logger
	now    func() time.Time
}

func NewDatasetRepo(client *sqlstore.Client, log logger.Logger) *DatasetRepo {
	return &DatasetRepo{client: client, logger: log, now: time.Now}
}

func (r *DatasetRepo) FindByName(ctx context.Context, name string) (*models.DatasetConfig, error) {
	start := time.Now()
	q := r.client.Rebind("SELECT " + datasetColumns + " FROM " + datasetTable + " WHERE name = ?")
	ds, err := scanDataset(r.client.DB.QueryRowContext(ctx, q, name))
	monitoring.RecordDBOperation("select", datasetTable, time.Since(start), err == nil || errors.Is(err, sql.ErrNoRows))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", name, err)
	}
	return ds, nil
}

func (r *DatasetRepo) List(ctx context.Context) ([]models.DatasetConfig, error) {
	start := time.Now()
	rows, err := r.client.DB.QueryContext(ctx, "SELECT "+datasetColumns+" FROM "+datasetTable+" ORDER BY name")
	if err != nil {
		monitoring.RecordDBOperation("select", datasetTable, time.Since(start), false)
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var out []models.DatasetConfig
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			monitoring.RecordDBOperation("select", datasetTable, time.Since(start), false)
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		out = append(out, *ds)
	}
	err = rows.Err()
	monitoring.RecordDBOperation("select", datasetTable, time.Since(start), err == nil)
	return out, err
}

// Upsert inserts the dataset or replaces the row with the same name.
func (r *DatasetRepo) Upsert(ctx context.Context, ds *models.DatasetConfig) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	dims, err := json.Marshal(ds.Dimensions)
	if err != nil {
		return err
	}
	props, err := json.Marshal(ds.Properties)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = r.client.DB.ExecContext(ctx, r.upsertStatement(),
		ds.Name, ds.Description, ds.DataSource, ds.Table, ds.TimeColumn,
		string(ds.TimeFormat), ds.Timezone, string(dims), string(props), r.now().UnixMilli())
	monitoring.RecordDBOperation("upsert", datasetTable, time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("failed to upsert dataset %s: %w", ds.Name, err)
	}
	r.logger.Debug("Dataset stored", "dataset", ds.Name, "dataSource", ds.DataSource)
	return nil
}

func (r *DatasetRepo) Delete(ctx context.Context, name string) error {
	start := time.Now()
	res, err := r.client.DB.ExecContext(ctx, r.client.Rebind("DELETE FROM "+datasetTable+" WHERE name = ?"), name)
	monitoring.RecordDBOperation("delete", datasetTable, time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}
	return nil
}

func (r *DatasetRepo) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}

func (r *DatasetRepo) upsertStatement() string {
	insert := "INSERT INTO " + datasetTable + " (" + datasetColumns + ", updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	if r.client.Driver == sqlstore.DriverMySQL {
		return insert + ` ON DUPLICATE KEY UPDATE description = VALUES(description), data_source = VALUES(data_source),
 table_name = VALUES(table_name), time_column = VALUES(time_column), time_format = VALUES(time_format),
 time_zone = VALUES(time_zone), dimensions = VALUES(dimensions), properties = VALUES(properties), updated_at = VALUES(updated_at)`
	}
	return r.client.Rebind(insert + ` ON CONFLICT (name) DO UPDATE SET description = excluded.description,
 data_source = excluded.data_source, table_name = excluded.table_name, time_column = excluded.time_column,
 time_format = excluded.time_format, time_zone = excluded.time_zone, dimensions = excluded.dimensions,
 properties = excluded.properties, updated_at = excluded.updated_at`)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (*models.DatasetConfig, error) {
	var (
		ds                                        models.DatasetConfig
		desc, table, col, format, tz, dims, props sql.NullString
	)
	if err := row.Scan(&ds.Name, &desc, &ds.DataSource, &table, &col, &format, &tz, &dims, &props); err != nil {
		return nil, err
	}
	ds.Description = desc.String
	ds.Table = table.String
	ds.TimeColumn = col.String
	ds.TimeFormat = models.TimeFormat(format.String)
	ds.Timezone = tz.String
	if dims.Valid && dims.String != "" && dims.String != "null" {
		if err := json.Unmarshal([]byte(dims.String), &ds.Dimensions); err != nil {
			return nil, fmt.Errorf("dataset %s: bad dimensions: %w", ds.Name, err)
		}
	}
	if props.Valid && props.String != "" && props.String != "null" {
		if err := json.Unmarshal([]byte(props.String), &ds.Properties); err != nil {
			return nil, fmt.Errorf("dataset %s: bad properties: %w", ds.Name, err)
		}
	}
	return &ds, nil
}

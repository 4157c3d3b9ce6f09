package models

import (
	"fmt"
	"strings"
)

type TimeFormat string

const (
	TimeFormatEpochMillis  TimeFormat = "EPOCH_MILLIS"
	TimeFormatEpochSeconds TimeFormat = "EPOCH_SECONDS"
	TimeFormatTimestamp    TimeFormat = "TIMESTAMP"
)

// DatasetConfig locates a dataset's events and its time column.
type DatasetConfig struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	DataSource  string            `json:"dataSource" yaml:"dataSource"`
	Table       string            `json:"table,omitempty" yaml:"table,omitempty"`
	TimeColumn  string            `json:"timeColumn,omitempty" yaml:"timeColumn,omitempty"`
	TimeFormat  TimeFormat        `json:"timeFormat,omitempty" yaml:"timeFormat,omitempty"`
	Timezone    string            `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Dimensions  []string          `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Properties  map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// EffectiveTimeFormat returns the configured format, EPOCH_MILLIS when unset.
func (d *DatasetConfig) EffectiveTimeFormat() TimeFormat {
	if d.TimeFormat == "" {
		return TimeFormatEpochMillis
	}
	return TimeFormat(strings.ToUpper(string(d.TimeFormat)))
}

// EffectiveTable returns Table, falling back to the dataset name.
func (d *DatasetConfig) EffectiveTable() string {
	if d.Table == "" {
		return d.Name
	}
	return d.Table
}

func (d *DatasetConfig) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("dataset name is required")
	}
	switch d.EffectiveTimeFormat() {
	case TimeFormatEpochMillis, TimeFormatEpochSeconds, TimeFormatTimestamp:
	default:
		return fmt.Errorf("dataset %s: unsupported time format %q", d.Name, d.TimeFormat)
	}
	return nil
}

// Interval is a half-open [Start, End) range of epoch milliseconds.
type Interval struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (i Interval) String() string {
	return fmt.Sprintf("[%d, %d)", i.Start, i.End)
}

package models

// DatasetBoundary is the reconciled time range of a dataset, in epoch millis.
// SuspiciousMaxTime carries the raw maximum only when it was rejected as
// implausible; MaxTime then holds the maximum found inside the safe interval.
type DatasetBoundary struct {
	DatasetName       string `json:"datasetName"`
	MinTime           *int64 `json:"minTime,omitempty"`
	MaxTime           *int64 `json:"maxTime,omitempty"`
	SuspiciousMaxTime *int64 `json:"suspiciousMaxTime,omitempty"`
}

// DefaultWindow is the initial chart range [StartTime, EndTime).
type DefaultWindow struct {
	StartTime   int64  `json:"startTime"`
	EndTime     int64  `json:"endTime"`
	Granularity string `json:"granularity,omitempty"`
	Lookback    string `json:"lookback,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// AlertInsights is returned to clients. Every timestamp is optional and
// omitted when unknown.
type AlertInsights struct {
	TemplateWithProperties   *RenderedTemplate `json:"templateWithProperties,omitempty"`
	DatasetStartTime         *int64            `json:"datasetStartTime,omitempty"`
	DatasetEndTime           *int64            `json:"datasetEndTime,omitempty"`
	SuspiciousDatasetEndTime *int64            `json:"suspiciousDatasetEndTime,omitempty"`
	DefaultStartTime         *int64            `json:"defaultStartTime,omitempty"`
	DefaultEndTime           *int64            `json:"defaultEndTime,omitempty"`
}

func Int64Ptr(v int64) *int64 {
	return &v
}

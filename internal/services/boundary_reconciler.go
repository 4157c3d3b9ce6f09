package services

import "github.com/platformbuilds/mirador-insights/internal/models"

// ReconcileBoundary applies the plausibility check to a fetched boundary. A
// raw max later than maximumPossibleEndTime is reported as SuspiciousMaxTime
// and replaced by the max found inside the safe interval, which may itself be
// absent.
func ReconcileBoundary(datasetName string, fetched FetchedBoundary, maximumPossibleEndTime int64) models.DatasetBoundary {
	boundary := models.DatasetBoundary{
		DatasetName: datasetName,
		MinTime:     fetched.MinTime,
	}
	switch {
	case fetched.MaxTime == nil:
	case *fetched.MaxTime <= maximumPossibleEndTime:
		boundary.MaxTime = fetched.MaxTime
	default:
		boundary.SuspiciousMaxTime = fetched.MaxTime
		boundary.MaxTime = fetched.SafeMaxTime
	}
	return boundary
}

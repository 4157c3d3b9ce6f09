// Package repo holds the dataset, template and alert stores the insights
// service reads from: a YAML catalog, a SQL dataset table and a Valkey
// cache in front of either.
package repo

import "errors"

// ErrNotFound is returned by every lookup in this package when the named
// entity does not exist.
var ErrNotFound = errors.New("not found")

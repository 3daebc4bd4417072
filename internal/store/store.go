// Package store persists experiment results.
package store

import (
	"context"
	"errors"

	"github.com/nvandessel/sdrsweep/internal/models"
)

// DefaultPartition is the partition key used when a result carries none.
const DefaultPartition = "experiment-results"

var (
	// ErrNotFound is returned by Get for an unknown row key.
	ErrNotFound = errors.New("result not found")

	// ErrDuplicate is returned by Save when the row key already exists.
	ErrDuplicate = errors.New("result already exists")
)

// ResultStore is the results table.
type ResultStore interface {
	// Save inserts res, assigning PartitionKey and a fresh RowKey when they
	// are empty, and returns the row key.
	Save(ctx context.Context, res *models.Result) (string, error)

	// Get returns the result stored under rowKey.
	Get(ctx context.Context, rowKey string) (*models.Result, error)

	// List returns up to limit results, most recent start time first.
	// A limit <= 0 returns everything.
	List(ctx context.Context, limit int) ([]models.Result, error)

	// Count returns the number of stored results.
	Count(ctx context.Context) (int, error)

	Close() error
}

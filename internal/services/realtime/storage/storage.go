// Package storage defines the persistence contract for board canvas snapshots.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates no snapshot has been persisted for a board.
var ErrNotFound = errors.New("board not found")

// BoardStore persists the latest serialized canvas per board.
//
// The canvas blob is opaque to the coordinator: the last successful SetCanvas
// fully replaces the prior value with no merge or version check.
type BoardStore interface {
	GetCanvas(ctx context.Context, boardID int64) (string, error)
	SetCanvas(ctx context.Context, boardID int64, canvas string) error
}

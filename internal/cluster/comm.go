// Package cluster provides the SPMD group an export runs on: a fixed set of
// ranks that share one broadcast from rank 0 and an optional barrier.
package cluster

import (
	"context"
	"errors"
)

// Root is the rank that resolves the cube and broadcasts the export context.
const Root = 0

var ErrClosed = errors.New("communicator closed")

// Communicator is one rank's view of the group. Every rank must call the
// collective operations in the same order.
type Communicator interface {
	Rank() int
	Size() int
	// Broadcast sends blob from the root to every rank and returns it. The
	// blob argument is ignored on non-root ranks.
	Broadcast(ctx context.Context, blob []byte) ([]byte, error)
	// Barrier returns once every rank has entered it.
	Barrier(ctx context.Context) error
	Close() error
}

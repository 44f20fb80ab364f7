// Package runner launches the ranks of an export, either as goroutines of
// this process or as one rank of a multi-process HTTP group.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/cubexport/internal/cluster"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/export"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Exporter runs one rank of an export.
type Exporter interface {
	Run(ctx context.Context, comm cluster.Communicator, req export.Request) (*export.Result, error)
}

// Outcome is what one rank returned.
type Outcome struct {
	Rank   int
	Result *export.Result
	Err    error
}

// RunLocal runs req on workers in-process ranks and waits for all of them.
// A failing rank does not cancel its siblings.
func RunLocal(ctx context.Context, exp Exporter, workers int, req export.Request) ([]Outcome, error) {
	comms, err := cluster.NewLocalGroup(workers)
	if err != nil {
		return nil, xerr.Configuration("runner.local", "invalid worker count", err)
	}
	slog.Info("[Runner] Starting local ranks", "workers", workers, "datacube_id", req.CubeID)

	out := make([]Outcome, workers)
	var g errgroup.Group
	for i, comm := range comms {
		g.Go(func() error {
			defer comm.Close()
			res, err := exp.Run(ctx, comm, req)
			out[i] = Outcome{Rank: comm.Rank(), Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// HTTPConfig places this process in an HTTP group.
type HTTPConfig struct {
	Rank int
	Size int
	// CoordinatorAddr is where rank 0 listens; unused on rank 0.
	CoordinatorAddr string
	// ListenAddr is the coordination address served by rank 0.
	ListenAddr       string
	BroadcastTimeout time.Duration
	Linger           time.Duration
	GinMode          string
	// Gatherer is exposed on /metrics by rank 0 when set.
	Gatherer prometheus.Gatherer
}

// RunHTTP runs this process's rank of req.
func RunHTTP(ctx context.Context, exp Exporter, cfg HTTPConfig, req export.Request) (Outcome, error) {
	comm, err := dial(cfg)
	if err != nil {
		return Outcome{Rank: cfg.Rank}, err
	}
	slog.Info("[Runner] Joined export group", "rank", cfg.Rank, "size", cfg.Size, "datacube_id", req.CubeID)

	res, runErr := exp.Run(ctx, comm, req)
	if err := comm.Close(); err != nil {
		slog.Warn("[Runner] Failed to leave export group", "rank", cfg.Rank, "error", err)
	}
	return Outcome{Rank: cfg.Rank, Result: res, Err: runErr}, nil
}

func dial(cfg HTTPConfig) (cluster.Communicator, error) {
	if cfg.Rank == cluster.Root {
		root, err := cluster.NewHTTPRoot(cluster.HTTPRootConfig{
			ListenAddr: cfg.ListenAddr,
			Size:       cfg.Size,
			Linger:     cfg.Linger,
			Gatherer:   cfg.Gatherer,
			GinMode:    cfg.GinMode,
		})
		if err != nil {
			return nil, xerr.IO("runner.http", "failed to start coordinator", err)
		}
		slog.Info("[Runner] Coordinator listening", "addr", root.Addr())
		return root, nil
	}
	client, err := cluster.NewHTTPClient(cfg.CoordinatorAddr, cfg.Rank, cfg.Size, cfg.BroadcastTimeout)
	if err != nil {
		return nil, xerr.Configuration("runner.http", "invalid group settings", err)
	}
	return client, nil
}

// Err folds the outcomes of a run into the error the process reports.
// Rank 0's outcome decides when it failed; otherwise the first failing rank
// does. A run where every rank found the output already published reports
// that, which callers treat as success.
func Err(outcomes []Outcome) error {
	var first error
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		if o.Rank == cluster.Root {
			return o.Err
		}
		if first == nil {
			first = fmt.Errorf("rank %d: %w", o.Rank, o.Err)
		}
	}
	return first
}

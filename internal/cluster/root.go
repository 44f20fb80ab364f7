package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const drainPoll = 20 * time.Millisecond

// HTTPRootConfig configures the rank 0 side of the HTTP transport.
type HTTPRootConfig struct {
	ListenAddr string
	Size       int
	// Linger bounds how long Close waits for the other ranks to collect the
	// last broadcast and barrier release.
	Linger   time.Duration
	Gatherer prometheus.Gatherer
	GinMode  string
}

// HTTPRoot is rank 0 of an HTTP group. It serves the coordination endpoint
// and takes part in collectives directly on the shared state.
type HTTPRoot struct {
	server *Server
	addr   string
	linger time.Duration

	cancel context.CancelFunc
	done   chan error

	seq    int
	epoch  int
	closed bool
}

// NewHTTPRoot starts the coordination server.
func NewHTTPRoot(cfg HTTPRootConfig) (*HTTPRoot, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("group size must be at least 1, got %d", cfg.Size)
	}
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &HTTPRoot{
		server: NewServer(ln.Addr().String(), cfg.Size, cfg.Gatherer, cfg.GinMode),
		addr:   ln.Addr().String(),
		linger: cfg.Linger,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() { r.done <- r.server.Serve(ctx, ln) }()
	return r, nil
}

// Addr is the address the coordination server listens on.
func (r *HTTPRoot) Addr() string { return r.addr }

func (r *HTTPRoot) Rank() int { return Root }
func (r *HTTPRoot) Size() int { return r.server.state.size }

func (r *HTTPRoot) Broadcast(_ context.Context, blob []byte) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	r.server.state.publish(r.seq, blob)
	r.seq++
	return blob, nil
}

func (r *HTTPRoot) Barrier(ctx context.Context) error {
	if r.closed {
		return ErrClosed
	}
	_, _, release := r.server.state.arrive(r.epoch, Root)
	r.epoch++
	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits until every rank has observed the collectives issued so far,
// or the linger timeout expires, then stops the server.
func (r *HTTPRoot) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	deadline := time.Now().Add(r.linger)
	for !r.server.state.drained(r.seq, r.epoch) {
		if time.Now().After(deadline) {
			slog.Warn("[Cluster] Closing before every rank collected the last broadcast",
				"broadcasts", r.seq,
				"barriers", r.epoch)
			break
		}
		time.Sleep(drainPoll)
	}
	r.cancel()
	return <-r.done
}

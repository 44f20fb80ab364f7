package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
)

const (
	minPoll = 20 * time.Millisecond
	maxPoll = 500 * time.Millisecond
)

// HTTPClient is a non-root rank of an HTTP group. It polls the coordinator
// until each collective completes, so ranks may start before rank 0 listens.
type HTTPClient struct {
	base   string
	rank   int
	size   int
	client *http.Client
	// timeout bounds each collective. Zero waits for the caller's context only.
	timeout time.Duration

	seq    int
	epoch  int
	closed bool
}

// NewHTTPClient connects rank to the coordinator at addr ("host:port" or a URL).
func NewHTTPClient(addr string, rank, size int, timeout time.Duration) (*HTTPClient, error) {
	if rank <= Root || rank >= size {
		return nil, fmt.Errorf("rank %d is not a client rank of a group of %d", rank, size)
	}
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &HTTPClient{
		base:    base,
		rank:    rank,
		size:    size,
		client:  &http.Client{Timeout: 10 * time.Second},
		timeout: timeout,
	}, nil
}

func (c *HTTPClient) Rank() int { return c.rank }
func (c *HTTPClient) Size() int { return c.size }

func (c *HTTPClient) Broadcast(ctx context.Context, _ []byte) ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}
	url := fmt.Sprintf("%s/v1/broadcast/%d?rank=%d", c.base, c.seq, c.rank)
	var blob []byte
	err := c.poll(ctx, "broadcast", func(ctx context.Context) (bool, error) {
		resp, err := c.do(ctx, http.MethodGet, url)
		if err != nil {
			return false, nil
		}
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			blob, err = io.ReadAll(resp.Body)
			return err == nil, err
		case http.StatusNotFound:
			return false, nil
		default:
			return false, decodeError(resp)
		}
	})
	if err != nil {
		return nil, err
	}
	c.seq++
	return blob, nil
}

func (c *HTTPClient) Barrier(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	url := fmt.Sprintf("%s/v1/barrier/%d?rank=%d", c.base, c.epoch, c.rank)
	err := c.poll(ctx, "barrier", func(ctx context.Context) (bool, error) {
		resp, err := c.do(ctx, http.MethodPost, url)
		if err != nil {
			return false, nil
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false, decodeError(resp)
		}
		var body barrierResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false, fmt.Errorf("failed to decode barrier response: %w", err)
		}
		return body.Released, nil
	})
	if err != nil {
		return err
	}
	c.epoch++
	return nil
}

func (c *HTTPClient) Close() error {
	c.closed = true
	c.client.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

// poll calls attempt with a growing interval until it reports done, fails,
// or the collective times out. Transport errors are retried: the coordinator
// may not be up yet.
func (c *HTTPClient) poll(ctx context.Context, what string, attempt func(context.Context) (bool, error)) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	wait := minPoll
	for tries := 1; ; tries++ {
		done, err := attempt(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return xerr.IO("cluster."+what, fmt.Sprintf("rank %d timed out waiting for %s after %d attempts", c.rank, what, tries), ctx.Err())
			}
			return ctx.Err()
		case <-time.After(wait):
		}
		if tries%50 == 0 {
			slog.Debug("[Cluster] Still waiting for coordinator", "rank", c.rank, "operation", what, "attempts", tries)
		}
		wait = min(wait*2, maxPoll)
	}
}

func decodeError(resp *http.Response) error {
	var body xerr.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		return fmt.Errorf("coordinator returned %s", resp.Status)
	}
	return fmt.Errorf("coordinator returned %s: %s: %s", resp.Status, body.ErrorType, body.Message)
}

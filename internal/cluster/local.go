package cluster

import (
	"context"
	"fmt"
	"sync"
)

// localGroup is the shared state of in-process ranks.
type localGroup struct {
	size int

	mu         sync.Mutex
	broadcasts map[int]*slot
	barriers   map[int]*gate
}

type slot struct {
	ready   chan struct{}
	blob    []byte
	readers int
}

type gate struct {
	arrived int
	release chan struct{}
}

// NewLocalGroup returns n communicators backed by channels, one per rank.
func NewLocalGroup(n int) ([]Communicator, error) {
	if n < 1 {
		return nil, fmt.Errorf("group size must be at least 1, got %d", n)
	}
	g := &localGroup{
		size:       n,
		broadcasts: make(map[int]*slot),
		barriers:   make(map[int]*gate),
	}
	comms := make([]Communicator, n)
	for r := 0; r < n; r++ {
		comms[r] = &localComm{group: g, rank: r}
	}
	return comms, nil
}

func (g *localGroup) slot(seq int) *slot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.broadcasts[seq]
	if !ok {
		s = &slot{ready: make(chan struct{})}
		g.broadcasts[seq] = s
	}
	return s
}

func (g *localGroup) gate(epoch int) *gate {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.barriers[epoch]
	if !ok {
		b = &gate{release: make(chan struct{})}
		g.barriers[epoch] = b
	}
	return b
}

type localComm struct {
	group  *localGroup
	rank   int
	seq    int
	epoch  int
	closed bool
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.group.size }

func (c *localComm) Broadcast(ctx context.Context, blob []byte) ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}
	seq := c.seq
	c.seq++
	s := c.group.slot(seq)

	if c.rank == Root {
		s.blob = append([]byte(nil), blob...)
		close(s.ready)
		if c.group.size == 1 {
			c.group.mu.Lock()
			delete(c.group.broadcasts, seq)
			c.group.mu.Unlock()
		}
		return blob, nil
	}
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.group.mu.Lock()
	s.readers++
	if s.readers == c.group.size-1 {
		delete(c.group.broadcasts, seq)
	}
	c.group.mu.Unlock()
	return append([]byte(nil), s.blob...), nil
}

func (c *localComm) Barrier(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	epoch := c.epoch
	c.epoch++
	b := c.group.gate(epoch)

	c.group.mu.Lock()
	b.arrived++
	if b.arrived == c.group.size {
		close(b.release)
		delete(c.group.barriers, epoch)
	}
	c.group.mu.Unlock()

	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *localComm) Close() error {
	c.closed = true
	return nil
}

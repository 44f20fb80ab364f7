package cluster

import (
	"sync"
)

// coordState is the rank 0 bookkeeping behind the HTTP transport.
type coordState struct {
	size int

	mu         sync.Mutex
	broadcasts map[int][]byte
	barriers   map[int]*epochState
	// fetched[r] and released[r] count the broadcasts and barriers rank r
	// has observed, so the root can linger until every rank is done.
	fetched  []int
	released []int
}

type epochState struct {
	arrived map[int]bool
	release chan struct{}
}

func newCoordState(size int) *coordState {
	return &coordState{
		size:       size,
		broadcasts: make(map[int][]byte),
		barriers:   make(map[int]*epochState),
		fetched:    make([]int, size),
		released:   make([]int, size),
	}
}

func (s *coordState) publish(seq int, blob []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasts[seq] = append([]byte(nil), blob...)
}

// fetch returns the blob of broadcast seq, if published, on behalf of rank.
func (s *coordState) fetch(seq, rank int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.broadcasts[seq]
	if ok && s.fetched[rank] <= seq {
		s.fetched[rank] = seq + 1
	}
	return blob, ok
}

func (s *coordState) epoch(e int) *epochState {
	b, ok := s.barriers[e]
	if !ok {
		b = &epochState{arrived: make(map[int]bool), release: make(chan struct{})}
		s.barriers[e] = b
	}
	return b
}

// arrive records rank at barrier e. It returns the number of ranks arrived,
// whether the barrier is released, and the release channel.
func (s *coordState) arrive(e, rank int) (int, bool, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.epoch(e)
	if !b.arrived[rank] {
		b.arrived[rank] = true
		if len(b.arrived) == s.size {
			close(b.release)
		}
	}
	released := len(b.arrived) == s.size
	if released && s.released[rank] <= e {
		s.released[rank] = e + 1
	}
	return len(b.arrived), released, b.release
}

// drained reports whether every non-root rank observed broadcasts [0, seqs)
// and barriers [0, epochs).
func (s *coordState) drained(seqs, epochs int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for r := 1; r < s.size; r++ {
		if s.fetched[r] < seqs || s.released[r] < epochs {
			return false
		}
	}
	return true
}

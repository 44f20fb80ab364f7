package sink

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages Sink implementations by format.
type Registry struct {
	mu    sync.RWMutex
	sinks map[Format]Sink
}

func NewRegistry() *Registry {
	return &Registry{sinks: make(map[Format]Sink)}
}

// Register adds s under its own format, replacing any previous sink.
func (r *Registry) Register(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[s.Format()] = s
}

// Get returns the sink for format. Returns error if the format is not registered.
func (r *Registry) Get(format Format) (Sink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sinks[format]
	if !ok {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	return s, nil
}

func (r *Registry) IsFormatSupported(format Format) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sinks[format]
	return ok
}

// SupportedFormats returns the registered formats in name order.
func (r *Registry) SupportedFormats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]Format, 0, len(r.sinks))
	for f := range r.sinks {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eunmann/affxfusion/pkg/cdf"
	"github.com/eunmann/affxfusion/pkg/cel"
	"github.com/eunmann/affxfusion/pkg/fetch"
	"github.com/eunmann/affxfusion/pkg/format"
)

// handle is one open file. Readers are not safe for concurrent use, so
// every request holds mu while it touches the file.
type handle struct {
	id       string
	source   string
	kind     format.Kind
	opened   time.Time
	resolved *fetch.Resolved

	mu     sync.Mutex
	layout *cdf.File
	scan   *cel.File
}

func (h *handle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	if h.layout != nil {
		err = h.layout.Close()
	}
	if h.scan != nil {
		err = h.scan.Close()
	}
	if rerr := h.resolved.Close(); err == nil {
		err = rerr
	}
	return err
}

// store maps handle ids to open files.
type store struct {
	mu      sync.RWMutex
	handles map[string]*handle
	max     int
}

func newStore(max int) *store {
	return &store{handles: make(map[string]*handle), max: max}
}

// add registers h under a fresh id. It reports false when the store is full.
func (s *store) add(h *handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max > 0 && len(s.handles) >= s.max {
		return false
	}
	h.id = uuid.NewString()
	s.handles[h.id] = h
	return true
}

func (s *store) get(id string) (*handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[id]
	return h, ok
}

func (s *store) remove(id string) (*handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	if ok {
		delete(s.handles, id)
	}
	return h, ok
}

// list returns the open handles, oldest first.
func (s *store) list() []*handle {
	s.mu.RLock()
	out := make([]*handle, 0, len(s.handles))
	for _, h := range s.handles {
		out = append(out, h)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].opened.Equal(out[j].opened) {
			return out[i].id < out[j].id
		}
		return out[i].opened.Before(out[j].opened)
	})
	return out
}

// closeAll closes and forgets every handle.
func (s *store) closeAll() {
	s.mu.Lock()
	handles := s.handles
	s.handles = make(map[string]*handle)
	s.mu.Unlock()
	for _, h := range handles {
		h.close()
	}
}

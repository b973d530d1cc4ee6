package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/pipeline"
)

// Flow is the state of one document moving through the pages.
type Flow struct {
	ID         string            `json:"id"`
	Page       Page              `json:"page"`
	DocType    constants.DocType `json:"doc_type,omitempty"`
	Filename   string            `json:"filename,omitempty"`
	Extraction *extract.Document `json:"extraction,omitempty"`
	Result     *pipeline.Result  `json:"result,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Transition moves the flow to page to, or fails with ErrIllegalTransition.
// Returning Home clears everything gathered so far.
func (f *Flow) Transition(to Page) error {
	if !CanTransition(f.Page, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, f.Page, to)
	}
	if to == Home {
		f.DocType, f.Filename, f.Extraction, f.Result = "", "", nil, nil
	}
	f.Page = to
	f.UpdatedAt = time.Now()
	return nil
}

// Store keeps flows by id. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	flows map[string]*Flow
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{flows: make(map[string]*Flow), now: time.Now}
}

// Create starts a new flow on the Home page.
func (s *Store) Create() Flow {
	f := &Flow{ID: uuid.NewString(), Page: Home, UpdatedAt: s.now()}
	s.mu.Lock()
	s.flows[f.ID] = f
	s.mu.Unlock()
	return *f
}

func (s *Store) Get(id string) (Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flows[id]
	if !ok {
		return Flow{}, common.NotFoundErrorf("document %s not found", id)
	}
	return *f, nil
}

// Update applies fn to a copy of the flow and stores it only if fn succeeds.
func (s *Store) Update(id string, fn func(*Flow) error) (Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.flows[id]
	if !ok {
		return Flow{}, common.NotFoundErrorf("document %s not found", id)
	}
	f := *cur
	if err := fn(&f); err != nil {
		return *cur, err
	}
	s.flows[id] = &f
	return f, nil
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.flows, id)
	s.mu.Unlock()
}

// Prune drops flows idle for longer than ttl and returns how many were removed.
func (s *Store) Prune(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, f := range s.flows {
		if f.UpdatedAt.Before(cutoff) {
			delete(s.flows, id)
			n++
		}
	}
	return n
}

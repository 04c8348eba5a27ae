package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
)

// MemoryCheckpointStore keeps the latest state per run in memory. Runs are
// short-lived and hold non-serializable context values, so nothing is
// persisted.
type MemoryCheckpointStore struct {
	mu     sync.Mutex
	states map[string]state.State
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{states: make(map[string]state.State)}
}

func (s *MemoryCheckpointStore) Save(st state.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.RunID] = st
	return nil
}

func (s *MemoryCheckpointStore) Load(runID string) (state.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[runID]
	if !ok {
		return state.State{}, fmt.Errorf("checkpoint not found: %s", runID)
	}
	return st, nil
}

func (s *MemoryCheckpointStore) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, runID)
	return nil
}

func (s *MemoryCheckpointStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

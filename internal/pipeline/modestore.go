package pipeline

import (
	"sync"

	"voicebot/internal/domain"
)

// ModeStore holds the per-user reply-mode preference for combined
// (caption+voice) requests. It is injected into whatever needs it rather
// than living in a package-level variable, so tests and multi-tenant
// deployments get isolated state.
//
// A single RWMutex guards the map; user keys are independent and
// last-write-wins is acceptable, so no finer-grained locking is needed. The
// lock is never held across external calls.
type ModeStore struct {
	mu    sync.RWMutex
	modes map[string]domain.Mode
}

// NewModeStore creates an empty ModeStore.
func NewModeStore() *ModeStore {
	return &ModeStore{modes: make(map[string]domain.Mode)}
}

// Get returns the stored mode for the user, defaulting to ModeText.
func (s *ModeStore) Get(userID string) domain.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.modes[userID]; ok {
		return m
	}
	return domain.ModeText
}

// Set validates and stores a mode for the user. Invalid input returns an
// error and leaves the stored value untouched. Validation is strict about
// casing ("TEXT" is rejected); the command surface lowercases user input
// before calling Set.
func (s *ModeStore) Set(userID, raw string) (domain.Mode, error) {
	mode, err := domain.ParseMode(raw)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.modes[userID] = mode
	s.mu.Unlock()
	return mode, nil
}

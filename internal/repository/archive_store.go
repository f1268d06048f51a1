package repository

import (
	"sort"
	"sync"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

// ArchiveStore tracks background export renders in memory, mirroring the
// lifecycle semantics of ExamStore.
type ArchiveStore struct {
	mu      sync.RWMutex
	entries map[string]models.ArchiveEntry
}

// NewArchiveStore builds an empty archive registry.
func NewArchiveStore() *ArchiveStore {
	return &ArchiveStore{entries: make(map[string]models.ArchiveEntry)}
}

// Create stores a new entry.
func (s *ArchiveStore) Create(entry models.ArchiveEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
}

// Find returns an entry by id.
func (s *ArchiveStore) Find(id string) (models.ArchiveEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	return entry, ok
}

// ListBySession returns a session's entries, newest first.
func (s *ArchiveStore) ListBySession(sessionID string) []models.ArchiveEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.ArchiveEntry, 0)
	for _, entry := range s.entries {
		if entry.SessionID == sessionID {
			list = append(list, entry)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// Update applies fn to an entry under the write lock.
func (s *ArchiveStore) Update(id string, fn func(*models.ArchiveEntry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return false
	}
	fn(&entry)
	s.entries[id] = entry
	return true
}

package studio

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// HistoryEntry is a previously produced image.
type HistoryEntry struct {
	ID         string    `json:"id"`
	DisplayURL string    `json:"display_url"`
	RemoteURL  string    `json:"remote_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// Record appends an entry unless one with the same display URL exists. It
// reports whether anything was added.
func (s *State) Record(displayURL, remoteURL string) (HistoryEntry, bool) {
	displayURL = strings.TrimSpace(displayURL)
	remoteURL = strings.TrimSpace(remoteURL)
	if displayURL == "" {
		return HistoryEntry{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[displayURL]; ok {
		for _, e := range s.history {
			if e.DisplayURL == displayURL {
				return e, false
			}
		}
	}
	e := HistoryEntry{
		ID:         ulid.Make().String(),
		DisplayURL: displayURL,
		RemoteURL:  remoteURL,
		CreatedAt:  time.Now().UTC(),
	}
	s.history = append(s.history, e)
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	s.seen[displayURL] = struct{}{}
	return e, true
}

// Entries returns a snapshot of the history in insertion order.
func (s *State) Entries() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryEntry(nil), s.history...)
}

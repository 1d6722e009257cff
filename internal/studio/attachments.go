package studio

import (
	"fmt"
	"strings"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
)

// AddAttachment appends a remote URL to the conditioning inputs.
func (s *State) AddAttachment(remoteURL string) error {
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return fmt.Errorf("studio: attachment url required: %w", domain.ErrInvalidRequest)
	}
	s.mu.Lock()
	s.attachments = append(s.attachments, remoteURL)
	s.mu.Unlock()
	return nil
}

// RemoveLastAttachment pops the most recent attachment. It is a no-op on an
// empty list.
func (s *State) RemoveLastAttachment() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.attachments)
	if n == 0 {
		return "", false
	}
	last := s.attachments[n-1]
	s.attachments = s.attachments[:n-1]
	return last, true
}

// Attachments returns a copy of the current list. It is never nil, so an
// empty list still encodes as [].
func (s *State) Attachments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.attachments))
	copy(out, s.attachments)
	return out
}

// ClearAttachments drops every attachment.
func (s *State) ClearAttachments() {
	s.mu.Lock()
	s.attachments = nil
	s.mu.Unlock()
}

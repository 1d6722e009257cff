package studio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/compositor"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
)

// Slot names one of the two frames.
type Slot string

const (
	SlotStart Slot = "start"
	SlotEnd   Slot = "end"
)

// ParseSlot accepts "start" or "end".
func ParseSlot(s string) (Slot, error) {
	switch Slot(strings.ToLower(strings.TrimSpace(s))) {
	case SlotStart:
		return SlotStart, nil
	case SlotEnd:
		return SlotEnd, nil
	}
	return "", fmt.Errorf("studio: unknown frame %q: %w", s, domain.ErrInvalidRequest)
}

// Other returns the opposite slot.
func (s Slot) Other() Slot {
	if s == SlotStart {
		return SlotEnd
	}
	return SlotStart
}

func (s Slot) index() (int, error) {
	switch s {
	case SlotStart:
		return 0, nil
	case SlotEnd:
		return 1, nil
	}
	return 0, fmt.Errorf("studio: unknown frame %q: %w", string(s), domain.ErrInvalidRequest)
}

// Frame is either fully populated or fully empty.
type Frame struct {
	DisplayURL string `json:"display_url,omitempty"`
	RemoteURL  string `json:"remote_url,omitempty"`
}

func (f Frame) Empty() bool { return f.RemoteURL == "" }

// Mode is the active tool.
type Mode string

const (
	ModeImage Mode = "image"
	ModeEdit  Mode = "edit"
	ModeVideo Mode = "video"
)

// State is the whole client-side application state. Callers that mutate the
// same slot concurrently get last-writer-wins.
type State struct {
	mu sync.Mutex

	frames      [2]Frame
	history     []HistoryEntry
	seen        map[string]struct{}
	attachments []string

	ratio          compositor.Ratio
	vertical       bool
	previewVisible bool
	mode           Mode
	active         Slot
}

// NewState returns empty frames, a 16:9 horizontal layout with the preview
// shown, image mode and the start frame active.
func NewState() *State {
	return &State{
		seen:           make(map[string]struct{}),
		ratio:          compositor.Ratio{W: 16, H: 9},
		previewVisible: true,
		mode:           ModeImage,
		active:         SlotStart,
	}
}

// Frame returns the current content of slot.
func (s *State) Frame(slot Slot) (Frame, error) {
	idx, err := slot.index()
	if err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[idx], nil
}

// SetFrame populates slot. Both URLs must be set, or both empty to clear it.
func (s *State) SetFrame(slot Slot, displayURL, remoteURL string) error {
	idx, err := slot.index()
	if err != nil {
		return err
	}
	displayURL = strings.TrimSpace(displayURL)
	remoteURL = strings.TrimSpace(remoteURL)
	if (displayURL == "") != (remoteURL == "") {
		return fmt.Errorf("studio: frame needs both display and remote url: %w", domain.ErrInvalidRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[idx] = Frame{DisplayURL: displayURL, RemoteURL: remoteURL}
	return nil
}

// ClearFrame empties slot.
func (s *State) ClearFrame(slot Slot) error {
	return s.SetFrame(slot, "", "")
}

// MoveFrame moves the content of from into the other slot and clears from.
func (s *State) MoveFrame(from Slot) error {
	src, err := from.index()
	if err != nil {
		return err
	}
	dst, _ := from.Other().index()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames[src].Empty() {
		return fmt.Errorf("studio: move %s: %w", from, domain.ErrFrameEmpty)
	}
	s.frames[dst] = s.frames[src]
	s.frames[src] = Frame{}
	return nil
}

// UseHistory loads history entry index into slot.
func (s *State) UseHistory(slot Slot, index int) error {
	idx, err := slot.index()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.history) {
		return fmt.Errorf("studio: history entry %d: %w", index, domain.ErrNotFound)
	}
	e := s.history[index]
	s.frames[idx] = Frame{DisplayURL: e.DisplayURL, RemoteURL: e.RemoteURL}
	return nil
}

func (s *State) AspectRatio() compositor.Ratio {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratio
}

// SetAspectRatio ignores invalid ratios.
func (s *State) SetAspectRatio(r compositor.Ratio) {
	if !r.Valid() {
		return
	}
	s.mu.Lock()
	s.ratio = r
	s.mu.Unlock()
}

func (s *State) Vertical() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vertical
}

func (s *State) SetVertical(v bool) {
	s.mu.Lock()
	s.vertical = v
	s.mu.Unlock()
}

func (s *State) PreviewVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previewVisible
}

func (s *State) SetPreviewVisible(v bool) {
	s.mu.Lock()
	s.previewVisible = v
	s.mu.Unlock()
}

func (s *State) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *State) SetMode(m Mode) error {
	switch m {
	case ModeImage, ModeEdit, ModeVideo:
	default:
		return fmt.Errorf("studio: unknown mode %q: %w", string(m), domain.ErrInvalidRequest)
	}
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	return nil
}

func (s *State) Active() Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *State) SetActive(slot Slot) error {
	if _, err := slot.index(); err != nil {
		return err
	}
	s.mu.Lock()
	s.active = slot
	s.mu.Unlock()
	return nil
}

// OrientedRatio is the aspect ratio after applying the vertical toggle.
func (s *State) OrientedRatio() compositor.Ratio {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratio.Oriented(s.vertical)
}

// Layout derives canvas and preview sizes for a viewport.
func (s *State) Layout(viewportW, viewportH, footerH int) compositor.Layout {
	s.mu.Lock()
	in := compositor.LayoutInput{
		Ratio:          s.ratio,
		Vertical:       s.vertical,
		ViewportW:      viewportW,
		ViewportH:      viewportH,
		FooterH:        footerH,
		PreviewVisible: s.previewVisible,
	}
	s.mu.Unlock()
	return compositor.ComputeLayout(in)
}

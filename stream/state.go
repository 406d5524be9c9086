// ABOUTME: Per-session stream state that applies the mode-selected reducer to each fragment.
// ABOUTME: Tracks the accumulated text and whether it has gained its first non-whitespace content.

package stream

import (
	"fmt"
	"strings"
	"unicode"
)

// Mode selects how fragments are folded into the accumulated text.
type Mode string

const (
	// ModeSummarize folds fragments through Merge.
	ModeSummarize Mode = "summarize"
	// ModeChat concatenates fragments verbatim.
	ModeChat Mode = "chat"
)

// ParseMode validates a mode name. An empty string means ModeSummarize.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSummarize:
		return ModeSummarize, nil
	case ModeChat:
		return ModeChat, nil
	default:
		return "", fmt.Errorf("unknown stream mode %q (want %q or %q)", s, ModeSummarize, ModeChat)
	}
}

// Reducer returns the fold function for the mode.
func (m Mode) Reducer() func(current, incoming string) (string, string) {
	if m == ModeChat {
		return Append
	}
	return Merge
}

// State is the accumulated text of one stream. Each generation run and each
// reader session owns its own State; it is not safe for concurrent use.
type State struct {
	Mode              Mode
	Text              string
	SeenNonWhitespace bool
}

// NewState returns an empty State for the given mode.
func NewState(mode Mode) *State {
	return &State{Mode: mode}
}

// Update describes the effect of applying one fragment.
type Update struct {
	// Appended is the newly visible suffix; empty when the fragment added nothing.
	Appended string
	// FirstContent is true only for the update that first made the
	// accumulated text contain a non-whitespace character.
	FirstContent bool
}

// Apply folds fragment into the state and reports what changed.
func (s *State) Apply(fragment string) Update {
	if fragment == "" {
		return Update{}
	}
	next, appended := s.Mode.Reducer()(s.Text, fragment)
	s.Text = next

	var u Update
	u.Appended = appended
	if !s.SeenNonWhitespace && hasNonWhitespace(appended) {
		s.SeenNonWhitespace = true
		u.FirstContent = true
	}
	return u
}

// Reset clears the accumulated text and flags, keeping the mode.
func (s *State) Reset() {
	*s = State{Mode: s.Mode}
}

func hasNonWhitespace(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) >= 0
}

// HasContent reports whether text contains any non-whitespace character.
func HasContent(text string) bool {
	return hasNonWhitespace(text)
}

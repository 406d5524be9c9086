// ABOUTME: Token stream merger that reconciles a running text buffer with an incoming fragment.
// ABOUTME: Handles pure deltas, cumulative full-buffer snapshots and short trailing echoes without duplicating text.

package stream

import (
	"strings"
	"unicode/utf8"
)

const (
	// OverlapWindow bounds how far back Merge looks for a tail/head
	// overlap, in characters.
	OverlapWindow = 2000

	// MinOverlap is the shortest tail/head overlap, in characters, treated
	// as a resend. Shorter matches are ordinary text that happens to repeat.
	MinOverlap = 7
)

// Merge folds incoming into current and returns the new text together with
// the suffix that was actually appended. Both values are always consistent:
// next == current + appended, except when incoming is a cumulative snapshot
// that extends current, where next == incoming.
func Merge(current, incoming string) (next, appended string) {
	if incoming == "" {
		return current, ""
	}
	if current == "" {
		return incoming, incoming
	}
	if len(incoming) >= len(current) && strings.HasPrefix(incoming, current) {
		return incoming, incoming[len(current):]
	}
	if k := overlap(current, incoming); k >= MinOverlap {
		rest := incoming[k:]
		return current + rest, rest
	}
	return current + incoming, incoming
}

// overlap returns the byte length of the longest suffix of current that is
// also a prefix of incoming. Lengths are counted in characters: the overlap
// must span at least MinOverlap and at most OverlapWindow of them. It returns
// 0 when no such overlap exists.
func overlap(current, incoming string) int {
	limit := min(len(current), len(incoming))
	// ends[i] is the byte offset just past the (i+1)th character of incoming.
	var ends []int
	for off := 0; off < limit && len(ends) < OverlapWindow; {
		_, size := utf8.DecodeRuneInString(incoming[off:])
		off += size
		if off > limit {
			break
		}
		ends = append(ends, off)
	}
	for i := len(ends) - 1; i >= MinOverlap-1; i-- {
		if k := ends[i]; strings.HasSuffix(current, incoming[:k]) {
			return k
		}
	}
	return 0
}

// Append is the chat-mode reducer: fragments are true deltas and are
// concatenated verbatim.
func Append(current, incoming string) (next, appended string) {
	return current + incoming, incoming
}

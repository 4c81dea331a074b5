package terminal

import "strings"

// History records submitted commands and supports shell-style recall.
// entries[0] is the most recent submission. cursor is -1 while the user is
// typing fresh input; draft holds that input once browsing starts.
//
// History is not safe for concurrent use; SessionManager serializes access.
type History struct {
	entries []string
	cursor  int
	draft   string
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{cursor: -1}
}

// Submit records text as the newest entry and ends any recall in progress.
// Whitespace-only input is ignored and reported with ok=false. Identical
// repeated commands are all kept.
func (h *History) Submit(text string) (command string, ok bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	h.entries = append([]string{text}, h.entries...)
	h.cursor = -1
	h.draft = ""
	return text, true
}

// RecallOlder steps one entry further into the past and returns it. current
// is the input line as the user left it; it is kept as the draft when
// browsing starts. At the oldest entry the same entry keeps coming back.
// With no history at all, current is returned unchanged.
func (h *History) RecallOlder(current string) string {
	if len(h.entries) == 0 {
		return current
	}
	if h.cursor == -1 {
		h.draft = current
	}
	if h.cursor < len(h.entries)-1 {
		h.cursor++
	}
	return h.entries[h.cursor]
}

// RecallNewer steps one entry towards the present. Leaving the newest entry
// returns the draft; further calls keep returning the draft.
func (h *History) RecallNewer() string {
	if h.cursor > -1 {
		h.cursor--
	}
	if h.cursor == -1 {
		return h.draft
	}
	return h.entries[h.cursor]
}

// Reset drops all entries, the cursor and the draft.
func (h *History) Reset() {
	h.entries = nil
	h.cursor = -1
	h.draft = ""
}

// Len returns the number of recorded commands.
func (h *History) Len() int {
	return len(h.entries)
}

// Browsing reports whether a recall is in progress.
func (h *History) Browsing() bool {
	return h.cursor != -1
}

// Entries returns a copy of the recorded commands, newest first.
func (h *History) Entries() []string {
	return append([]string(nil), h.entries...)
}

package agent

import (
	"fmt"
	"strings"
)

// Trace is the ordered, human-readable log of steps taken during one run. It
// is owned by a single run and surfaced to the caller; it is never persisted.
type Trace struct {
	entries []string
}

func (t *Trace) Add(format string, args ...any) {
	if t == nil {
		return
	}
	entry := strings.TrimSpace(fmt.Sprintf(format, args...))
	if entry == "" {
		return
	}
	t.entries = append(t.entries, entry)
}

func (t *Trace) Entries() []string {
	if t == nil || len(t.entries) == 0 {
		return nil
	}
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}

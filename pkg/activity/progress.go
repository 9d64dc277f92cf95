package activity

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ProgressHook overwrites a single console line with the path of each
// migrated record and ends the line when a phase finishes.
type ProgressHook struct {
	w  io.Writer
	mu sync.Mutex
}

// NewProgressHook returns a hook writing to w.
func NewProgressHook(w io.Writer) *ProgressHook {
	return &ProgressHook{w: w}
}

// Notify implements ActivityHook.
func (h *ProgressHook) Notify(_ context.Context, event Event) error {
	if h == nil || h.w == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	switch event.Verb {
	case VerbRecordMigrated:
		_, err := fmt.Fprintf(h.w, "\r%s", event.Path)
		return err
	case VerbPhaseFinished:
		_, err := fmt.Fprintln(h.w)
		return err
	}
	return nil
}

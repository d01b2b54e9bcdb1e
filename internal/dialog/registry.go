// Package dialog implements the dialog handler (C5): per-call
// orchestration from an inbound INVITE through accept, media, and BYE.
package dialog

import (
	"context"
	"sync"
)

// Call is the per-call state the registry and the media task share: the
// dialog session (narrowed to the Session interface handler.go defines),
// the call's own cancellation handle, and the recording row id once one
// has been allocated.
type Call struct {
	ID      string
	Session Session
	Cancel  context.CancelFunc

	mu    sync.Mutex
	rowID int64
}

// SetRowID records the voicemail row this call is recording into.
func (c *Call) SetRowID(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rowID = id
}

// RowID returns the voicemail row id, or 0 if the call isn't recording.
func (c *Call) RowID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rowID
}

// Registry tracks active server-invite dialogs by id, sync.Map-backed per
// SPEC_FULL.md §9's dialog handle ownership note: the layer holds it for
// lookup/reap, the media task holds a strong reference for the call.
type Registry struct {
	calls sync.Map // string -> *Call
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Store registers a new call.
func (r *Registry) Store(c *Call) {
	r.calls.Store(c.ID, c)
}

// Load finds a call by dialog id.
func (r *Registry) Load(id string) (*Call, bool) {
	v, ok := r.calls.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Call), true
}

// Delete removes a call from the registry; the call's media task does
// this when it ends.
func (r *Registry) Delete(id string) {
	r.calls.Delete(id)
}

// Range visits every active call; used for process shutdown.
func (r *Registry) Range(fn func(*Call) bool) {
	r.calls.Range(func(_, v any) bool {
		return fn(v.(*Call))
	})
}

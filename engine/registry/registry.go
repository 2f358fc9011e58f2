// Package registry holds the connected scenes in registration order.
package registry

import (
	"cmp"
	"slices"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

// Handle identifies a registered scene. Handles are never reused, so a handle held across a
// removal refers to nothing rather than to another scene.
type Handle uint64

type entry struct {
	handle  Handle
	scene   scene.Scene
	removed bool
}

// Registry exclusively owns the scenes of every live connection. Scenes removed during an
// iteration pass are only marked; Compact drops them once the pass is over, so positions never
// shift under an iterating caller.
//
// A Registry is driven by the server loop goroutine and is not safe for concurrent use.
type Registry struct {
	entries []entry
	next    Handle
	marked  int
}

// NewRegistry creates an empty registry with capacity 1.
func NewRegistry() *Registry {
	return &Registry{entries: make([]entry, 0, 1)}
}

// Len returns the number of registered scenes, marked ones included until compacted.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Live returns the number of scenes not marked for removal.
func (r *Registry) Live() int {
	return len(r.entries) - r.marked
}

// Cap returns the allocated capacity.
func (r *Registry) Cap() int {
	return cap(r.entries)
}

// Add appends a scene and returns its handle.
//
// Parameters:
//   - s: the scene to own
//
// Returns:
//   - Handle: the scene's handle
func (r *Registry) Add(s scene.Scene) Handle {
	if len(r.entries) == cap(r.entries) {
		r.resize(common.GrowCap(len(r.entries), cap(r.entries)))
	}
	r.next++
	r.entries = append(r.entries, entry{handle: r.next, scene: s})
	return r.next
}

// Get returns the scene registered under h.
//
// Parameters:
//   - h: the handle returned by Add
//
// Returns:
//   - scene.Scene: the scene, nil if unknown or marked for removal
//   - bool: true if the scene is live
func (r *Registry) Get(h Handle) (scene.Scene, bool) {
	i, ok := r.index(h)
	if !ok || r.entries[i].removed {
		return nil, false
	}
	return r.entries[i].scene, true
}

// MarkRemoved schedules the scene under h for removal by the next Compact. Marking an unknown or
// already marked handle is a no-op.
//
// Returns:
//   - bool: true if the scene was live and is now marked
func (r *Registry) MarkRemoved(h Handle) bool {
	i, ok := r.index(h)
	if !ok || r.entries[i].removed {
		return false
	}
	r.entries[i].removed = true
	r.marked++
	return true
}

// Newest calls fn for every live scene, most recently added first, until fn returns false.
// fn may call MarkRemoved, including on the scene it is given.
func (r *Registry) Newest(fn func(h Handle, s scene.Scene) bool) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.removed {
			continue
		}
		if !fn(e.handle, e.scene) {
			return
		}
	}
}

// Compact drops every marked scene, calling release on each in registration order, and shrinks
// capacity while fewer than half of the slots are live.
//
// Parameters:
//   - release: called with each removed scene, nil for none
//
// Returns:
//   - int: the number of scenes removed
func (r *Registry) Compact(release func(h Handle, s scene.Scene)) int {
	if r.marked == 0 {
		return 0
	}
	removed := 0
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.removed {
			if release != nil {
				release(e.handle, e.scene)
			}
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(r.entries[len(kept):])
	r.entries = kept
	r.marked = 0

	if want := common.ShrinkCap(len(r.entries), cap(r.entries)); want < cap(r.entries) {
		r.resize(want)
	}
	return removed
}

// Close releases every scene, newest first, and empties the registry.
//
// Parameters:
//   - release: called with each scene, nil for none
func (r *Registry) Close(release func(h Handle, s scene.Scene)) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if release != nil {
			release(r.entries[i].handle, r.entries[i].scene)
		}
	}
	r.entries = make([]entry, 0, 1)
	r.marked = 0
}

// index finds h with a binary search; handles are appended in increasing order and compaction
// preserves it.
func (r *Registry) index(h Handle) (int, bool) {
	return slices.BinarySearchFunc(r.entries, h, func(e entry, target Handle) int {
		return cmp.Compare(e.handle, target)
	})
}

func (r *Registry) resize(capacity int) {
	entries := make([]entry, len(r.entries), capacity)
	copy(entries, r.entries)
	r.entries = entries
}

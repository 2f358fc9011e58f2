package registry

import (
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

func newScenes(t *testing.T, names ...string) []scene.Scene {
	t.Helper()
	b := renderer.NewHeadlessBackend()
	out := make([]scene.Scene, 0, len(names))
	for _, n := range names {
		s, err := scene.NewScene(b, scene.WithName(n))
		if err != nil {
			t.Fatalf("NewScene: %v", err)
		}
		out = append(out, s)
	}
	return out
}

func names(r *Registry) []string {
	var out []string
	r.Newest(func(_ Handle, s scene.Scene) bool {
		out = append(out, s.Name())
		return true
	})
	return out
}

func TestNewestIteratesInReverse(t *testing.T) {
	r := NewRegistry()
	for _, s := range newScenes(t, "a", "b", "c") {
		r.Add(s)
	}
	if got := names(r); !slices.Equal(got, []string{"c", "b", "a"}) {
		t.Fatalf("order = %v", got)
	}
}

func TestMarkDuringIterationDoesNotSkip(t *testing.T) {
	r := NewRegistry()
	handles := map[string]Handle{}
	for _, s := range newScenes(t, "a", "b", "c", "d") {
		handles[s.Name()] = r.Add(s)
	}

	var visited []string
	r.Newest(func(h Handle, s scene.Scene) bool {
		visited = append(visited, s.Name())
		if s.Name() == "c" || s.Name() == "b" {
			r.MarkRemoved(h)
		}
		return true
	})
	if !slices.Equal(visited, []string{"d", "c", "b", "a"}) {
		t.Fatalf("visited = %v", visited)
	}
	if r.Live() != 2 || r.Len() != 4 {
		t.Fatalf("live %d len %d", r.Live(), r.Len())
	}

	var released []string
	if n := r.Compact(func(_ Handle, s scene.Scene) { released = append(released, s.Name()) }); n != 2 {
		t.Fatalf("compacted %d, want 2", n)
	}
	if !slices.Equal(released, []string{"b", "c"}) {
		t.Fatalf("released = %v", released)
	}
	if got := names(r); !slices.Equal(got, []string{"d", "a"}) {
		t.Fatalf("remaining = %v", got)
	}
	if _, ok := r.Get(handles["a"]); !ok {
		t.Fatal("handle of a no longer resolves after compaction")
	}
	if _, ok := r.Get(handles["b"]); ok {
		t.Fatal("removed handle still resolves")
	}
}

func TestMarkedSceneHiddenBeforeCompact(t *testing.T) {
	r := NewRegistry()
	h := r.Add(newScenes(t, "a")[0])
	if !r.MarkRemoved(h) {
		t.Fatal("first mark returned false")
	}
	if r.MarkRemoved(h) {
		t.Fatal("second mark returned true")
	}
	if _, ok := r.Get(h); ok {
		t.Fatal("marked scene still visible")
	}
	if got := names(r); len(got) != 0 {
		t.Fatalf("iteration saw %v", got)
	}
}

func TestCapacityFollowsLiveCount(t *testing.T) {
	r := NewRegistry()
	var hs []Handle
	for _, s := range newScenes(t, "a", "b", "c", "d", "e") {
		hs = append(hs, r.Add(s))
	}
	if r.Cap() != 8 {
		t.Fatalf("cap = %d, want 8", r.Cap())
	}
	for _, h := range hs[:4] {
		r.MarkRemoved(h)
	}
	r.Compact(nil)
	if r.Len() != 1 || r.Cap() != 2 {
		t.Fatalf("len %d cap %d, want 1 2", r.Len(), r.Cap())
	}
}

func TestHandlesAreNotReused(t *testing.T) {
	r := NewRegistry()
	scenes := newScenes(t, "a", "b")
	h1 := r.Add(scenes[0])
	r.MarkRemoved(h1)
	r.Compact(nil)
	h2 := r.Add(scenes[1])
	if h1 == h2 {
		t.Fatal("handle reused")
	}
	if _, ok := r.Get(h1); ok {
		t.Fatal("stale handle resolves")
	}
}

func TestCloseReleasesNewestFirst(t *testing.T) {
	r := NewRegistry()
	for _, s := range newScenes(t, "a", "b") {
		r.Add(s)
	}
	var released []string
	r.Close(func(_ Handle, s scene.Scene) { released = append(released, s.Name()) })
	if !slices.Equal(released, []string{"b", "a"}) {
		t.Fatalf("released = %v", released)
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d", r.Len())
	}
}

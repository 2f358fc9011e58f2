package queue

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
)

type recordingExecutor struct {
	calls   []string
	applied []Mutation
	waitErr error
	applyFn func(m Mutation) error
}

func (r *recordingExecutor) WaitForFrameSlot(slot int) error {
	r.calls = append(r.calls, "wait")
	return r.waitErr
}

func (r *recordingExecutor) Apply(m Mutation, slot int) error {
	r.calls = append(r.calls, "apply")
	r.applied = append(r.applied, m)
	if r.applyFn != nil {
		return r.applyFn(m)
	}
	return nil
}

type unknownMutation struct{}

func (unknownMutation) Kind() string { return "unknown" }

func TestQueueExecutesOncePerDrainThenDisappears(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		q := NewQueue()
		x := &recordingExecutor{}
		q.Push(MeshBindTexture{MeshID: 1, Texture: 7}, n)

		for drain := 1; drain <= n; drain++ {
			if err := q.Drain(drain%n, x); err != nil {
				t.Fatalf("n=%d drain %d: %v", n, drain, err)
			}
			if len(x.applied) != drain {
				t.Fatalf("n=%d: after drain %d applied %d times", n, drain, len(x.applied))
			}
			if q.Len() != 1 {
				t.Fatalf("n=%d: entry gone after drain %d", n, drain)
			}
		}

		if err := q.Drain(0, x); err != nil {
			t.Fatalf("n=%d final drain: %v", n, err)
		}
		if len(x.applied) != n {
			t.Fatalf("n=%d: applied %d times, want %d", n, len(x.applied), n)
		}
		if q.Len() != 0 {
			t.Fatalf("n=%d: %d entries left after drain %d", n, q.Len(), n+1)
		}
	}
}

func TestQueueWaitsBeforeEveryApply(t *testing.T) {
	q := NewQueue()
	x := &recordingExecutor{}
	q.Push(MeshBindTexture{MeshID: 1}, 2)
	q.Push(MeshBindTexture{MeshID: 2}, 2)

	if err := q.Drain(0, x); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	want := []string{"wait", "apply", "wait", "apply"}
	if len(x.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", x.calls, want)
	}
	for i := range want {
		if x.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", x.calls, want)
		}
	}
}

func TestQueuePreservesPushOrder(t *testing.T) {
	q := NewQueue()
	x := &recordingExecutor{}
	for id := range int32(5) {
		q.Push(MeshBindTexture{MeshID: id}, 1)
	}
	if err := q.Drain(0, x); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	for i, m := range x.applied {
		if got := m.(MeshBindTexture).MeshID; got != int32(i) {
			t.Fatalf("applied[%d] = mesh %d", i, got)
		}
	}
}

// A dead entry removed mid-drain must not cause the entry shifted into its place to be skipped.
func TestQueueRemovalDoesNotSkipNext(t *testing.T) {
	q := NewQueue()
	x := &recordingExecutor{}
	q.Push(MeshBindTexture{MeshID: 1}, 1)
	q.Push(MeshBindTexture{MeshID: 2}, 2)

	_ = q.Drain(0, x)
	x.applied = nil

	if err := q.Drain(1, x); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(x.applied) != 1 || x.applied[0].(MeshBindTexture).MeshID != 2 {
		t.Fatalf("applied = %v, want mesh 2 only", x.applied)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
}

func TestQueueCapacity(t *testing.T) {
	q := NewQueue()
	if q.Cap() != 1 {
		t.Fatalf("initial cap = %d", q.Cap())
	}
	for range 5 {
		q.Push(MeshBindTexture{}, 1)
	}
	if q.Cap() != 8 {
		t.Fatalf("cap after 5 pushes = %d, want 8", q.Cap())
	}

	x := &recordingExecutor{}
	_ = q.Drain(0, x)
	_ = q.Drain(0, x)
	if q.Len() != 0 || q.Cap() != 1 {
		t.Fatalf("len=%d cap=%d after draining, want 0 and 1", q.Len(), q.Cap())
	}
}

func TestQueueUnknownMutationPassesThrough(t *testing.T) {
	q := NewQueue()
	x := &recordingExecutor{}
	q.Push(unknownMutation{}, 1)
	if err := q.Drain(0, x); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(x.applied) != 1 {
		t.Fatalf("applied %d, want 1", len(x.applied))
	}
}

func TestQueueErrors(t *testing.T) {
	t.Run("wait failure stops the drain", func(t *testing.T) {
		q := NewQueue()
		x := &recordingExecutor{waitErr: common.ErrBackendLost}
		q.Push(MeshBindTexture{}, 1)
		if err := q.Drain(0, x); !errors.Is(err, common.ErrBackendLost) {
			t.Fatalf("expected ErrBackendLost, got %v", err)
		}
		if len(x.applied) != 0 {
			t.Fatal("applied after failed wait")
		}
	})

	t.Run("non-fatal apply failure continues", func(t *testing.T) {
		q := NewQueue()
		x := &recordingExecutor{applyFn: func(Mutation) error { return common.ErrResourceNotFound }}
		q.Push(MeshBindTexture{MeshID: 1}, 1)
		q.Push(MeshBindTexture{MeshID: 2}, 1)
		if err := q.Drain(0, x); err != nil {
			t.Fatalf("Drain: %v", err)
		}
		if len(x.applied) != 2 {
			t.Fatalf("applied %d, want 2", len(x.applied))
		}
	})

	t.Run("allocation failure continues", func(t *testing.T) {
		q := NewQueue()
		x := &recordingExecutor{applyFn: func(Mutation) error { return common.ErrBackendFailure }}
		q.Push(MeshBindTexture{MeshID: 1}, 1)
		q.Push(MeshBindTexture{MeshID: 2}, 1)
		if err := q.Drain(0, x); err != nil {
			t.Fatalf("Drain: %v", err)
		}
		if len(x.applied) != 2 {
			t.Fatalf("applied %d, want 2", len(x.applied))
		}
	})

	t.Run("lost device stops", func(t *testing.T) {
		q := NewQueue()
		x := &recordingExecutor{applyFn: func(Mutation) error { return common.ErrBackendLost }}
		q.Push(MeshBindTexture{MeshID: 1}, 1)
		q.Push(MeshBindTexture{MeshID: 2}, 1)
		if err := q.Drain(0, x); !errors.Is(err, common.ErrBackendLost) {
			t.Fatalf("expected ErrBackendLost, got %v", err)
		}
		if len(x.applied) != 1 {
			t.Fatalf("applied %d, want 1", len(x.applied))
		}
	})
}

func TestMeshBindTextureString(t *testing.T) {
	m := MeshBindTexture{MeshID: 3, Pass: 0, Texture: renderer.TextureHandle(9)}
	if got := m.String(); got != "mesh_bind_texture(mesh=3 pass=0 texture=9)" {
		t.Fatalf("String() = %q", got)
	}
}

func TestQueueCancel(t *testing.T) {
	q := NewQueue()
	x := &recordingExecutor{}
	q.Push(MeshBindTexture{MeshID: 1, Texture: 7}, 2)
	q.Push(MeshBindTexture{MeshID: 2, Texture: 8}, 2)

	n := q.Cancel(func(m Mutation) bool {
		b, ok := m.(MeshBindTexture)
		return ok && b.Texture == 7
	})
	if n != 1 {
		t.Fatalf("cancelled %d, want 1", n)
	}
	if err := q.Drain(0, x); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(x.applied) != 1 || x.applied[0].(MeshBindTexture).Texture != 8 {
		t.Fatalf("applied = %v", x.applied)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-render/engine/loader"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/registry"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/engine/transport"
)

const (
	// DefaultTargetFPS caps how often frames are submitted.
	DefaultTargetFPS = 60
	// DefaultIdleTimeout bounds how long the loop waits for client events between ticks.
	DefaultIdleTimeout = 500 * time.Millisecond

	// maxBatch is how many pending events are handled before the loop checks the tick again.
	maxBatch = 64
)

// Stats is a snapshot of the server loop, safe to read from any goroutine.
type Stats struct {
	// Scenes is the number of live scenes.
	Scenes int
	// Ticks is the number of frames submitted.
	Ticks uint64
	// Slot is the frame slot of the last tick.
	Slot int
}

// Server is the frame scheduler. It owns every scene, feeds client commands to the dispatcher and
// submits one frame per tick to the GPU backend.
type Server interface {
	// Run accepts connections on every listener and drives frames until Quit is called, ctx is
	// cancelled, the backend asks to close or a fatal error occurs. Every scene is released before
	// Run returns. Run must be called from the goroutine the backend was created on.
	//
	// Parameters:
	//   - ctx: cancels the loop
	//
	// Returns:
	//   - error: nil on an orderly stop, otherwise the fatal error
	Run(ctx context.Context) error

	// Quit stops the loop. Safe to call multiple times and from any goroutine.
	Quit()

	// Stats returns a snapshot of the loop counters.
	Stats() Stats

	// Backend returns the GPU backend frames are submitted to.
	Backend() renderer.Backend
}

type server struct {
	backend    renderer.Backend
	importer   loader.Importer
	dispatcher dispatch.Dispatcher
	listeners  []transport.Listener

	targetFPS   float64
	idleTimeout time.Duration
	cull        bool
	dispatchOps []dispatch.DispatcherBuilderOption

	registry *registry.Registry
	handles  map[transport.ConnID]registry.Handle
	owners   map[registry.Handle]transport.ConnID
	slot     int

	profiler         *profiler.Profiler
	profilingEnabled bool

	running     atomic.Bool
	quitChannel chan struct{}
	quitOnce    sync.Once

	live  atomic.Int64
	ticks atomic.Uint64
	last  atomic.Int64
}

var _ Server = &server{}

// NewServer creates a Server with the provided options. A backend is required.
//
// Parameters:
//   - options: functional options for server configuration
//
// Returns:
//   - Server: the new server
//   - error: error if no backend was configured
func NewServer(options ...ServerBuilderOption) (Server, error) {
	s := &server{
		targetFPS:   DefaultTargetFPS,
		idleTimeout: DefaultIdleTimeout,
		registry:    registry.NewRegistry(),
		handles:     make(map[transport.ConnID]registry.Handle),
		owners:      make(map[registry.Handle]transport.ConnID),
		quitChannel: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}

	if s.backend == nil {
		return nil, errors.New("server requires a backend")
	}
	if s.importer == nil {
		s.importer = loader.NewImporter()
	}
	if s.dispatcher == nil {
		s.dispatcher = dispatch.NewDispatcher(s.importer, s.dispatchOps...)
	}
	if s.profilingEnabled {
		s.profiler = profiler.NewProfiler(time.Second)
	}
	return s, nil
}

func (s *server) Backend() renderer.Backend {
	return s.backend
}

func (s *server) Stats() Stats {
	return Stats{
		Scenes: int(s.live.Load()),
		Ticks:  s.ticks.Load(),
		Slot:   int(s.last.Load()),
	}
}

// Quit signals the loop to exit.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (s *server) Quit() {
	s.quitOnce.Do(func() {
		close(s.quitChannel)
	})
}

func (s *server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("server is already running")
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan transport.Event, maxBatch)
	serveErrs := make(chan error, len(s.listeners))

	var wg sync.WaitGroup
	for _, l := range s.listeners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Serve(ctx, events); err != nil {
				serveErrs <- fmt.Errorf("listener %s: %w", l.Addr(), err)
			}
		}()
	}

	err := s.loop(ctx, events, serveErrs)

	cancel()
	s.shutdown()
	wg.Wait()
	// Connections accepted after the loop stopped are owned by nobody.
	for {
		select {
		case ev := <-events:
			if ev.Kind == transport.EventConnected && ev.Closer != nil {
				_ = ev.Closer.Close()
			}
			continue
		default:
		}
		break
	}
	return err
}

func (s *server) loop(ctx context.Context, events <-chan transport.Event, serveErrs <-chan error) error {
	interval := time.Duration(float64(time.Second) / s.targetFPS)
	lastTick := time.Time{}

	timer := time.NewTimer(0)
	defer timer.Stop()

	common.Logger().Info("server running", "fps", s.targetFPS, "frames_in_flight", s.backend.FramesInFlight(),
		"listeners", len(s.listeners))
	for {
		if time.Since(lastTick) >= interval {
			lastTick = time.Now()
			stop, err := s.tick()
			if err != nil {
				return err
			}
			if stop {
				common.Logger().Info("backend requested close")
				return nil
			}
		}

		wait := min(s.idleTimeout, interval-time.Since(lastTick))
		timer.Reset(max(wait, 0))

		select {
		case <-ctx.Done():
			return nil
		case <-s.quitChannel:
			return nil
		case err := <-serveErrs:
			return err
		case ev := <-events:
			if err := s.handle(ev); err != nil {
				return err
			}
			// Handle what is already pending without blocking.
			for range maxBatch - 1 {
				select {
				case ev := <-events:
					if err := s.handle(ev); err != nil {
						return err
					}
					continue
				default:
				}
				break
			}
		case <-timer.C:
		}
		s.compact()
	}
}

// tick advances the frame slot, replays every scene's queue against it and submits the frame.
//
// Returns:
//   - bool: true if the backend asked to close
//   - error: a fatal backend error
func (s *server) tick() (bool, error) {
	s.slot = (s.slot + 1) % s.backend.FramesInFlight()

	var fatal error
	s.registry.Newest(func(h registry.Handle, sc scene.Scene) bool {
		if err := sc.Drain(s.slot); err != nil {
			if common.IsFatal(err) {
				fatal = fmt.Errorf("scene %q: %w", sc.Name(), err)
				return false
			}
			common.Logger().Warn("dropping scene after queue failure", "scene", sc.Name(), "error", err)
			s.registry.MarkRemoved(h)
		}
		return true
	})
	if fatal != nil {
		return false, fatal
	}

	frames := make([]renderer.SceneFrame, 0, s.registry.Live())
	s.registry.Newest(func(_ registry.Handle, sc scene.Scene) bool {
		frames = append(frames, sc.Frame())
		return true
	})
	// Oldest scene is drawn first.
	slices.Reverse(frames)

	if err := s.backend.SubmitFrame(frames, s.slot); err != nil {
		return false, fmt.Errorf("failed to submit frame: %w", err)
	}
	result := s.backend.PresentFrame()
	s.ticks.Add(1)
	s.last.Store(int64(s.slot))

	if result.ShouldClose {
		return true, nil
	}
	if result.ShouldRecreateSurface {
		if err := s.recreateSurface(); err != nil {
			return false, err
		}
	}

	if s.profiler != nil {
		s.profiler.Tick(s.profilerStats)
	}
	return false, nil
}

func (s *server) recreateSurface() error {
	if err := s.backend.RecreateSurface(); err != nil {
		return fmt.Errorf("failed to recreate surface: %w", err)
	}
	var fatal error
	s.registry.Newest(func(h registry.Handle, sc scene.Scene) bool {
		if err := sc.RefreshAspect(); err != nil {
			if common.IsFatal(err) {
				fatal = err
				return false
			}
			s.registry.MarkRemoved(h)
		}
		return true
	})
	common.Logger().Debug("surface recreated", "aspect", s.backend.AspectRatio())
	return fatal
}

// handle applies one transport event. Only errors that must stop the server are returned.
func (s *server) handle(ev transport.Event) error {
	switch ev.Kind {
	case transport.EventConnected:
		sc, err := scene.NewScene(s.backend,
			scene.WithName(fmt.Sprintf("conn-%d", ev.Conn)),
			scene.WithConn(ev.Closer),
			scene.WithCulling(s.cull))
		if err != nil {
			_ = ev.Closer.Close()
			if common.IsFatal(err) {
				return err
			}
			common.Logger().Warn("failed to create scene", "conn", ev.Conn, "remote", ev.Remote, "error", err)
			return nil
		}
		h := s.registry.Add(sc)
		s.handles[ev.Conn] = h
		s.owners[h] = ev.Conn
		s.live.Store(int64(s.registry.Live()))
		common.Logger().Info("client connected", "scene", sc.Name(), "remote", ev.Remote)

	case transport.EventCommand:
		h, ok := s.handles[ev.Conn]
		if !ok {
			return nil
		}
		sc, ok := s.registry.Get(h)
		if !ok {
			return nil
		}
		if err := s.dispatcher.Dispatch(sc, ev.Command); err != nil {
			common.Logger().Warn("command failed, dropping scene", "scene", sc.Name(), "error", err)
			s.remove(ev.Conn)
			if common.IsFatal(err) {
				return err
			}
		}

	case transport.EventClosed:
		h, ok := s.handles[ev.Conn]
		if !ok {
			return nil
		}
		if sc, ok := s.registry.Get(h); ok {
			if ev.Err != nil {
				common.Logger().Warn("client stream failed", "scene", sc.Name(), "error", ev.Err)
			} else {
				common.Logger().Info("client disconnected", "scene", sc.Name())
			}
		}
		s.remove(ev.Conn)
	}
	return nil
}

func (s *server) remove(id transport.ConnID) {
	if h, ok := s.handles[id]; ok {
		s.registry.MarkRemoved(h)
	}
}

func (s *server) compact() {
	s.registry.Compact(s.release)
	s.live.Store(int64(s.registry.Live()))
}

func (s *server) release(h registry.Handle, sc scene.Scene) {
	if id, ok := s.owners[h]; ok {
		delete(s.handles, id)
		delete(s.owners, h)
	}
	if err := sc.Release(); err != nil {
		common.Logger().Debug("scene release", "scene", sc.Name(), "error", err)
	}
}

func (s *server) shutdown() {
	for _, l := range s.listeners {
		_ = l.Close()
	}
	s.registry.Close(s.release)
	s.live.Store(0)
	common.Logger().Info("server stopped", "ticks", s.ticks.Load())
}

func (s *server) profilerStats() profiler.Stats {
	var st profiler.Stats
	s.registry.Newest(func(_ registry.Handle, sc scene.Scene) bool {
		st.Scenes++
		st.Meshes += sc.Meshes().Len()
		st.Textures += sc.Textures().Len()
		st.Lights += sc.Lights().Len()
		st.Queued += sc.Queue().Len()
		return true
	})
	return st
}

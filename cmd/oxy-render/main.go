// Command oxy-render runs the render server.
//
// Clients connect on the unix socket named by -socket (default $IGNI_RENDER_SRV) and, when -ws is
// set, on a websocket endpoint. Trailing arguments are programs started once the socket is
// listening, with IGNI_RENDER_SRV set in their environment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine"
	"github.com/Carmen-Shannon/oxy-render/engine/loader"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/transport"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

const (
	envSocket  = "IGNI_RENDER_SRV"
	envDataDir = "IGNI_DATA_DIR"
)

type config struct {
	socket   string
	dataDir  string
	ws       string
	fps      float64
	frames   int
	headless bool
	width    int
	height   int
	profile  bool
	cull     bool
	verbose  bool
	helpers  []string
}

func init() {
	// GLFW and the surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	cfg := parseFlags(os.Args[1:])

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		common.Logger().Error("render server failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) config {
	var cfg config
	fs := flag.NewFlagSet("oxy-render", flag.ExitOnError)
	fs.StringVar(&cfg.socket, "socket", os.Getenv(envSocket), "unix socket path clients connect to")
	fs.StringVar(&cfg.dataDir, "data", os.Getenv(envDataDir), "directory relative asset paths resolve against")
	fs.StringVar(&cfg.ws, "ws", "", "also accept websocket clients on this address, e.g. :8090")
	fs.Float64Var(&cfg.fps, "fps", engine.DefaultTargetFPS, "frame rate cap")
	fs.IntVar(&cfg.frames, "frames", renderer.DefaultFramesInFlight, "frames in flight")
	fs.BoolVar(&cfg.headless, "headless", false, "draw nothing, keep resources in memory")
	fs.IntVar(&cfg.width, "width", 1280, "window width")
	fs.IntVar(&cfg.height, "height", 720, "window height")
	fs.BoolVar(&cfg.profile, "profile", false, "log frame statistics every second")
	fs.BoolVar(&cfg.cull, "cull", false, "skip meshes outside each scene's viewpoint")
	fs.BoolVar(&cfg.verbose, "v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: oxy-render [flags] [helper programs...]\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)
	cfg.helpers = fs.Args()
	return cfg
}

func run(cfg config) error {
	if cfg.socket == "" {
		return fmt.Errorf("no socket path: set -socket or %s", envSocket)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listeners, err := listen(cfg)
	if err != nil {
		return err
	}
	options := []engine.ServerBuilderOption{
		engine.WithTargetFPS(cfg.fps),
		engine.WithProfiling(cfg.profile),
		engine.WithCulling(cfg.cull),
	}
	for _, l := range listeners {
		options = append(options, engine.WithListener(l))
	}

	// The socket accepts connections from here on, so helpers may dial it.
	startHelpers(ctx, cfg.helpers, cfg.socket)

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		closeAll(listeners)
		return err
	}
	defer closeBackend()

	importer := loader.NewImporter(loader.WithDataDir(cfg.dataDir))
	defer importer.Close()

	srv, err := engine.NewServer(append(options, engine.WithBackend(backend), engine.WithImporter(importer))...)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func listen(cfg config) ([]transport.Listener, error) {
	unixListener, err := transport.ListenUnix(cfg.socket)
	if err != nil {
		return nil, err
	}
	listeners := []transport.Listener{unixListener}
	if cfg.ws != "" {
		wsListener, err := transport.ListenWebSocket(cfg.ws)
		if err != nil {
			closeAll(listeners)
			return nil, err
		}
		listeners = append(listeners, wsListener)
	}
	return listeners, nil
}

func closeAll(listeners []transport.Listener) {
	for _, l := range listeners {
		_ = l.Close()
	}
}

func openBackend(cfg config) (renderer.Backend, func(), error) {
	if cfg.headless {
		b := renderer.NewHeadlessBackend(
			renderer.WithHeadlessFramesInFlight(cfg.frames),
			renderer.WithHeadlessAspectRatio(float32(cfg.width)/float32(cfg.height)),
		)
		return b, func() { _ = b.Close() }, nil
	}

	win, err := window.NewWindow(
		window.WithTitle("oxy-render"),
		window.WithWidth(cfg.width),
		window.WithHeight(cfg.height),
	)
	if err != nil {
		return nil, nil, err
	}
	b, err := renderer.NewRenderer(win, renderer.WithFramesInFlight(cfg.frames))
	if err != nil {
		_ = win.Close()
		return nil, nil, err
	}
	return b, func() {
		if err := b.Close(); err != nil {
			common.Logger().Warn("failed to close backend", "error", err)
		}
	}, nil
}

// startHelpers runs each program with no arguments and the server's environment. Helpers are
// killed when ctx is done.
func startHelpers(ctx context.Context, programs []string, socket string) {
	env := append(os.Environ(), envSocket+"="+socket)
	for _, path := range programs {
		cmd := exec.CommandContext(ctx, path)
		cmd.Env = env
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			common.Logger().Error("failed to start helper", "path", path, "error", err)
			continue
		}
		common.Logger().Info("helper started", "path", path, "pid", cmd.Process.Pid)
		go func() {
			err := cmd.Wait()
			var exitErr *exec.ExitError
			switch {
			case err == nil:
				common.Logger().Info("helper exited", "path", path)
			case errors.As(err, &exitErr):
				common.Logger().Warn("helper exited", "path", path, "code", exitErr.ExitCode())
			default:
				common.Logger().Warn("helper failed", "path", path, "error", err)
			}
		}()
	}
}

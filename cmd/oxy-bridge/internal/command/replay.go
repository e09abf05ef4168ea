package command

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-bridge/cmd/oxy-bridge/internal/replay"
	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine"
	"github.com/Carmen-Shannon/oxy-bridge/engine/config"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/window"
	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// ReplayOptions holds the options for the replay command.
type ReplayOptions struct {
	Script      string
	Backend     string
	MetricsAddr string
	Window      bool
	Profile     bool
}

// NewReplayCommand creates the replay subcommand.
func NewReplayCommand(cli *CLI) *cobra.Command {
	var opts ReplayOptions

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Replay a scripted host session through the bridge",
		Long: Highlight("oxy-bridge replay <script.yaml>") + "\n\n" +
			"Build an in-memory host scene from a YAML script and mirror it through the bridge.\n" +
			"Every step mutates the host and fires the same notifications the authoring tool\n" +
			"would; frame steps run the per-frame bridge setup.\n\n" +
			"Examples:\n" +
			"  # Replay headless\n" +
			"  oxy-bridge replay --backend null scene.yaml\n\n" +
			"  # Replay on the GPU, keep a preview window open and serve metrics\n" +
			"  oxy-bridge replay --window --metrics-addr :9090 scene.yaml\n",
		Args: ExactArgsWithUsage(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Script = args[0]
			return RunReplay(cmd.Context(), cli, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Backend, "backend", "", "Renderer backend (wgpu | null), overrides renderer.backend")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, overrides metrics.address")
	cmd.Flags().BoolVar(&opts.Window, "window", false, "Open a preview window that drives the panel size until it is closed")
	cmd.Flags().BoolVar(&opts.Profile, "profile", false, "Log frame rate and memory statistics")
	return cmd
}

// RunReplay loads the configuration and the script, then replays the script through a bridge.
func RunReplay(ctx context.Context, cli *CLI, opts ReplayOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Default()
	if cli.ConfigPath != "" {
		loaded, err := config.Load(cli.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.Renderer.Backend = common.Coalesce(opts.Backend, cfg.Renderer.Backend)
	cfg.Metrics.Address = common.Coalesce(opts.MetricsAddr, cfg.Metrics.Address)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := cli.Logger(cfg.Log.Verbosity)

	script, err := replay.Load(opts.Script)
	if err != nil {
		return err
	}
	script.Panel.Name = common.Coalesce(script.Panel.Name, cfg.Panel)
	cfg.Panel = script.Panel.Name

	h := host.NewMemoryHost(host.WithPanel(script.Panel.Name,
		common.Coalesce(script.Panel.Width, cfg.Renderer.Width),
		common.Coalesce(script.Panel.Height, cfg.Renderer.Height),
	))

	reg := prometheus.NewRegistry()
	bridgeOpts := []engine.BridgeBuilderOption{
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
		engine.WithRegisterer(reg),
		engine.WithProfiling(opts.Profile),
	}

	var win window.Window
	if opts.Window {
		win, err = window.NewWindow(
			window.WithTitle("oxy-bridge: "+filepath.Base(opts.Script)),
			window.WithPanel(cfg.Panel),
			window.WithWidth(cfg.Renderer.Width),
			window.WithHeight(cfg.Renderer.Height),
		)
		if err != nil {
			return err
		}
		defer func() { _ = win.Close() }()
		bridgeOpts = append(bridgeOpts, engine.WithViewport(win))
	}

	b, err := engine.NewBridge(h, bridgeOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error(err, "bridge teardown failed")
		}
	}()

	if cfg.Metrics.Address != "" {
		stop, err := serveMetrics(cfg.Metrics.Address, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	if err := b.Start(); err != nil {
		return err
	}

	player := replay.NewPlayer(h, b,
		replay.WithBaseDir(filepath.Dir(opts.Script)),
		replay.WithLogger(logger),
	)
	sum, runErr := player.Run(ctx, script)

	if win != nil && runErr == nil {
		win.SetUpdateCallback(func() {
			if err := b.Setup(cfg.Panel); err != nil {
				logger.Error(err, "frame setup failed")
			}
		})
		win.ProcessMessages()
	}

	printSummary(cli, sum, b)
	return runErr
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logr.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "metrics server stopped")
		}
	}()
	logger.Info("serving metrics", "address", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printSummary(cli *CLI, sum replay.Summary, b engine.Bridge) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(cli.Out, "%s %d steps, %d frames\n", color.GreenString("replayed"), sum.Steps, sum.Frames)
	fmt.Fprintf(cli.Out, "  %s %d\n", bold("lights:"), b.Lights().Len())
	fmt.Fprintf(cli.Out, "  %s %d\n", bold("meshes:"), b.Meshes().Len())
	fmt.Fprintf(cli.Out, "  %s %d\n", bold("relations:"), b.Shading().Len())
	fmt.Fprintf(cli.Out, "  %s %d\n", bold("bindings:"), b.Shading().Bindings())
	fmt.Fprintf(cli.Out, "  %s %d\n", bold("materials:"), b.Materials().Len())
	fmt.Fprintf(cli.Out, "  %s %d\n", bold("textures:"), b.Textures().Len())
	fmt.Fprintf(cli.Out, "  %s %d\n", bold("callbacks:"), b.Dispatcher().LiveTokens())
	w, h := b.Renderer().Dimensions()
	fmt.Fprintf(cli.Out, "  %s %dx%d\n", bold("frame:"), w, h)
}

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camstream/cmd"
	"github.com/smazurov/camstream/internal/api"
	"github.com/smazurov/camstream/internal/config"
	"github.com/smazurov/camstream/internal/events"
	"github.com/smazurov/camstream/internal/frame"
	"github.com/smazurov/camstream/internal/led"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/metrics"
	"github.com/smazurov/camstream/internal/source"
	"github.com/smazurov/camstream/internal/streaming"
	"github.com/smazurov/camstream/internal/systemd"
	"github.com/smazurov/camstream/ui"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `doc:"Path to configuration file" short:"c" default:"camstream.toml"`

	// Server settings
	Bind           string `doc:"Bind address, empty for all interfaces" default:"" toml:"server.bind" env:"SERVER_BIND"`
	Port           int    `doc:"Port to listen on" short:"p" default:"8080" toml:"server.port" env:"SERVER_PORT"`
	IPVersion      int    `doc:"Listener address family (4 or 6)" default:"4" toml:"server.ip_version" env:"SERVER_IP_VERSION"`
	HTTPLog        bool   `doc:"Log every HTTP request" default:"false" toml:"server.http_log" env:"SERVER_HTTP_LOG"`
	ResolveClients bool   `doc:"Reverse-resolve client addresses in logs and stats" default:"false" toml:"server.resolve_clients" env:"SERVER_RESOLVE_CLIENTS"`

	// Stream settings
	Rotate      string `doc:"Default rotation in degrees counter-clockwise, -1 for none" default:"-1" toml:"stream.rotate" env:"STREAM_ROTATE"`
	ShowFPS     bool   `doc:"Draw the FPS overlay on streams by default" default:"false" toml:"stream.show_fps" env:"STREAM_SHOW_FPS"`
	EncodeWait  string `doc:"Seconds between stream frames" default:"0.05" toml:"stream.encode_wait" env:"STREAM_ENCODE_WAIT"`
	JPEGQuality int    `doc:"JPEG quality (1-100)" default:"80" toml:"stream.jpeg_quality" env:"STREAM_JPEG_QUALITY"`

	// Source settings
	Source       string `doc:"Frame source: pattern: or an http(s) MJPEG URL" default:"pattern:" toml:"source.url" env:"SOURCE_URL"`
	SourceWidth  int    `doc:"Test pattern width" default:"640" toml:"source.width" env:"SOURCE_WIDTH"`
	SourceHeight int    `doc:"Test pattern height" default:"480" toml:"source.height" env:"SOURCE_HEIGHT"`
	SourceFPS    int    `doc:"Test pattern frame rate" default:"15" toml:"source.fps" env:"SOURCE_FPS"`

	// Features settings
	TallyLED string `doc:"LED lit while viewers are connected: empty to disable, auto, or a /sys/class/leds name" default:"" toml:"features.tally_led" env:"FEATURES_TALLY_LED"`

	// Logging settings
	LoggingLevel     string `doc:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `doc:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingStreaming string `doc:"Streaming server logging level" default:"info" toml:"logging.streaming" env:"LOGGING_STREAMING"`
	LoggingSource    string `doc:"Frame source logging level" default:"info" toml:"logging.source" env:"LOGGING_SOURCE"`
	LoggingAPI       string `doc:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP      string `doc:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

// streamingConfig converts CLI options into the server configuration.
func streamingConfig(opts *Options) (streaming.Config, error) {
	cfg := streaming.DefaultConfig()
	cfg.Bind = strings.TrimSpace(opts.Bind)
	cfg.Port = opts.Port
	cfg.IPVersion = opts.IPVersion
	cfg.ShowFPS = opts.ShowFPS
	cfg.HTTPLog = opts.HTTPLog
	cfg.ResolveClients = opts.ResolveClients
	if opts.JPEGQuality > 0 {
		cfg.JPEGQuality = opts.JPEGQuality
	}

	if s := strings.TrimSpace(opts.Rotate); s != "" {
		rotate, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid rotate %q: %w", opts.Rotate, err)
		}
		cfg.Rotate = rotate
	}
	if s := strings.TrimSpace(opts.EncodeWait); s != "" {
		wait, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid encode wait %q: %w", opts.EncodeWait, err)
		}
		cfg.EncodeWait = wait
	}

	return cfg, cfg.Validate()
}

func loggingConfig(opts *Options) logging.Config {
	return logging.Config{
		Level:  opts.LoggingLevel,
		Format: opts.LoggingFormat,
		Modules: map[string]string{
			"streaming": opts.LoggingStreaming,
			"source":    opts.LoggingSource,
			"api":       opts.LoggingAPI,
			"http":      opts.LoggingHTTP,
		},
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		configErr := config.LoadConfig(opts, cli.Root())

		logging.Initialize(loggingConfig(opts))
		logger := logging.GetLogger("main")
		if configErr != nil {
			logger.Warn("Failed to load config", "error", configErr)
		}

		streamCfg, err := streamingConfig(opts)
		if err != nil {
			logger.Error("Invalid configuration", "error", err)
			os.Exit(streaming.ExitSoftware)
		}

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.LogEvent(entry))
		})

		registry := metrics.NewRegistry()
		tracker := metrics.NewTracker(registry)
		store := frame.NewStore()

		streamServer, err := streaming.NewServer(streamCfg, streaming.Options{
			Store:    store,
			Tracker:  tracker,
			EventBus: eventBus,
		})
		if err != nil {
			logger.Error("Failed to create streaming server", "error", err)
			os.Exit(streaming.ExitSoftware)
		}

		src, err := source.New(source.Config{
			URL:    opts.Source,
			Width:  opts.SourceWidth,
			Height: opts.SourceHeight,
			FPS:    opts.SourceFPS,
			Sink:   store,
			Gate:   streamServer.Gate(),
			Rate:   tracker,
		})
		if err != nil {
			logger.Error("Failed to create frame source", "error", err, "source", opts.Source)
			os.Exit(streaming.ExitSoftware)
		}

		api.NewServer(&api.Options{
			Mux:               streamServer.Mux(),
			Stats:             streamServer,
			Frames:            store,
			EventBus:          eventBus,
			PrometheusHandler: metrics.Handler(registry),
			HTTPLog:           streamCfg.HTTPLog,
		})

		if uiErr := ui.Mount(streamServer.Mux()); uiErr != nil {
			logger.Warn("Viewer not mounted", "error", uiErr)
		}

		tally := led.NewTally(led.New(opts.TallyLED, logger), eventBus, logging.GetLogger("led"))

		notifier := systemd.NewNotifier(logger)
		events.Subscribe(eventBus, func(e events.GateChangedEvent) {
			notifier.Status(fmt.Sprintf("%d active sessions", e.Sessions))
		})

		ctx, cancel := context.WithCancel(context.Background())
		exited := make(chan struct{})

		hooks.OnStart(func() {
			defer close(exited)

			watcher := config.NewWatcher(opts.Config, func(path string) (logging.Config, error) {
				return config.LoadLoggingConfig(path), nil
			}, logging.GetLogger("config"))
			watcher.OnReload(func(cfg logging.Config) {
				logger.Info("Reloading logging levels", "level", cfg.Level)
				logging.Initialize(cfg)
			})
			if startErr := watcher.Start(ctx); startErr != nil {
				logger.Warn("Config watcher not started", "error", startErr)
			}

			if listenErr := streamServer.Listen(); listenErr != nil {
				logger.Error("Failed to bind listener", "error", listenErr)
				os.Exit(streaming.ExitCode(listenErr))
			}
			notifier.Ready(streamServer.Addr().String())

			tally.Start()

			go func() {
				if runErr := src.Run(ctx); runErr != nil {
					logger.Error("Frame source stopped", "source", src.Name(), "error", runErr)
				}
			}()

			logger.Info("Serving MJPEG", "addr", streamServer.Addr().String(), "source", src.Name())
			serveErr := streamServer.Serve(ctx)
			cancel()
			tally.Stop()
			_ = watcher.Stop()

			// Only the signal path exits 0; humacli returns from Run after OnStop.
			if code := streaming.ExitCode(serveErr); code != streaming.ExitOK {
				notifier.Stopping()
				logger.Info("Exiting", "code", code, "reason", serveErr)
				os.Exit(code)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			cancel()
			<-exited
		})
	})

	cli.Root().Use = "camstream"
	cli.Root().Short = "MJPEG streaming server with on-demand frame production"

	cli.Root().AddCommand(cmd.CreateInfoCmd())
	cli.Root().AddCommand(cmd.CreateSnapshotCmd())
	cli.Root().AddCommand(cmd.CreateShutdownCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	// Run the CLI
	cli.Run()
}

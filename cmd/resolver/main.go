// Command resolver runs the kaspa-resolver core: configuration loading,
// the Resolver update loop, and the minimal election HTTP surface (mux
// wiring, signal handling, graceful shutdown), with a subcommand surface
// and flag names carried over from the original args.rs/main.rs.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/aspectron/kaspa-resolver/internal/config"
	"github.com/aspectron/kaspa-resolver/internal/httpapi"
	"github.com/aspectron/kaspa-resolver/internal/logger"
	"github.com/aspectron/kaspa-resolver/internal/metrics"
	"github.com/aspectron/kaspa-resolver/internal/resolver"
	"github.com/aspectron/kaspa-resolver/internal/session"
)

const (
	defaultListen          = "127.0.0.1:8989"
	sessionCleanupInterval = 5 * time.Minute
)

func main() {
	app := &cli.App{
		Name:    "kaspa-resolver",
		Usage:   "resolver for the kaspa/sparkle RPC node fleet",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Enable verbose logging"},
			&cli.BoolFlag{Name: "trace", Usage: "Enable trace log level"},
			&cli.BoolFlag{Name: "auto-update", Usage: "Poll configuration updates (public nodes only)"},
			&cli.StringFlag{Name: "config-file", Usage: "TOML config file (absolute or relative to working directory)"},
			&cli.StringFlag{Name: "settings-file", Usage: "Resolver.toml settings file"},
			&cli.StringFlag{Name: "listen", Value: defaultListen, Usage: "Listen on custom interface and port"},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{Name: "test", Usage: "Test configuration", Action: testAction},
			{Name: "login", Usage: "Create local update key", Action: notImplementedAction},
			{Name: "pack", Usage: "Pack configuration", Action: notImplementedAction},
			{Name: "unpack", Usage: "Unpack configuration", Action: notImplementedAction},
			{Name: "update", Usage: "Update configuration from GitHub", Action: notImplementedAction},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func notImplementedAction(c *cli.Context) error {
	fmt.Fprintf(os.Stderr, "%s: not implemented in this build\n", c.Command.Name)
	return nil
}

func testAction(c *cli.Context) error {
	if _, err := config.LoadSettings(c.String("settings-file")); err != nil {
		return err
	}
	nodes, _, err := loadNodeSource(c).Load(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "config OK: %d node(s)\n", len(nodes))
	return nil
}

// loadNodeSource returns a Source wrapper whose single Load call parses
// whatever config-file (or a minimal empty default) was given, used
// only by the `test` subcommand to validate a config without starting
// the server.
func loadNodeSource(c *cli.Context) *config.PrecedenceSource {
	var opts []config.PrecedenceSourceOption
	if path := c.String("config-file"); path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			opts = append(opts, config.WithUserFile(string(data)))
		}
	}
	return config.NewPrecedenceSource("", opts...)
}

func runAction(c *cli.Context) error {
	logLevel := "info"
	if c.Bool("trace") {
		logLevel = "debug"
	}
	logger.Init(logLevel)
	log := logger.With("main")

	settings, err := config.LoadSettings(c.String("settings-file"))
	if err != nil {
		log.Error("load settings", "err", err)
		return err
	}

	var sourceOpts []config.PrecedenceSourceOption
	if path := c.String("config-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error("read config-file", "err", err)
			return err
		}
		sourceOpts = append(sourceOpts, config.WithUserFile(string(data)))
	} else if c.Bool("auto-update") && settings.Updates.Url != "" {
		log.Info("enabling auto-update")
		sourceOpts = append(sourceOpts, config.WithAutoUpdate(settings.Updates.Url, config.NewHTTPGetter(nil), config.NewStubKeySource()))
	}
	sourceOpts = append(sourceOpts, config.WithLogf(func(format string, args ...any) {
		log.Warn(fmt.Sprintf(format, args...))
	}))

	source := config.NewPrecedenceSource(bundledDefaultToml, sourceOpts...)

	r := resolver.New(
		source,
		settings.Updates.Duration(),
		settings.Sync.ToConnectionSettings(),
		settings.Ttl.ToConnectionSettings(),
		c.Bool("verbose"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		log.Error("start resolver", "err", err)
		return err
	}

	metrics.Init("resolver")
	sessions := session.New(settings.Http.Status.SessionLimit(), settings.Http.Status.TTL())
	mux := httpapi.NewMux(r, sessions)
	mux.Handle("/metrics", metrics.Handler())

	listen := c.String("listen")
	server := &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
		}
	}()

	go runSessionCleanup(ctx, sessions)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "err", err)
	}
	if err := r.Stop(shutdownCtx); err != nil {
		log.Error("resolver shutdown", "err", err)
	}

	log.Info("stopped")
	return nil
}

// runSessionCleanup evicts expired/over-capacity status sessions on a
// fixed tick until ctx is canceled.
func runSessionCleanup(ctx context.Context, sessions *session.Sessions) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sessions.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// bundledDefaultToml is the fallback node configuration shipped with
// the binary, used whenever no user config file is supplied and
// auto-update is disabled or unavailable. Packing a real bundled
// fleet list into the binary is an operational/release concern outside
// this repo's scope; this stays empty so Resolver.Start still succeeds
// with zero nodes rather than failing fatally with LocalConfigNotFound.
const bundledDefaultToml = ``

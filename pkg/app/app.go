// Package app wires the orchestration core together for the CLI
// entry point (main.go): connecting the engine, loading the
// configuration document, and dispatching the build/up/explain
// subcommands.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jlkiri/ikki/pkg/builder"
	"github.com/jlkiri/ikki/pkg/config"
	"github.com/jlkiri/ikki/pkg/engine"
	"github.com/jlkiri/ikki/pkg/ikkierr"
	"github.com/jlkiri/ikki/pkg/log"
	"github.com/jlkiri/ikki/pkg/supervisor"
	"github.com/sirupsen/logrus"
)

// shutdownGrace bounds how long a graceful shutdown (Up --watch, on
// SIGINT) is allowed to take before the process just exits.
const shutdownGrace = 30 * time.Second

// App is the top-level collaborator each CLI subcommand runs against.
type App struct {
	Config *config.AppConfig
	Log    *logrus.Entry
	client *engine.Client
}

// NewApp sets up logging and connects to the container engine, in
// that order.
func NewApp(appConfig *config.AppConfig) (*App, error) {
	logger := log.NewLogger(appConfig)

	client, err := engine.Connect()
	if err != nil {
		return nil, ikkierr.EngineFailure("failed to connect to the container engine: " + err.Error())
	}

	return &App{Config: appConfig, Log: logger, client: client}, nil
}

// Close releases the engine connection.
func (a *App) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

// KnownError reports whether err is one of this system's own
// ikkierr.Error values, and if so returns its user-facing message.
func (a *App) KnownError(err error) (string, bool) {
	var ie *ikkierr.Error
	if ikkierr.As(err, &ie) {
		return ie.Message, true
	}
	return "", false
}

// LoadConfig reads and parses the configuration document at filename.
func (a *App) LoadConfig(filename string) (*config.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, ikkierr.ConfigInvalid("no ikki configuration file found at " + filename)
	}
	return config.ParseDocument(filename, string(data))
}

// Build runs the `build [name]` subcommand: a full build in schedule
// order when name is empty, or a partial-subgraph build rooted at
// name.
func (a *App) Build(ctx context.Context, cfg *config.Config, name string) error {
	b := builder.New(a.client, cfg)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go b.Run(runCtx)

	h := builder.NewHandle(b)

	if name == "" {
		printBuildOrder(cfg)
		return h.BuildAll(ctx)
	}
	return h.Build(ctx, name)
}

// Up runs the `up [--watch]` subcommand: build and run every serviced
// image, then, if watch is set, hand off to the Supervisor Actor
// until SIGINT.
func (a *App) Up(ctx context.Context, cfg *config.Config, watch bool) error {
	b := builder.New(a.client, cfg)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go b.Run(runCtx)

	h := builder.NewHandle(b)

	printBuildOrder(cfg)

	if err := h.BuildAll(ctx); err != nil {
		return err
	}
	if _, err := h.RunAll(ctx); err != nil {
		return err
	}

	if !watch {
		return nil
	}

	index, err := cfg.SourceIndex()
	if err != nil {
		return err
	}

	sup, err := supervisor.New(h, index, supervisor.Run, a.Log)
	if err != nil {
		return err
	}

	fmt.Println("Watching for source changes...")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh

	a.Log.Debug("received interrupt signal, shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancelShutdown()
	return sup.Shutdown(shutdownCtx)
}

// Explain runs the `explain` subcommand: print the equivalent
// `docker build`/`docker pull`/`docker run` command lines for every
// image.
func (a *App) Explain(cfg *config.Config) error {
	for _, img := range cfg.Images {
		opts, err := engine.NewBuildOptions(img)
		if err != nil {
			return err
		}
		fmt.Println(opts.Explain(img.BuildArgs))
	}

	for _, img := range cfg.Images {
		if !img.HasService() {
			continue
		}
		opts := engine.NewRunOptions(img.Name, img.RunTag(), *img.Service)
		fmt.Println(opts.Explain())
	}

	return nil
}

func printBuildOrder(cfg *config.Config) {
	fmt.Println("Calculated image build order:")
	fmt.Println()
	for i, layer := range cfg.BuildOrder {
		fmt.Printf("[%d] %s\n", i+1, strings.Join(layer, ", "))
	}
	fmt.Println()
}

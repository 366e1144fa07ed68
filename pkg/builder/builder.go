// Package builder implements the builder actor: the sole owner of the
// engine handle and the parsed config, serializing every build/run/
// stop command through a bounded channel while running the jobs
// within one schedule layer concurrently.
package builder

import (
	"context"

	"github.com/jlkiri/ikki/pkg/config"
	"github.com/jlkiri/ikki/pkg/engine"
	"github.com/jlkiri/ikki/pkg/ikkierr"
	"github.com/jlkiri/ikki/pkg/progress"
	"github.com/jlkiri/ikki/pkg/schedule"
)

// requestCapacity bounds the command channel.
const requestCapacity = 50

type kind int

const (
	kindBuildAll kind = iota
	kindRunAll
	kindBuild
	kindRun
	kindStopAll
)

type reply struct {
	ids []string
	err error
}

type command struct {
	kind  kind
	name  string
	ids   []string
	reply chan reply
}

// Builder is the actor: owns the engine client, the parsed config,
// and its own command channel. Create one with New and run its loop
// with Run; commands are only ever sent through a Handle.
type Builder struct {
	client   engine.Driver
	cfg      *config.Config
	requests chan command
}

// New constructs a Builder. Call Run in its own goroutine to start
// the command loop, then obtain a Handle with NewHandle.
func New(client engine.Driver, cfg *config.Config) *Builder {
	return &Builder{
		client:   client,
		cfg:      cfg,
		requests: make(chan command, requestCapacity),
	}
}

// Run processes commands strictly one at a time until ctx is
// cancelled or the request channel is closed.
func (b *Builder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-b.requests:
			if !ok {
				return
			}
			b.handle(ctx, cmd)
		}
	}
}

func (b *Builder) handle(ctx context.Context, cmd command) {
	switch cmd.kind {
	case kindBuildAll:
		err := b.buildOrder(ctx, b.cfg.BuildOrder)
		cmd.reply <- reply{err: err}

	case kindRunAll:
		ids, err := b.runOrder(ctx, b.cfg.BuildOrder)
		cmd.reply <- reply{ids: ids, err: err}

	case kindBuild:
		order, err := schedule.Incremental(b.cfg.BuildOrder, cmd.name)
		if err != nil {
			cmd.reply <- reply{err: err}
			return
		}
		err = b.buildOrder(ctx, order)
		cmd.reply <- reply{err: err}

	case kindRun:
		order, err := schedule.Incremental(b.cfg.BuildOrder, cmd.name)
		if err != nil {
			cmd.reply <- reply{err: err}
			return
		}
		ids, err := b.runOrder(ctx, order)
		cmd.reply <- reply{ids: ids, err: err}

	case kindStopAll:
		err := b.stopAll(ctx, cmd.ids)
		cmd.reply <- reply{err: err}

	default:
		cmd.reply <- reply{err: ikkierr.Internal("unknown builder command")}
	}
}

func (b *Builder) buildOrder(ctx context.Context, order schedule.Order) error {
	renderer := progress.NewRenderer()
	defer renderer.Clear()

	for _, layer := range order {
		if err := b.buildLayer(ctx, layer, renderer); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) buildLayer(ctx context.Context, layer schedule.Layer, renderer *progress.Renderer) error {
	layerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	downloads := renderer.NewDownloadAggregator("pulling")
	defer downloads.Done()

	results := make(chan error, len(layer))

	for _, name := range layer {
		name := name
		go func() {
			img, err := b.cfg.FindImage(name)
			if err != nil {
				results <- err
				return
			}

			bar := renderer.ActivityBar(name)
			defer bar.Done()

			results <- b.client.RunJob(layerCtx, img, bar, downloads)
		}()
	}

	var first error
	for range layer {
		if err := <-results; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

func (b *Builder) runOrder(ctx context.Context, order schedule.Order) ([]string, error) {
	var ids []string
	for _, layer := range order {
		layerIDs, err := b.runLayer(ctx, layer)
		if err != nil {
			return nil, err
		}
		ids = append(ids, layerIDs...)
	}
	return ids, nil
}

type runResult struct {
	id  string
	err error
}

func (b *Builder) runLayer(ctx context.Context, layer schedule.Layer) ([]string, error) {
	layerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan runResult, len(layer))
	pending := 0

	for _, name := range layer {
		img, err := b.cfg.FindImage(name)
		if err != nil {
			return nil, err
		}
		if !img.HasService() {
			continue
		}

		pending++
		img := img
		go func() {
			opts := engine.NewRunOptions(img.Name, img.RunTag(), *img.Service)
			id, err := b.client.RunContainer(layerCtx, opts)
			results <- runResult{id: id, err: err}
		}()
	}

	var ids []string
	var first error
	for i := 0; i < pending; i++ {
		r := <-results
		if r.err != nil {
			if first == nil {
				first = r.err
				cancel()
			}
			continue
		}
		ids = append(ids, r.id)
	}
	if first != nil {
		return nil, first
	}
	return ids, nil
}

// stopAll iterates ids sequentially, stopping then removing each. A
// "not found" failure on either step is tolerated and the loop
// continues with the next id (a container that is not found on stop is
// not removed); any other failure aborts the whole command.
func (b *Builder) stopAll(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := b.client.StopContainer(ctx, id); err != nil {
			if engine.IsNotFound(err) {
				continue
			}
			return err
		}
		if err := b.client.RemoveContainer(ctx, id); err != nil && !engine.IsNotFound(err) {
			return err
		}
	}
	return nil
}

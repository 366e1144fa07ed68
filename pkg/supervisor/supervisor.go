// Package supervisor implements the incremental build/run lifecycle
// driven by filesystem change events, fusing the FS watcher's event
// stream with the builder actor.
package supervisor

import (
	"context"
	"sync"

	"github.com/jlkiri/ikki/pkg/builder"
	"github.com/jlkiri/ikki/pkg/watch"
	"github.com/sirupsen/logrus"
)

// eventCapacity bounds the supervisor's own event channel.
const eventCapacity = 10

// Mode selects whether a settled image is only rebuilt, or rebuilt
// and restarted.
type Mode int

const (
	BuildOnly Mode = iota
	Run
)

type eventKind int

const (
	eventSourceChanged eventKind = iota
	eventShutdown
)

type event struct {
	kind      eventKind
	imageName string
}

// Handle is the cheaply held façade over a running supervisor: only
// Shutdown is exposed.
type Handle struct {
	events   chan event
	listener *watch.Listener
	cancel   context.CancelFunc
	loopDone chan struct{}
	wg       sync.WaitGroup
}

// New starts the supervisor loop and the FS watch listener sharing
// its event channel, and returns a Handle. log receives one line per
// tolerated per-image failure; it never aborts the loop.
func New(bh builder.Handle, index map[string]string, mode Mode, log *logrus.Entry) (*Handle, error) {
	events := make(chan event, eventCapacity)
	bridge := make(chan watch.SourceChanged, eventCapacity)

	listener, err := watch.New(index, bridge)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	h := &Handle{events: events, listener: listener, cancel: cancel, loopDone: make(chan struct{})}

	go func() {
		defer close(h.loopDone)
		runLoop(ctx, bh, events, mode, log)
	}()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		listener.Run(ctx)
	}()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		bridgeWatchEvents(ctx, bridge, events)
	}()

	return h, nil
}

func bridgeWatchEvents(ctx context.Context, bridge <-chan watch.SourceChanged, events chan<- event) {
	for {
		select {
		case <-ctx.Done():
			return
		case sc, ok := <-bridge:
			if !ok {
				return
			}
			select {
			case events <- event{kind: eventSourceChanged, imageName: sc.ImageName}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func runLoop(ctx context.Context, bh builder.Handle, events <-chan event, mode Mode, log *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.kind {
			case eventShutdown:
				if err := bh.ShutdownAll(ctx); err != nil {
					log.WithError(err).Error("failed to stop containers on shutdown")
				}
				return

			case eventSourceChanged:
				if err := bh.Build(ctx, ev.imageName); err != nil {
					log.WithError(err).WithField("image", ev.imageName).Error("rebuild failed")
					continue
				}
				if mode == Run {
					if _, err := bh.Run(ctx, ev.imageName); err != nil {
						log.WithError(err).WithField("image", ev.imageName).Error("restart failed")
					}
				}
			}
		}
	}
}

// Shutdown sends Shutdown, awaits the FS listener, then awaits the
// supervisor loop — in that order. The supervisor loop is awaited by
// waiting for it to process the queued Shutdown event and return on its
// own, not by racing it against context cancellation: the loop's
// context is only cancelled afterwards, to unblock the FS-event bridge
// goroutine which has nothing left to forward. If ctx expires before
// the loop has returned, the loop's context is cancelled at that point
// and the loop returns without waiting for any outstanding builder reply.
func (h *Handle) Shutdown(ctx context.Context) error {
	select {
	case h.events <- event{kind: eventShutdown}:
	case <-ctx.Done():
	}

	err := h.listener.Shutdown()

	select {
	case <-h.loopDone:
	case <-ctx.Done():
		h.cancel()
		<-h.loopDone
	}

	h.cancel()
	h.wg.Wait()

	return err
}

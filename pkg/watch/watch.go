// Package watch registers every canonicalized image source directory
// recursively, debounces the underlying provider's raw events per
// path, and emits SourceChanged for any event whose canonicalized
// parent directory hits the image-source index.
//
// github.com/fsnotify/fsnotify delivers raw, undebounced events, so
// the quiet window is implemented here with a per-path time.Timer,
// reset on every new event for that path and only forwarded once it
// fires uninterrupted.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jlkiri/ikki/pkg/ikkierr"
)

// bridgeCapacity bounds the channel that carries raw events from the
// blocking provider worker to the cooperative dispatch loop.
const bridgeCapacity = 10

// debounceWindow is the quiet period a path must see with no further
// events before it is reported.
const debounceWindow = 2 * time.Second

// SourceChanged is the event the supervisor channel consumes: a file
// under the named image's source tree settled after a debounce
// window.
type SourceChanged struct {
	ImageName string
}

// Listener owns one fsnotify.Watcher and the goroutines bridging and
// debouncing its events.
type Listener struct {
	watcher *fsnotify.Watcher
	index   map[string]string
	out     chan<- SourceChanged
	bridge  chan fsnotify.Event
	wg      sync.WaitGroup
}

// New creates a Listener watching every directory key in index
// (canonicalized image source path -> image name) recursively.
func New(index map[string]string, out chan<- SourceChanged) (*Listener, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ikkierr.WatcherFailure(err.Error())
	}

	for root := range index {
		if err := addRecursive(w, root); err != nil {
			w.Close()
			return nil, ikkierr.WatcherFailure(err.Error())
		}
	}

	return &Listener{
		watcher: w,
		index:   index,
		out:     out,
		bridge:  make(chan fsnotify.Event, bridgeCapacity),
	}, nil
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// Run starts the blocking-provider bridge worker and runs the
// debounced dispatch loop until the watcher is closed (Shutdown) or
// ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	l.wg.Add(1)
	go l.bridgeLoop()

	l.dispatchLoop(ctx)
	l.wg.Wait()
}

// bridgeLoop is the dedicated blocking worker that reads the
// provider's own Events/Errors channels and forwards qualifying
// events into the bounded bridge channel. It exits, and closes the
// bridge, once the watcher itself is closed.
func (l *Listener) bridgeLoop() {
	defer l.wg.Done()
	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				close(l.bridge)
				return
			}
			if !relevant(event.Op) {
				continue
			}
			l.bridge <- event
		case _, ok := <-l.watcher.Errors:
			if !ok {
				close(l.bridge)
				return
			}
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) != 0
}

// dispatchLoop debounces raw events per path and, once a path settles
// for debounceWindow, canonicalizes its parent directory and looks it
// up in the Image-Source Index.
func (l *Listener) dispatchLoop(ctx context.Context) {
	timers := map[string]*time.Timer{}
	settled := make(chan string)

	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-l.bridge:
			if !ok {
				return
			}
			path := event.Name
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(debounceWindow, func() {
				select {
				case settled <- path:
				case <-ctx.Done():
				}
			})

		case path := <-settled:
			delete(timers, path)
			l.dispatch(ctx, path)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, path string) {
	dir := filepath.Dir(path)
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		real = dir
	}

	name, hit := l.index[real]
	if !hit {
		return
	}

	select {
	case l.out <- SourceChanged{ImageName: name}:
	case <-ctx.Done():
	}
}

// Shutdown drops the underlying watcher and joins the blocking
// bridge worker.
func (l *Listener) Shutdown() error {
	err := l.watcher.Close()
	l.wg.Wait()
	if err != nil {
		return ikkierr.WatcherFailure(err.Error())
	}
	return nil
}

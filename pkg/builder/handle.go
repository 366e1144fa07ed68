package builder

import (
	"context"
	"sync"
)

// Handle is the cheaply clonable façade over a running builder: the
// sender side of the command channel, plus an internal mutable slot
// holding the last RunAll container-ID list. Copy it by value; every
// copy shares the same channel and slot.
type Handle struct {
	requests chan command
	state    *handleState
}

type handleState struct {
	mu      sync.Mutex
	lastIDs []string
}

// NewHandle returns a Handle bound to b's command channel. b.Run must
// be running in its own goroutine for the handle to make progress.
func NewHandle(b *Builder) Handle {
	return Handle{requests: b.requests, state: &handleState{}}
}

// BuildAll requests a full build of every image in schedule order.
func (h Handle) BuildAll(ctx context.Context) error {
	_, err := h.send(ctx, command{kind: kindBuildAll})
	return err
}

// RunAll requests a full run of every serviced image in schedule
// order, and records the returned container IDs in the handle's slot
// for a later ShutdownAll.
func (h Handle) RunAll(ctx context.Context) ([]string, error) {
	ids, err := h.send(ctx, command{kind: kindRunAll})
	if err == nil {
		h.setLastIDs(ids)
	}
	return ids, err
}

// Build requests a partial-subgraph build rooted at name.
func (h Handle) Build(ctx context.Context, name string) error {
	_, err := h.send(ctx, command{kind: kindBuild, name: name})
	return err
}

// Run requests a partial-subgraph run rooted at name.
func (h Handle) Run(ctx context.Context, name string) ([]string, error) {
	return h.send(ctx, command{kind: kindRun, name: name})
}

// StopAll requests that every container in ids be stopped then
// removed.
func (h Handle) StopAll(ctx context.Context, ids []string) error {
	_, err := h.send(ctx, command{kind: kindStopAll, ids: ids})
	return err
}

// ShutdownAll sends StopAll with the contents of the handle's last
// RunAll slot.
func (h Handle) ShutdownAll(ctx context.Context) error {
	h.state.mu.Lock()
	ids := append([]string(nil), h.state.lastIDs...)
	h.state.mu.Unlock()
	return h.StopAll(ctx, ids)
}

func (h Handle) setLastIDs(ids []string) {
	h.state.mu.Lock()
	h.state.lastIDs = ids
	h.state.mu.Unlock()
}

func (h Handle) send(ctx context.Context, cmd command) ([]string, error) {
	cmd.reply = make(chan reply, 1)

	select {
	case h.requests <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r.ids, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Package progress renders build/pull progress to the terminal using
// github.com/vbauerster/mpb/v8.
//
// Two kinds of sink exist: a per-job activity indicator ticked on
// every stream frame, and a layer-shared download indicator that
// aggregates "Downloading" frames across every concurrent job in the
// current layer.
package progress

import (
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Renderer owns the multi-bar container for one build invocation. It
// is created fresh per command and cleared once the command's layers
// have all finished.
type Renderer struct {
	mp *mpb.Progress
}

// NewRenderer starts a new multi-bar renderer.
func NewRenderer() *Renderer {
	return &Renderer{mp: mpb.New(mpb.WithWidth(40))}
}

// Clear waits until every bar attached to the renderer has completed
// or been aborted, then stops the renderer. It blocks while any bar is
// still active.
func (r *Renderer) Clear() {
	r.mp.Wait()
}

// ActivityBar returns a per-job indicator ticked once per stream
// frame. The bar is indeterminate (no fixed total): it exists to show
// the job is alive, not to show completion percentage.
func (r *Renderer) ActivityBar(label string) *Bar {
	b := r.mp.AddBar(0,
		mpb.PrependDecorators(decor.Name(label)),
		mpb.AppendDecorators(decor.Spinner(nil)),
	)
	return &Bar{bar: b}
}

// Bar wraps an *mpb.Bar with the handful of operations job runners
// need.
type Bar struct {
	bar *mpb.Bar
}

// Tick advances the indeterminate bar by one frame.
func (b *Bar) Tick() {
	b.bar.Increment()
}

// Done marks the bar complete and lets the renderer drop it.
func (b *Bar) Done() {
	b.bar.SetCurrent(b.bar.Current())
	b.bar.Abort(true)
}

// DownloadAggregator is the shared "Downloading" indicator for one
// layer: every concurrent job in that layer reports its
// layer-blob-id progress here, and the bar shows the sum of totals
// and sum of currents across every id seen so far. The accumulator is
// an explicit value owned by the caller, not package-level state.
type DownloadAggregator struct {
	mu       sync.Mutex
	bar      *mpb.Bar
	progress map[string]blobProgress
}

type blobProgress struct {
	total, current int64
}

// NewDownloadAggregator attaches a new shared download bar to the
// renderer. Callers create one per layer, when that layer starts,
// before any of its jobs has reported a frame.
func (r *Renderer) NewDownloadAggregator(label string) *DownloadAggregator {
	return &DownloadAggregator{
		bar:      r.mp.AddBar(0, mpb.PrependDecorators(decor.Name(label)), mpb.AppendDecorators(decor.CountersKibiByte("% .2f / % .2f"))),
		progress: map[string]blobProgress{},
	}
}

// Record updates the running total/current for one blob id and
// re-renders the bar as the sum across every id recorded so far.
// Last value wins per id.
func (a *DownloadAggregator) Record(id string, total, current int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.progress[id] = blobProgress{total: total, current: current}

	var sumTotal, sumCurrent int64
	for _, p := range a.progress {
		sumTotal += p.total
		sumCurrent += p.current
	}

	a.bar.SetTotal(sumTotal, false)
	a.bar.SetCurrent(sumCurrent)
}

// Done finalizes and drops the shared bar.
func (a *DownloadAggregator) Done() {
	a.bar.Abort(true)
}

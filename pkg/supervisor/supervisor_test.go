package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jlkiri/ikki/pkg/builder"
	"github.com/jlkiri/ikki/pkg/config"
	"github.com/jlkiri/ikki/pkg/engine"
	"github.com/jlkiri/ikki/pkg/progress"
	"github.com/jlkiri/ikki/pkg/schedule"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type countingDriver struct {
	mu     sync.Mutex
	builds []string
}

func (d *countingDriver) RunJob(ctx context.Context, img config.Image, activity *progress.Bar, downloads *progress.DownloadAggregator) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.builds = append(d.builds, img.Name)
	return nil
}

func (d *countingDriver) RunContainer(ctx context.Context, opts engine.RunOptions) (string, error) {
	return "id", nil
}

func (d *countingDriver) StopContainer(ctx context.Context, id string) error { return nil }

func (d *countingDriver) RemoveContainer(ctx context.Context, id string) error { return nil }

func (d *countingDriver) snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.builds...)
}

func TestSupervisorRebuildsOnSourceChange(t *testing.T) {
	dir := t.TempDir()
	real, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	cfg := &config.Config{
		Images:     []config.Image{{Name: "app", SourcePath: dir}},
		BuildOrder: schedule.Order{{"app"}},
	}

	driver := &countingDriver{}
	b := builder.New(driver, cfg)
	ctx, cancelBuilder := context.WithCancel(context.Background())
	defer cancelBuilder()
	go b.Run(ctx)
	bh := builder.NewHandle(b)

	log := logrus.NewEntry(logrus.New())
	h, err := New(bh, map[string]string{real: "app"}, BuildOnly, log)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if len(driver.snapshot()) > 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	require.Contains(t, driver.snapshot(), "app")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	require.NoError(t, h.Shutdown(shutdownCtx))
}

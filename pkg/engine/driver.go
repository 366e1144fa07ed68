package engine

import (
	"context"

	"github.com/jlkiri/ikki/pkg/config"
	"github.com/jlkiri/ikki/pkg/progress"
)

// Driver is the narrow surface the builder actor needs from the
// engine. *Client implements it against the real Docker engine; tests
// substitute a fake.
type Driver interface {
	RunJob(ctx context.Context, img config.Image, activity *progress.Bar, downloads *progress.DownloadAggregator) error
	RunContainer(ctx context.Context, opts RunOptions) (string, error)
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
}

var _ Driver = (*Client)(nil)

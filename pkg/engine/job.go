package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/jlkiri/ikki/pkg/config"
	"github.com/jlkiri/ikki/pkg/ikkierr"
	"github.com/jlkiri/ikki/pkg/progress"
)

const statusDownloading = "Downloading"

// frame is the subset of the engine's streamed JSON build/pull
// messages this package cares about: a status line, an optional
// progress detail (byte counts), and the blob id the detail belongs
// to.
type frame struct {
	Status         string `json:"status"`
	ID             string `json:"id"`
	ProgressDetail *struct {
		Current int64 `json:"current"`
		Total   int64 `json:"total"`
	} `json:"progressDetail"`
	Error string `json:"error"`
}

// RunJob performs exactly one pull or build job for img: pull when
// PullRef is set, build when SourcePath is set. activity is ticked
// once per stream frame; downloads is the layer-shared aggregator
// that "Downloading" frames report into.
func (c *Client) RunJob(ctx context.Context, img config.Image, activity *progress.Bar, downloads *progress.DownloadAggregator) error {
	if img.PullRef != "" {
		return pullJob(ctx, c, img, activity, downloads)
	}
	if img.SourcePath != "" {
		return buildJob(ctx, c, img, activity, downloads)
	}
	return ikkierr.ConfigInvalid("image " + img.Name + " needs either `path` or `pull`")
}

// pullJob checks the local image list for a tag containing the
// configured pull reference and only pulls on a miss.
func pullJob(ctx context.Context, c *Client, img config.Image, activity *progress.Bar, downloads *progress.DownloadAggregator) error {
	cached, err := imageCached(ctx, c, img.PullRef)
	if err != nil {
		return ikkierr.EngineFailure(err.Error())
	}
	if cached {
		return nil
	}

	rc, err := c.raw.ImagePull(ctx, img.PullRef, types.ImagePullOptions{})
	if err != nil {
		return ikkierr.EngineFailure(err.Error())
	}
	defer rc.Close()

	return consumeFrames(rc, activity, downloads)
}

func imageCached(ctx context.Context, c *Client, ref string) (bool, error) {
	summaries, err := c.raw.ImageList(ctx, types.ImageListOptions{})
	if err != nil {
		return false, err
	}

	for _, summary := range summaries {
		for _, tag := range summary.RepoTags {
			if strings.Contains(tag, ref) {
				return true, nil
			}
		}
	}
	return false, nil
}

// buildJob archives the image's source directory, starts a build, and
// consumes the resulting frame stream, ticking activity on every
// frame and feeding "Downloading" frames (base-image layer pulls
// folded into the build) into the shared aggregator.
//
// The Dockerfile passed to the engine is always "Dockerfile" here:
// the data model carries an optional DockerfilePath but the build job
// never reads it.
func buildJob(ctx context.Context, c *Client, img config.Image, activity *progress.Bar, downloads *progress.DownloadAggregator) error {
	opts, err := NewBuildOptions(img)
	if err != nil {
		return err
	}

	buildCtx, err := archiveDir(ctx, opts.Path)
	if err != nil {
		return err
	}

	buildArgs := make(map[string]*string, len(opts.BuildArgs))
	for k, v := range opts.BuildArgs {
		v := v
		buildArgs[k] = &v
	}

	resp, err := c.raw.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Dockerfile: "Dockerfile",
		Tags:       []string{opts.Tag},
		BuildArgs:  buildArgs,
		Remove:     true,
	})
	if err != nil {
		return ikkierr.EngineFailure(err.Error())
	}
	defer resp.Body.Close()

	return consumeFrames(resp.Body, activity, downloads)
}

// consumeFrames decodes a stream of JSON frames until EOF, ticking
// activity (if any) per frame and recording "Downloading" frames into
// downloads (if any). The first frame carrying a non-empty error
// field fails the job, matching the engine's own error-in-stream
// convention.
func consumeFrames(r io.Reader, activity *progress.Bar, downloads *progress.DownloadAggregator) error {
	dec := json.NewDecoder(r)
	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return ikkierr.EngineFailure(err.Error())
		}

		if f.Error != "" {
			return ikkierr.EngineFailure(f.Error)
		}

		if f.Status == statusDownloading && f.ProgressDetail != nil && downloads != nil {
			downloads.Record(f.ID, f.ProgressDetail.Total, f.ProgressDetail.Current)
		}

		if activity != nil {
			activity.Tick()
		}
	}
}

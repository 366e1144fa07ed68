package engine

import (
	"context"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/jlkiri/ikki/pkg/ikkierr"
)

// RunContainer creates and starts a container from opts, returning its
// engine-assigned id.
func (c *Client) RunContainer(ctx context.Context, opts RunOptions) (string, error) {
	cfg := &container.Config{
		Image: opts.ImageName,
		Env:   opts.Env,
	}

	hostCfg := &container.HostConfig{
		PortBindings: CreatePortsConfig(opts.Ports),
	}

	created, err := c.raw.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.ContainerName)
	if err != nil {
		return "", ikkierr.EngineFailure(err.Error())
	}

	if err := c.raw.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		return "", ikkierr.EngineFailure(err.Error())
	}

	return created.ID, nil
}

// StopContainer stops the container identified by id.
func (c *Client) StopContainer(ctx context.Context, id string) error {
	if err := c.raw.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return ikkierr.EngineFailure(err.Error())
	}
	return nil
}

// RemoveContainer removes the container identified by id.
func (c *Client) RemoveContainer(ctx context.Context, id string) error {
	if err := c.raw.ContainerRemove(ctx, id, types.ContainerRemoveOptions{}); err != nil {
		return ikkierr.EngineFailure(err.Error())
	}
	return nil
}

// IsNotFound reports whether err is the engine's "no such container"
// failure, the one case StopAll tolerates and continues past.
func IsNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "No such container")
}

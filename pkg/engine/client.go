// Package engine wraps the container engine client that drives
// connecting, building, pulling, running and tearing down containers,
// plus the pure option-mapping and `explain` helpers used to describe
// a job before it runs.
package engine

import (
	"github.com/docker/docker/client"
)

// APIVersion pins the Docker API version this engine wrapper
// negotiates against.
const APIVersion = "1.43"

// Client is the thin façade the job runner and builder actor consume.
// It carries nothing beyond the raw SDK client: all orchestration
// state (schedule, config, container registry) lives in the builder
// actor, not here.
type Client struct {
	raw *client.Client
}

// Connect opens a connection to the local container engine using the
// environment (DOCKER_HOST et al.).
func Connect() (*Client, error) {
	raw, err := client.NewClientWithOpts(client.FromEnv, client.WithVersion(APIVersion))
	if err != nil {
		return nil, err
	}
	return &Client{raw: raw}, nil
}

// Close releases the underlying HTTP transport.
func (c *Client) Close() error {
	return c.raw.Close()
}

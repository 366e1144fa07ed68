package engine

import (
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/jlkiri/ikki/pkg/config"
	"github.com/jlkiri/ikki/pkg/ikkierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildOptionsRequiresPathOrPull(t *testing.T) {
	_, err := NewBuildOptions(config.Image{Name: "app"})
	require.Error(t, err)
	assert.True(t, ikkierr.Is(err, ikkierr.CodeConfigInvalid))
}

func TestNewBuildOptionsMapsBuildArgs(t *testing.T) {
	img := config.Image{
		Name:       "app",
		SourcePath: "./app",
		BuildArgs:  []config.KeyValue{{Key: "VERSION", Value: "1.0"}},
	}

	opts, err := NewBuildOptions(img)
	require.NoError(t, err)
	assert.Equal(t, "app", opts.Tag)
	assert.Equal(t, "./app", opts.Path)
	assert.Equal(t, map[string]string{"VERSION": "1.0"}, opts.BuildArgs)
}

func TestBuildOptionsExplainPull(t *testing.T) {
	opts := BuildOptions{PullRef: "nginx:latest"}
	assert.Equal(t, "docker pull nginx:latest", opts.Explain(nil))
}

func TestBuildOptionsExplainBuildPreservesArgOrder(t *testing.T) {
	opts := BuildOptions{Path: "./app", Tag: "app"}
	args := []config.KeyValue{{Key: "A", Value: "1"}, {Key: "B", Value: "2"}}
	assert.Equal(t, "docker build --build-arg A=1 --build-arg B=2 --tag app ./app", opts.Explain(args))
}

func TestNewRunOptionsJoinsEnvAsKV(t *testing.T) {
	svc := config.Service{
		Env:   []config.KeyValue{{Key: "FOO", Value: "bar"}},
		Ports: []string{"8080:80"},
	}
	opts := NewRunOptions("app", "app:latest", svc)
	assert.Equal(t, []string{"FOO=bar"}, opts.Env)
	assert.Equal(t, []string{"8080:80"}, opts.Ports)
}

func TestRunOptionsExplain(t *testing.T) {
	opts := RunOptions{
		ContainerName: "app",
		ImageName:     "app:latest",
		Env:           []string{"FOO=bar"},
		Ports:         []string{"8080:80"},
	}
	assert.Equal(t, "docker run --name app --env FOO=bar --publish 8080:80 app:latest", opts.Explain())
}

func TestParsePortBindingHostAndContainer(t *testing.T) {
	port, binding := ParsePortBinding("8080:80")
	assert.Equal(t, nat.Port("80/tcp"), port)
	assert.Equal(t, nat.PortBinding{HostIP: "127.0.0.1", HostPort: "8080"}, binding)
}

func TestParsePortBindingContainerOnly(t *testing.T) {
	port, binding := ParsePortBinding("80")
	assert.Equal(t, nat.Port("80/tcp"), port)
	assert.Equal(t, nat.PortBinding{}, binding)
}

func TestParsePortBindingExplicitProto(t *testing.T) {
	port, binding := ParsePortBinding("5353:53/udp")
	assert.Equal(t, nat.Port("53/udp"), port)
	assert.Equal(t, nat.PortBinding{HostIP: "127.0.0.1", HostPort: "5353"}, binding)
}

func TestCreatePortsConfigAggregatesMultipleBindings(t *testing.T) {
	m := CreatePortsConfig([]string{"8080:80", "9090:80"})
	assert.Len(t, m[nat.Port("80/tcp")], 2)
}

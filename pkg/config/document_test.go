package config

import (
	"testing"

	"github.com/jlkiri/ikki/pkg/ikkierr"
	"github.com/jlkiri/ikki/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentNoDependencies(t *testing.T) {
	input := `
images {
    image "frontend" path="./frontend"
    image "backend" path="./backend"
    image "cli" path="./cli"
}
`
	cfg, err := ParseDocument("nodeps.kdl", input)
	require.NoError(t, err)
	assert.Equal(t, schedule.Order{{"frontend", "backend", "cli"}}, cfg.BuildOrder)
}

func TestParseDocumentDependencies(t *testing.T) {
	input := `
images {
    image "a" path="./a"
    image "b" path="./b"
    image "c" path="./c"
}

dependencies {
    a {
        b {
            c
        }
    }
}
`
	cfg, err := ParseDocument("deps.kdl", input)
	require.NoError(t, err)
	require.Len(t, cfg.BuildOrder, 3)
	assert.Equal(t, []string{"a"}, []string(cfg.BuildOrder[0]))
	assert.Equal(t, []string{"b"}, []string(cfg.BuildOrder[1]))
	assert.Equal(t, []string{"c"}, []string(cfg.BuildOrder[2]))
}

func TestParseDocumentMissingImages(t *testing.T) {
	_, err := ParseDocument("bad.kdl", `dependencies {}`)
	require.Error(t, err)
	assert.True(t, ikkierr.Is(err, ikkierr.CodeConfigInvalid))
}

func TestParseDocumentRequiresPathOrPull(t *testing.T) {
	_, err := ParseDocument("bad.kdl", `images { image "web" }`)
	require.Error(t, err)
	assert.True(t, ikkierr.Is(err, ikkierr.CodeConfigInvalid))
}

func TestParseDocumentPullWinsForRunTag(t *testing.T) {
	input := `
images {
    image "web" path="./web" pull="nginx:1" {
        service {
            ports "80:80"
        }
    }
}
`
	cfg, err := ParseDocument("web.kdl", input)
	require.NoError(t, err)
	require.Len(t, cfg.Images, 1)
	assert.Equal(t, "nginx:1", cfg.Images[0].RunTag())
}

func TestParseDocumentFullServiceBlock(t *testing.T) {
	input := `
images {
    image "app" path="." file="Dockerfile.dev" {
        build-arg "FOO" "bar"
        service {
            ports "3000:3000" "9229"
            env "NODE_ENV" "production"
            user "node"
            mount type="bind" src="./data" dest="/data"
            networks "backend" "frontend"
        }
        secret id="npmrc" src="./.npmrc"
    }
}
`
	cfg, err := ParseDocument("app.kdl", input)
	require.NoError(t, err)
	require.Len(t, cfg.Images, 1)

	img := cfg.Images[0]
	assert.Equal(t, "Dockerfile.dev", img.DockerfilePath)
	assert.Equal(t, []KeyValue{{Key: "FOO", Value: "bar"}}, img.BuildArgs)
	require.NotNil(t, img.Service)
	assert.Equal(t, []string{"3000:3000", "9229"}, img.Service.Ports)
	assert.Equal(t, []KeyValue{{Key: "NODE_ENV", Value: "production"}}, img.Service.Env)
	assert.Equal(t, "node", img.Service.User)
	require.Len(t, img.Service.Mounts, 1)
	assert.Equal(t, Mount{Type: "bind", Src: "./data", Dest: "/data"}, img.Service.Mounts[0])
	assert.Equal(t, []string{"backend", "frontend"}, img.Service.Networks)
	require.NotNil(t, img.Secret)
	assert.Equal(t, "npmrc", img.Secret.ID)
}

func TestParseDocumentDefaultsDockerfilePath(t *testing.T) {
	input := `images { image "a" path="." }`
	cfg, err := ParseDocument("a.kdl", input)
	require.NoError(t, err)
	assert.Equal(t, "Dockerfile", cfg.Images[0].DockerfilePath)
}

func TestFindImage(t *testing.T) {
	cfg := &Config{Images: []Image{{Name: "a"}, {Name: "b"}}}

	img, err := cfg.FindImage("b")
	require.NoError(t, err)
	assert.Equal(t, "b", img.Name)

	_, err = cfg.FindImage("ghost")
	require.Error(t, err)
	assert.True(t, ikkierr.Is(err, ikkierr.CodeNoSuchImage))
}

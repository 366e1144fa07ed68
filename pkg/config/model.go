// Package config holds the data model the orchestration core shares
// (Image, Service, precedence DAG, build order) together with the
// document parser and the CLI-facing AppConfig.
package config

import (
	"path/filepath"

	"github.com/jlkiri/ikki/pkg/ikkierr"
	"github.com/jlkiri/ikki/pkg/schedule"
)

// KeyValue is an ordered key/value pair. Declared as a struct rather
// than a map entry so build-arg and env declaration order survives
// into `explain` output.
type KeyValue struct {
	Key   string
	Value string
}

// Secret is the optional build secret block. It is parsed and carried
// on Image but is not wired into the build job: the Docker API version
// this engine wrapper targets predates buildx secret mounts.
type Secret struct {
	ID  string
	Src string
}

// Mount is one bind/volume mount declared on a Service.
type Mount struct {
	Type string
	Src  string
	Dest string
}

// Service promotes an Image from build-only to build-and-run.
type Service struct {
	Ports    []string
	Env      []KeyValue
	User     string
	Mounts   []Mount
	Networks []string
}

// Image is an immutable record once the document has been parsed.
// Invariant: SourcePath or PullRef is non-empty.
type Image struct {
	Name           string
	SourcePath     string
	DockerfilePath string
	PullRef        string
	BuildArgs      []KeyValue
	Service        *Service
	Secret         *Secret
}

// HasService reports whether this image also launches a container.
func (img Image) HasService() bool {
	return img.Service != nil
}

// RunTag returns the tag the engine should launch: PullRef when set,
// otherwise the image's own Name.
func (img Image) RunTag() string {
	if img.PullRef != "" {
		return img.PullRef
	}
	return img.Name
}

// Config is the fully parsed, immutable configuration document: the
// image set plus the precomputed build order, collapsed into one
// artifact since neither changes after parse.
type Config struct {
	Images     []Image
	BuildOrder schedule.Order
}

// FindImage returns the image with the given name.
func (c *Config) FindImage(name string) (Image, error) {
	for _, img := range c.Images {
		if img.Name == name {
			return img, nil
		}
	}
	return Image{}, ikkierr.NoSuchImage(name)
}

// ImageNames returns every configured image name in declaration
// order.
func (c *Config) ImageNames() []string {
	names := make([]string, len(c.Images))
	for i, img := range c.Images {
		names[i] = img.Name
	}
	return names
}

// SourceIndex builds a mapping from canonicalized absolute source path
// to image name, for every image that declares a SourcePath.
func (c *Config) SourceIndex() (map[string]string, error) {
	index := make(map[string]string)
	for _, img := range c.Images {
		if img.SourcePath == "" {
			continue
		}
		abs, err := filepath.Abs(img.SourcePath)
		if err != nil {
			return nil, ikkierr.ConfigInvalid("cannot resolve source path for image " + img.Name + ": " + err.Error())
		}
		real, err := filepath.EvalSymlinks(abs)
		if err != nil {
			// The path may not exist yet at parse time (e.g. a test
			// fixture); fall back to the absolute, non-resolved form
			// rather than failing configuration load.
			real = abs
		}
		index[real] = img.Name
	}
	return index, nil
}

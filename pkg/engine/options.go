package engine

import (
	"fmt"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/jlkiri/ikki/pkg/config"
	"github.com/jlkiri/ikki/pkg/ikkierr"
)

// BuildOptions is a pure record of everything a build or pull job
// needs from an Image, independent of the engine SDK's own option
// structs.
type BuildOptions struct {
	Path      string
	PullRef   string
	BuildArgs map[string]string
	Tag       string
}

// NewBuildOptions derives a BuildOptions from an Image. An image with
// neither SourcePath nor PullRef is a configuration error surfaced
// here rather than at job-run time.
func NewBuildOptions(img config.Image) (BuildOptions, error) {
	if img.PullRef == "" && img.SourcePath == "" {
		return BuildOptions{}, ikkierr.ConfigInvalid(fmt.Sprintf("image %q needs either `path` or `pull`", img.Name))
	}

	args := make(map[string]string, len(img.BuildArgs))
	for _, kv := range img.BuildArgs {
		args[kv.Key] = kv.Value
	}

	return BuildOptions{
		Path:      img.SourcePath,
		PullRef:   img.PullRef,
		BuildArgs: args,
		Tag:       img.Name,
	}, nil
}

// Explain renders the equivalent `docker build`/`docker pull` command
// line: a pull when PullRef is set (the job RunJob performs), otherwise
// a build. Build-arg order follows the image's declared BuildArgs order
// via orderedArgs, not map iteration.
func (o BuildOptions) Explain(orderedArgs []config.KeyValue) string {
	if o.PullRef != "" {
		return "docker pull " + o.PullRef
	}

	var b strings.Builder
	b.WriteString("docker build ")
	for _, kv := range orderedArgs {
		fmt.Fprintf(&b, "--build-arg %s=%s ", kv.Key, kv.Value)
	}
	fmt.Fprintf(&b, "--tag %s ", o.Tag)
	b.WriteString(o.Path)
	return b.String()
}

// RunOptions is a pure record derived from a container name, the
// image to run, and a Service block.
type RunOptions struct {
	ContainerName string
	ImageName     string
	Env           []string
	Ports         []string
}

// NewRunOptions derives a RunOptions from the container name, the tag
// to launch, and the Service block.
func NewRunOptions(containerName, imageName string, svc config.Service) RunOptions {
	env := make([]string, 0, len(svc.Env))
	for _, kv := range svc.Env {
		env = append(env, kv.Key+"="+kv.Value)
	}

	ports := append([]string(nil), svc.Ports...)

	return RunOptions{
		ContainerName: containerName,
		ImageName:     imageName,
		Env:           env,
		Ports:         ports,
	}
}

// Explain renders the equivalent `docker run` command line.
func (o RunOptions) Explain() string {
	var b strings.Builder
	b.WriteString("docker run")
	fmt.Fprintf(&b, " --name %s", o.ContainerName)
	for _, kv := range o.Env {
		fmt.Fprintf(&b, " --env %s", kv)
	}
	for _, p := range o.Ports {
		fmt.Fprintf(&b, " --publish %s", p)
	}
	fmt.Fprintf(&b, " %s", o.ImageName)
	return b.String()
}

// ParsePortBinding translates one declared port string into the
// protocol-qualified container port and the host-side binding:
//
//	"host:container[/proto]" -> host bind 127.0.0.1:host, container port container/proto
//	"container[/proto]"      -> host bind unbound (engine chooses), container port container/proto
func ParsePortBinding(spec string) (containerPort nat.Port, binding nat.PortBinding) {
	hostPort, containerAddr, hasHost := strings.Cut(spec, ":")
	if !hasHost {
		containerAddr = spec
		hostPort = ""
	}

	proto := "tcp"
	port := containerAddr
	if p, pr, ok := strings.Cut(containerAddr, "/"); ok {
		port = p
		proto = pr
	}

	containerPort = nat.Port(port + "/" + proto)

	if hostPort == "" {
		return containerPort, nat.PortBinding{}
	}

	return containerPort, nat.PortBinding{
		HostIP:   "127.0.0.1",
		HostPort: hostPort,
	}
}

// CreatePortsConfig maps every declared port string to its engine
// port-bindings entry (nat.PortMap, as consumed by
// container.HostConfig.PortBindings).
func CreatePortsConfig(ports []string) nat.PortMap {
	out := make(nat.PortMap, len(ports))
	for _, spec := range ports {
		containerPort, binding := ParsePortBinding(spec)
		out[containerPort] = append(out[containerPort], binding)
	}
	return out
}

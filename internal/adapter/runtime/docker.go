package runtime

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	dockerfilters "github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

// Docker implements domain.ContainerRuntime against the Docker Engine API.
type Docker struct {
	cli *client.Client
}

var _ domain.ContainerRuntime = (*Docker)(nil)

// New creates a Docker runtime with a client from the environment
// (DOCKER_HOST et al.), negotiating the API version with the daemon.
func New() (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Docker{cli: cli}, nil
}

// NewFromClient wraps an existing Docker client.
func NewFromClient(cli *client.Client) *Docker {
	return &Docker{cli: cli}
}

func (d *Docker) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRuntimeUnavailable, err)
	}
	return nil
}

func (d *Docker) FindByName(ctx context.Context, name string) (*domain.ServiceInstance, error) {
	filters := dockerfilters.NewArgs(dockerfilters.Arg("name", name))
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("%w: list containers: %v", domain.ErrRuntimeUnavailable, err)
	}

	// The name filter matches substrings; require an exact match.
	for _, c := range containers {
		for _, n := range c.Names {
			if strings.TrimPrefix(n, "/") != name {
				continue
			}
			info, err := d.cli.ContainerInspect(ctx, c.ID)
			if err != nil {
				if errdefs.IsNotFound(err) {
					return nil, nil
				}
				return nil, fmt.Errorf("inspect container %q: %w", name, err)
			}
			return d.toInstance(ctx, name, info), nil
		}
	}
	return nil, nil
}

func (d *Docker) toInstance(ctx context.Context, name string, info container.InspectResponse) *domain.ServiceInstance {
	inst := &domain.ServiceInstance{
		ContainerID: info.ID,
		Name:        name,
		Running:     info.State != nil && info.State.Running,
	}
	if info.Config != nil {
		inst.ImageRef = info.Config.Image
	}
	if digest, err := d.ImageDigest(ctx, inst.ImageRef); err == nil {
		inst.ImageDigest = digest
	} else {
		inst.ImageDigest = info.Image
	}
	for _, m := range info.Mounts {
		if m.Type == mount.TypeBind {
			inst.DataDir = m.Source
			break
		}
	}
	return inst
}

// Pull fetches the image, waits for the pull to complete, and returns the
// digest of the pulled image.
func (d *Docker) Pull(ctx context.Context, ref string) (string, error) {
	pull, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrPullFailed, ref, err)
	}
	_, _ = io.Copy(io.Discard, pull)
	_ = pull.Close()

	digest, err := d.ImageDigest(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: inspect pulled image %s: %v", domain.ErrPullFailed, ref, err)
	}
	return digest, nil
}

// ImageDigest returns the repo digest of a locally available image, falling
// back to the image ID when no repo digest is recorded.
func (d *Docker) ImageDigest(ctx context.Context, ref string) (string, error) {
	info, err := d.cli.ImageInspect(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("inspect image %q: %w", ref, err)
	}
	if len(info.RepoDigests) > 0 {
		return info.RepoDigests[0], nil
	}
	return info.ID, nil
}

func (d *Docker) Stop(ctx context.Context, containerID string, timeoutSeconds int) error {
	opts := container.StopOptions{}
	if timeoutSeconds > 0 {
		opts.Timeout = &timeoutSeconds
	}
	if err := d.cli.ContainerStop(ctx, containerID, opts); err != nil {
		return fmt.Errorf("stop container: %w", err)
	}
	return nil
}

func (d *Docker) Remove(ctx context.Context, containerID string) error {
	err := d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

func (d *Docker) Create(ctx context.Context, desired domain.DesiredConfig) (string, error) {
	cc := &container.Config{
		Image: desired.Ref(),
		Env:   envSlice(desired.Env),
	}

	hc := &container.HostConfig{
		RestartPolicy: parseRestartPolicy(desired.RestartPolicy),
	}

	if len(desired.Ports) > 0 {
		portBindings := make(nat.PortMap, len(desired.Ports))
		exposedPorts := make(nat.PortSet, len(desired.Ports))
		for _, p := range desired.Ports {
			proto := strings.ToLower(strings.TrimSpace(p.Protocol))
			if proto == "" {
				proto = "tcp"
			}
			containerPort := nat.Port(fmt.Sprintf("%d/%s", p.ContainerPort, proto))
			exposedPorts[containerPort] = struct{}{}
			portBindings[containerPort] = []nat.PortBinding{{HostPort: strconv.Itoa(p.HostPort)}}
		}
		cc.ExposedPorts = exposedPorts
		hc.PortBindings = portBindings
	}

	hc.Mounts = make([]mount.Mount, 0, len(desired.Volumes))
	for _, v := range desired.Volumes {
		hc.Mounts = append(hc.Mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	resp, err := d.cli.ContainerCreate(ctx, cc, hc, nil, nil, desired.Name)
	if err != nil {
		if strings.Contains(err.Error(), "port is already allocated") {
			return "", fmt.Errorf("%w: %v", domain.ErrPortConflict, err)
		}
		return "", fmt.Errorf("create container %q: %w", desired.Name, err)
	}
	return resp.ID, nil
}

func (d *Docker) Start(ctx context.Context, containerID string) error {
	if err := d.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		if strings.Contains(err.Error(), "port is already allocated") {
			return fmt.Errorf("%w: %v", domain.ErrPortConflict, err)
		}
		return fmt.Errorf("start container: %w", err)
	}
	return nil
}

// IsHealthy reports running-and-not-restarting; when the image defines a
// health check, the check must additionally report healthy.
func (d *Docker) IsHealthy(ctx context.Context, containerID string) (bool, error) {
	info, err := d.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return false, fmt.Errorf("inspect container: %w", err)
	}
	state := info.State
	if state == nil {
		return false, fmt.Errorf("container state is nil")
	}
	if !state.Running || state.Restarting {
		return false, nil
	}
	if state.Health != nil {
		return string(state.Health.Status) == "healthy", nil
	}
	return true, nil
}

func (d *Docker) Close() error {
	return d.cli.Close()
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func parseRestartPolicy(policy string) container.RestartPolicy {
	switch strings.TrimSpace(policy) {
	case "no", "":
		return container.RestartPolicy{Name: container.RestartPolicyDisabled}
	case "always":
		return container.RestartPolicy{Name: container.RestartPolicyAlways}
	case "on-failure":
		return container.RestartPolicy{Name: container.RestartPolicyOnFailure}
	case "unless-stopped":
		return container.RestartPolicy{Name: container.RestartPolicyUnlessStopped}
	default:
		return container.RestartPolicy{Name: container.RestartPolicyUnlessStopped}
	}
}

package domain

import "context"

// ContainerRuntime is the subset of container-engine operations the
// workflow needs. Implemented by the Docker adapter in production and by
// fakes in tests.
type ContainerRuntime interface {
	// Ping reports whether the engine is reachable.
	Ping(ctx context.Context) error

	// FindByName returns the instance whose container name matches exactly,
	// or nil when absent. Includes stopped containers.
	FindByName(ctx context.Context, name string) (*ServiceInstance, error)

	// Pull fetches the image and returns the content digest of what was
	// pulled.
	Pull(ctx context.Context, ref string) (string, error)

	// ImageDigest returns the repo digest of a locally present image.
	ImageDigest(ctx context.Context, ref string) (string, error)

	Stop(ctx context.Context, containerID string, timeoutSeconds int) error
	Remove(ctx context.Context, containerID string) error

	// Create materializes a container from the desired configuration and
	// returns its ID. The container is not started.
	Create(ctx context.Context, desired DesiredConfig) (string, error)

	Start(ctx context.Context, containerID string) error

	// IsHealthy reports whether the container is running and not
	// restarting (and, when a health check is defined, healthy).
	IsHealthy(ctx context.Context, containerID string) (bool, error)

	Close() error
}

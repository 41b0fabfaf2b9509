package domain

// ServiceInstance identifies a running deployment of a containerized service.
// It is re-derived from the container runtime's live state on every run and
// never persisted.
type ServiceInstance struct {
	ContainerID string
	Name        string
	ImageRef    string
	ImageDigest string
	DataDir     string
	Running     bool
}

// PortMapping binds a host port to a container port.
type PortMapping struct {
	HostPort      int    `mapstructure:"host" yaml:"host"`
	ContainerPort int    `mapstructure:"container" yaml:"container"`
	Protocol      string `mapstructure:"protocol" yaml:"protocol"`
}

// VolumeMount binds a host directory into the container.
type VolumeMount struct {
	Source   string `mapstructure:"source" yaml:"source"`
	Target   string `mapstructure:"target" yaml:"target"`
	ReadOnly bool   `mapstructure:"read_only" yaml:"read_only"`
}

// DesiredConfig is the declarative target state used to (re)create a
// ServiceInstance. It is derived from configuration each run; generated
// artifacts (compose file, .env) are safe to overwrite.
type DesiredConfig struct {
	Name          string
	Image         string
	Tag           string
	Ports         []PortMapping
	Volumes       []VolumeMount
	Env           map[string]string
	RestartPolicy string

	// Domain is the public hostname the service is reached under. It feeds
	// the service's host and webhook environment; TLS termination itself is
	// external.
	Domain string
}

// Ref returns the full image reference, e.g. "n8nio/n8n:latest".
func (d DesiredConfig) Ref() string {
	if d.Tag == "" {
		return d.Image
	}
	return d.Image + ":" + d.Tag
}

// DataDir returns the host path of the first volume mount, which by
// convention holds the service's persistent data.
func (d DesiredConfig) DataDir() string {
	if len(d.Volumes) == 0 {
		return ""
	}
	return d.Volumes[0].Source
}

// UpdateResult is the outcome of a single update attempt.
type UpdateResult int

const (
	UpdateFailed UpdateResult = iota
	UpdateAlreadyCurrent
	UpdateApplied
)

func (r UpdateResult) String() string {
	switch r {
	case UpdateAlreadyCurrent:
		return "already-current"
	case UpdateApplied:
		return "updated"
	default:
		return "failed"
	}
}

package usecase

import (
	"context"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

// Probe answers "is the service running, and what backs it" from the
// container runtime's live state. Read-only.
type Probe struct {
	runtime domain.ContainerRuntime
	service string
	logger  Logger
}

func NewProbe(rt domain.ContainerRuntime, service string, logger Logger) *Probe {
	return &Probe{
		runtime: rt,
		service: service,
		logger:  logger,
	}
}

// Detect returns the running instance, or nil when no running container
// matches the service name. A stopped leftover container is reported as
// absent; callers that recreate the service clean it up themselves. An
// unreachable runtime surfaces ErrRuntimeUnavailable.
func (uc *Probe) Detect(ctx context.Context) (*domain.ServiceInstance, error) {
	if err := uc.runtime.Ping(ctx); err != nil {
		return nil, err
	}

	instance, err := uc.runtime.FindByName(ctx, uc.service)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		uc.logger.Infof("[%s] No container found", uc.service)
		return nil, nil
	}
	if !instance.Running {
		uc.logger.Infof("[%s] Container %.12s exists but is not running", uc.service, instance.ContainerID)
		return nil, nil
	}

	uc.logger.Infof("[%s] Running: container %.12s, image %s (%s)",
		uc.service, instance.ContainerID, instance.ImageRef, instance.ImageDigest)
	return instance, nil
}

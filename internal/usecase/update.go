package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

// UpdateOptions tune the replace-and-verify sequence.
type UpdateOptions struct {
	StopTimeoutSeconds int
	VerifyRetries      int
	VerifyInterval     time.Duration

	// AllowBackupFailure lets the update proceed when the pre-update backup
	// fails. Off by default: replacing a container without a restore point
	// is how data gets lost.
	AllowBackupFailure bool
}

// Update replaces a running instance with a newer image: pull, digest
// compare, backup, recreate, verify. Verification failure triggers a full
// rollback to the previous image and data.
type Update struct {
	runtime domain.ContainerRuntime
	backup  *Backup
	archive domain.Archiver
	logger  Logger
	opts    UpdateOptions
}

func NewUpdate(rt domain.ContainerRuntime, backup *Backup, archive domain.Archiver, logger Logger, opts UpdateOptions) *Update {
	return &Update{
		runtime: rt,
		backup:  backup,
		archive: archive,
		logger:  logger,
		opts:    opts,
	}
}

// Execute brings instance up to date with desired. It returns
// UpdateAlreadyCurrent without touching the container when the pulled
// image's digest matches the running one.
func (uc *Update) Execute(ctx context.Context, instance *domain.ServiceInstance, desired domain.DesiredConfig) (domain.UpdateResult, error) {
	ref := desired.Ref()
	uc.logger.Infof("[%s] Checking for updates, pulling %s", desired.Name, ref)

	newDigest, err := uc.runtime.Pull(ctx, ref)
	if err != nil {
		return domain.UpdateFailed, err
	}

	if instance.ImageDigest != "" && instance.ImageDigest == newDigest {
		uc.logger.Infof("[%s] Already running %s (%s), nothing to do", desired.Name, ref, shortDigest(newDigest))
		return domain.UpdateAlreadyCurrent, nil
	}
	uc.logger.Infof("[%s] New image available: %s -> %s",
		desired.Name, shortDigest(instance.ImageDigest), shortDigest(newDigest))

	preUpdate, err := uc.backup.Execute(ctx, instance)
	if err != nil {
		if !uc.opts.AllowBackupFailure {
			return domain.UpdateFailed, err
		}
		uc.logger.Warnf("[%s] Pre-update backup failed, continuing without a restore point: %v", desired.Name, err)
		preUpdate = nil
	}

	uc.logger.Infof("[%s] Stopping container %.12s", desired.Name, instance.ContainerID)
	if err := uc.runtime.Stop(ctx, instance.ContainerID, uc.opts.StopTimeoutSeconds); err != nil {
		return domain.UpdateFailed, fmt.Errorf("stop old container: %w", err)
	}
	if err := uc.runtime.Remove(ctx, instance.ContainerID); err != nil {
		return domain.UpdateFailed, fmt.Errorf("remove old container: %w", err)
	}

	newID, err := uc.startNew(ctx, desired)
	if err != nil {
		return uc.rollback(ctx, instance, desired, preUpdate, newID, err)
	}

	uc.logger.Infof("[%s] Verifying container %.12s", desired.Name, newID)
	if err := waitHealthy(ctx, uc.runtime, newID, uc.opts.VerifyRetries, uc.opts.VerifyInterval); err != nil {
		return uc.rollback(ctx, instance, desired, preUpdate, newID, err)
	}

	uc.logger.Infof("[%s] Updated to %s (%s)", desired.Name, ref, shortDigest(newDigest))
	return domain.UpdateApplied, nil
}

func (uc *Update) startNew(ctx context.Context, desired domain.DesiredConfig) (string, error) {
	newID, err := uc.runtime.Create(ctx, desired)
	if err != nil {
		return "", fmt.Errorf("create new container: %w", err)
	}
	if err := uc.runtime.Start(ctx, newID); err != nil {
		return newID, fmt.Errorf("start new container: %w", err)
	}
	return newID, nil
}

// rollback restores the previous image and data after a failed cutover. The
// old container is recreated from its pinned digest so the rolled-back
// instance runs exactly the bits it ran before, not whatever the tag points
// at now. The original failure is always the returned error; rollback
// problems are logged on top of it.
func (uc *Update) rollback(ctx context.Context, old *domain.ServiceInstance, desired domain.DesiredConfig, preUpdate *domain.Backup, newID string, cause error) (domain.UpdateResult, error) {
	uc.logger.Errorf("[%s] Update failed, rolling back: %v", desired.Name, cause)

	if newID != "" {
		if err := uc.runtime.Stop(ctx, newID, uc.opts.StopTimeoutSeconds); err != nil {
			uc.logger.Warnf("[%s] Rollback: stop of failed container: %v", desired.Name, err)
		}
		if err := uc.runtime.Remove(ctx, newID); err != nil {
			uc.logger.Warnf("[%s] Rollback: remove of failed container: %v", desired.Name, err)
		}
	}

	if preUpdate != nil {
		uc.logger.Infof("[%s] Rollback: restoring data from %s", desired.Name, preUpdate.Filename)
		if err := restoreDataDir(uc.archive, preUpdate.FilePath, desired.DataDir()); err != nil {
			return domain.UpdateFailed, errors.Join(cause, fmt.Errorf("rollback: restore data: %w", err))
		}
	}

	previous := desired
	if old.ImageDigest != "" {
		previous.Image = old.ImageDigest
		previous.Tag = ""
	}

	oldID, err := uc.runtime.Create(ctx, previous)
	if err != nil {
		return domain.UpdateFailed, errors.Join(cause, fmt.Errorf("rollback: recreate old container: %w", err))
	}
	if err := uc.runtime.Start(ctx, oldID); err != nil {
		return domain.UpdateFailed, errors.Join(cause, fmt.Errorf("rollback: start old container: %w", err))
	}
	if err := waitHealthy(ctx, uc.runtime, oldID, uc.opts.VerifyRetries, uc.opts.VerifyInterval); err != nil {
		return domain.UpdateFailed, errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}

	uc.logger.Infof("[%s] Rollback complete, running %s again", desired.Name, shortDigest(old.ImageDigest))
	return domain.UpdateFailed, cause
}

func shortDigest(digest string) string {
	if len(digest) > 19 {
		return digest[:19]
	}
	if digest == "" {
		return "unknown"
	}
	return digest
}

package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

// Restore rebuilds the service on a fresh or recovered host. With backups
// present it restores the newest one; with none it provisions a clean
// instance.
type Restore struct {
	runtime      domain.ContainerRuntime
	archive      domain.Archiver
	db           domain.Database
	localStorage LocalStorage
	logger       Logger
	opts         UpdateOptions
}

func NewRestore(rt domain.ContainerRuntime, archive domain.Archiver, db domain.Database, localStorage LocalStorage, logger Logger, opts UpdateOptions) *Restore {
	return &Restore{
		runtime:      rt,
		archive:      archive,
		db:           db,
		localStorage: localStorage,
		logger:       logger,
		opts:         opts,
	}
}

// Execute materializes a running instance from desired. A leftover container
// with the same name is removed first. A corrupt volume archive aborts the
// restore without starting anything; the operator picks an older backup or
// initializes clean by moving the bad archive aside.
func (uc *Restore) Execute(ctx context.Context, desired domain.DesiredConfig) (*domain.ServiceInstance, error) {
	if err := uc.runtime.Ping(ctx); err != nil {
		return nil, err
	}

	newest, err := uc.localStorage.Newest(ctx, backupPrefix(desired.Name, domain.BackupVolume))
	if err != nil {
		return nil, fmt.Errorf("find newest backup: %w", err)
	}

	if err := uc.removeLeftover(ctx, desired.Name); err != nil {
		return nil, err
	}

	if newest == "" {
		uc.logger.Infof("[%s] No backups found, initializing a clean instance", desired.Name)
	} else {
		uc.logger.Infof("[%s] Restoring from %s", desired.Name, newest)
		if err := uc.restoreVolume(desired, newest); err != nil {
			return nil, err
		}
	}

	containerID, err := uc.runtime.Create(ctx, desired)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	if err := uc.runtime.Start(ctx, containerID); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}
	if err := waitHealthy(ctx, uc.runtime, containerID, uc.opts.VerifyRetries, uc.opts.VerifyInterval); err != nil {
		return nil, err
	}

	if newest != "" && uc.db != nil {
		if err := uc.restoreDatabase(ctx, desired.Name); err != nil {
			return nil, err
		}
	}

	instance, err := uc.runtime.FindByName(ctx, desired.Name)
	if err != nil {
		return nil, err
	}
	uc.logger.Infof("[%s] Instance up: container %.12s, image %s", desired.Name, instance.ContainerID, instance.ImageRef)
	return instance, nil
}

func (uc *Restore) removeLeftover(ctx context.Context, name string) error {
	leftover, err := uc.runtime.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if leftover == nil {
		return nil
	}

	uc.logger.Infof("[%s] Removing leftover container %.12s", name, leftover.ContainerID)
	if leftover.Running {
		if err := uc.runtime.Stop(ctx, leftover.ContainerID, uc.opts.StopTimeoutSeconds); err != nil {
			return fmt.Errorf("stop leftover container: %w", err)
		}
	}
	if err := uc.runtime.Remove(ctx, leftover.ContainerID); err != nil {
		return fmt.Errorf("remove leftover container: %w", err)
	}
	return nil
}

func (uc *Restore) restoreVolume(desired domain.DesiredConfig, filename string) error {
	dataDir := desired.DataDir()
	if dataDir == "" {
		return fmt.Errorf("no data volume configured for %s", desired.Name)
	}

	if err := restoreDataDir(uc.archive, uc.localStorage.GetPath(filename), dataDir); err != nil {
		if errors.Is(err, domain.ErrCorruptBackup) {
			uc.logger.Errorf("[%s] Backup %s is corrupt, aborting restore with existing data intact", desired.Name, filename)
		}
		return err
	}
	return nil
}

func (uc *Restore) restoreDatabase(ctx context.Context, service string) error {
	newest, err := uc.localStorage.Newest(ctx, backupPrefix(service, domain.BackupDatabase))
	if err != nil {
		return fmt.Errorf("find newest database dump: %w", err)
	}
	if newest == "" {
		uc.logger.Infof("[%s] No database dump found, skipping database restore", service)
		return nil
	}

	uc.logger.Infof("[%s] Restoring database from %s", service, newest)
	if err := uc.db.Restore(ctx, uc.localStorage.GetPath(newest)); err != nil {
		return fmt.Errorf("database restore: %w", err)
	}
	return nil
}

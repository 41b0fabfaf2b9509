package usecase

import (
	"context"
	"time"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

// Cleanup prunes backups older than the retention window from local storage
// and every upload target. Files exactly at the cutoff are retained.
type Cleanup struct {
	localStorage  LocalStorage
	uploadTargets []UploadTarget
	retentionDays int
	logger        Logger
	service       string
}

func NewCleanup(localStorage LocalStorage, uploadTargets []UploadTarget, retentionDays int, logger Logger, service string) *Cleanup {
	return &Cleanup{
		localStorage:  localStorage,
		uploadTargets: uploadTargets,
		retentionDays: retentionDays,
		logger:        logger,
		service:       service,
	}
}

func (uc *Cleanup) Execute(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -uc.retentionDays)
	uc.logger.Infof("[%s] Pruning backups older than %s (retention %d days)",
		uc.service, cutoff.Format("2006-01-02 15:04:05"), uc.retentionDays)

	uc.pruneStorage(ctx, "local", uc.localStorage, cutoff)
	for _, target := range uc.uploadTargets {
		uc.pruneStorage(ctx, target.Name, target.Storage, cutoff)
	}
	return nil
}

func (uc *Cleanup) pruneStorage(ctx context.Context, name string, storage domain.Storage, cutoff time.Time) {
	oldFiles, err := storage.GetOldFiles(ctx, cutoff)
	if err != nil {
		uc.logger.Warnf("[%s] %s: listing by age failed (%v), falling back to filename timestamps", uc.service, name, err)
		oldFiles = uc.oldFilesByName(ctx, storage, cutoff, name)
	}

	if len(oldFiles) == 0 {
		uc.logger.Infof("[%s] %s: nothing to prune", uc.service, name)
		return
	}

	deleted := 0
	for _, filename := range oldFiles {
		if err := storage.Delete(ctx, filename); err != nil {
			uc.logger.Errorf("[%s] %s: failed to delete %s: %v", uc.service, name, filename, err)
			continue
		}
		deleted++
	}
	uc.logger.Infof("[%s] %s: pruned %d of %d old backups", uc.service, name, deleted, len(oldFiles))
}

// oldFilesByName recovers creation times from the timestamp embedded in
// backup filenames, for storages that cannot report modification times.
func (uc *Cleanup) oldFilesByName(ctx context.Context, storage domain.Storage, cutoff time.Time, name string) []string {
	files, err := storage.List(ctx)
	if err != nil {
		uc.logger.Errorf("[%s] %s: list failed: %v", uc.service, name, err)
		return nil
	}

	var oldFiles []string
	for _, filename := range files {
		createdAt, err := extractTimestamp(filename)
		if err != nil {
			continue
		}
		if createdAt.Before(cutoff) {
			oldFiles = append(oldFiles, filename)
		}
	}
	return oldFiles
}

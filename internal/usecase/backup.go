package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

// Backup produces a timestamped, restorable snapshot of the service's
// persistent data: a tar.gz of the data directory, plus a logical dump when
// a database is configured. Archives land in local storage and are mirrored
// to the configured upload targets.
type Backup struct {
	archiver      domain.Archiver
	db            domain.Database
	localStorage  LocalStorage
	uploadTargets []UploadTarget
	logger        Logger
	service       string
}

type UploadTarget struct {
	Name    string
	Storage domain.Storage
}

type LocalStorage interface {
	domain.Storage
	GetPath(filename string) string
	Newest(ctx context.Context, prefix string) (string, error)
}

func NewBackup(
	archiver domain.Archiver,
	db domain.Database,
	localStorage LocalStorage,
	uploadTargets []UploadTarget,
	logger Logger,
	service string,
) *Backup {
	return &Backup{
		archiver:      archiver,
		db:            db,
		localStorage:  localStorage,
		uploadTargets: uploadTargets,
		logger:        logger,
		service:       service,
	}
}

// Execute snapshots the instance's data directory (and database, when
// configured) and returns the volume backup. Any failure wraps
// ErrBackupFailed so callers can decide whether to proceed with a
// destructive operation.
func (uc *Backup) Execute(ctx context.Context, instance *domain.ServiceInstance) (*domain.Backup, error) {
	start := time.Now()
	uc.logger.Infof("[%s] Starting backup...", uc.service)

	if instance == nil || instance.DataDir == "" {
		return nil, fmt.Errorf("%w: instance has no data directory", domain.ErrBackupFailed)
	}

	volumeBackup, err := uc.backupVolume(ctx, instance.DataDir, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackupFailed, err)
	}

	if uc.db != nil {
		if err := uc.backupDatabase(ctx, start); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrBackupFailed, err)
		}
	}

	uc.logger.Infof("[%s] Backup completed in %s: %s",
		uc.service, time.Since(start).Round(time.Second), volumeBackup.Filename)
	return volumeBackup, nil
}

func (uc *Backup) backupVolume(ctx context.Context, dataDir string, at time.Time) (*domain.Backup, error) {
	filename := backupFilename(uc.service, domain.BackupVolume, at)
	tempPath := filepath.Join(os.TempDir(), filename)

	uc.logger.Infof("[%s] Archiving data dir %s to %s", uc.service, dataDir, tempPath)
	if err := uc.archiver.Pack(dataDir, tempPath); err != nil {
		return nil, fmt.Errorf("archive data dir: %w", err)
	}
	defer os.Remove(tempPath)

	fileInfo, err := os.Stat(tempPath)
	if err != nil {
		return nil, fmt.Errorf("stat backup file: %w", err)
	}
	uc.logger.Infof("[%s] Archive created, size: %.2f MB",
		uc.service, float64(fileInfo.Size())/(1024*1024))

	if err := uc.store(ctx, tempPath, filename); err != nil {
		return nil, err
	}

	return &domain.Backup{
		Filename:  filename,
		FilePath:  uc.localStorage.GetPath(filename),
		Kind:      domain.BackupVolume,
		Service:   uc.service,
		Size:      fileInfo.Size(),
		CreatedAt: at,
	}, nil
}

func (uc *Backup) backupDatabase(ctx context.Context, at time.Time) error {
	if err := uc.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}

	filename := backupFilename(uc.service, domain.BackupDatabase, at)
	tempPath := filepath.Join(os.TempDir(), filename)

	uc.logger.Infof("[%s] Dumping database %s", uc.service, uc.db.GetName())
	if err := uc.db.Dump(ctx, tempPath); err != nil {
		return fmt.Errorf("database dump: %w", err)
	}
	defer os.Remove(tempPath)

	return uc.store(ctx, tempPath, filename)
}

func (uc *Backup) store(ctx context.Context, filePath, filename string) error {
	if err := uc.localStorage.Upload(ctx, filePath, filename); err != nil {
		return fmt.Errorf("local upload: %w", err)
	}
	uc.logger.Infof("[%s] Stored %s locally", uc.service, filename)

	if len(uc.uploadTargets) > 0 {
		uc.mirror(ctx, filePath, filename)
	}
	return nil
}

// mirror uploads to remote targets concurrently. Mirror failures are loud
// but non-fatal: the local archive is the restore source of record.
func (uc *Backup) mirror(ctx context.Context, filePath, filename string) {
	var wg sync.WaitGroup

	for _, target := range uc.uploadTargets {
		wg.Add(1)
		go func(t UploadTarget) {
			defer wg.Done()

			if err := t.Storage.Upload(ctx, filePath, filename); err != nil {
				uc.logger.Errorf("[%s] Failed to mirror %s to %s: %v", uc.service, filename, t.Name, err)
			} else {
				uc.logger.Infof("[%s] Mirrored %s to %s", uc.service, filename, t.Name)
			}
		}(target)
	}

	wg.Wait()
}

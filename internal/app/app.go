package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Comunsoft/n8ncisneros/internal/adapter/archive"
	"github.com/Comunsoft/n8ncisneros/internal/adapter/database"
	"github.com/Comunsoft/n8ncisneros/internal/adapter/runtime"
	"github.com/Comunsoft/n8ncisneros/internal/adapter/storage"
	"github.com/Comunsoft/n8ncisneros/internal/compose"
	"github.com/Comunsoft/n8ncisneros/internal/config"
	"github.com/Comunsoft/n8ncisneros/internal/domain"
	"github.com/Comunsoft/n8ncisneros/internal/infrastructure/logger"
	"github.com/Comunsoft/n8ncisneros/internal/infrastructure/scheduler"
	"github.com/Comunsoft/n8ncisneros/internal/usecase"
)

// Markers identifying the scheduled jobs. Registering twice under the same
// marker is a no-op, so repeated provisioning never duplicates schedules.
const (
	markerBackup = "n8nctl-backup"
	markerUpdate = "n8nctl-update"
	markerPrune  = "n8nctl-prune"
)

// Fallback prune schedule, daily at 03:00.
const defaultPruneSpec = "0 0 3 * * *"

type App struct {
	config        *config.Config
	logger        *logger.Logger
	runtime       domain.ContainerRuntime
	scheduler     *scheduler.Scheduler
	localStorage  *storage.LocalStorage
	uploadTargets []usecase.UploadTarget
	notifier      *storage.TelegramStorage

	probeUC   *usecase.Probe
	backupUC  *usecase.Backup
	updateUC  *usecase.Update
	restoreUC *usecase.Restore
	cleanupUC *usecase.Cleanup
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s (service: %s)", cfg.App.Name, cfg.Service.Name)

	rt, err := runtime.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize container runtime: %w", err)
	}

	localStorage, err := storage.NewLocal(cfg.Backup.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local storage: %w", err)
	}

	archiver := archive.NewTarGz()

	uploadTargets, notifier := initializeUploadTargets(ctx, cfg, log)

	var db domain.Database
	if cfg.Database != nil && cfg.Database.Enabled {
		db = database.NewPostgreSQL(cfg.Database)
		log.Infof("✓ Database dumps enabled for %s (%s)", cfg.Database.Database, cfg.Database.Type)
	}

	opts := usecase.UpdateOptions{
		StopTimeoutSeconds: cfg.Update.StopTimeoutSeconds,
		VerifyRetries:      cfg.Update.VerifyRetries,
		VerifyInterval:     time.Duration(cfg.Update.VerifyIntervalSecs) * time.Second,
		AllowBackupFailure: cfg.Update.AllowBackupFailure,
	}

	probeUC := usecase.NewProbe(rt, cfg.Service.Name, log)
	backupUC := usecase.NewBackup(archiver, db, localStorage, uploadTargets, log, cfg.Service.Name)
	updateUC := usecase.NewUpdate(rt, backupUC, archiver, log, opts)
	restoreUC := usecase.NewRestore(rt, archiver, db, localStorage, log, opts)
	cleanupUC := usecase.NewCleanup(localStorage, uploadTargets, cfg.Backup.RetentionDays, log, cfg.Service.Name)

	return &App{
		config:        cfg,
		logger:        log,
		runtime:       rt,
		scheduler:     scheduler.New(),
		localStorage:  localStorage,
		uploadTargets: uploadTargets,
		notifier:      notifier,
		probeUC:       probeUC,
		backupUC:      backupUC,
		updateUC:      updateUC,
		restoreUC:     restoreUC,
		cleanupUC:     cleanupUC,
	}, nil
}

func initializeUploadTargets(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]usecase.UploadTarget, *storage.TelegramStorage) {
	var targets []usecase.UploadTarget
	var notifier *storage.TelegramStorage

	for _, targetCfg := range cfg.GetEnabledUploadTargets() {
		var stor domain.Storage
		var err error

		switch targetCfg.Type {
		case "gdrive":
			stor, err = storage.NewGDrive(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Google Drive: %v", err)
				continue
			}
			log.Infof("✓ Google Drive upload enabled")

		case "s3":
			stor, err = storage.NewS3(&targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3: %v", err)
				continue
			}
			log.Infof("✓ AWS S3 upload enabled (bucket: %s)", targetCfg.Bucket)

		case "telegram":
			tg, err := storage.NewTelegram(&targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Telegram: %v", err)
				continue
			}
			notifier = tg
			stor = tg
			log.Infof("✓ Telegram notifications enabled")

		case "local":
			// Local storage is always enabled
			continue

		default:
			log.Warnf("Unknown upload target type: %s", targetCfg.Type)
			continue
		}

		targets = append(targets, usecase.UploadTarget{
			Name:    targetCfg.Type,
			Storage: stor,
		})
	}

	return targets, notifier
}

// Commands returns the accepted sub-commands.
func Commands() []string {
	return []string{"status", "backup", "update", "restore", "provision", "start", "stop", "clean", "prune", "daemon"}
}

// Execute dispatches one sub-command. Unknown commands are rejected with
// the accepted set.
func (a *App) Execute(ctx context.Context, command string) error {
	switch command {
	case "status":
		return a.status(ctx)
	case "backup":
		return a.backup(ctx)
	case "update":
		return a.update(ctx)
	case "restore", "provision":
		return a.restore(ctx)
	case "start":
		return a.start(ctx)
	case "stop":
		return a.stop(ctx)
	case "clean":
		return a.clean(ctx)
	case "prune":
		return a.cleanupUC.Execute(ctx)
	case "daemon":
		return a.daemon(ctx)
	default:
		return fmt.Errorf("unknown command %q, expected one of %v", command, Commands())
	}
}

func (a *App) status(ctx context.Context) error {
	instance, err := a.probeUC.Detect(ctx)
	if err != nil {
		return err
	}
	if instance == nil {
		a.logger.Infof("[%s] Status: not running", a.config.Service.Name)
		return nil
	}
	a.logger.Infof("[%s] Status: running (container %.12s, image %s)",
		a.config.Service.Name, instance.ContainerID, instance.ImageRef)
	return nil
}

func (a *App) backup(ctx context.Context) error {
	instance, err := a.probeUC.Detect(ctx)
	if err != nil {
		return err
	}
	if instance == nil {
		return fmt.Errorf("%w: nothing to back up", domain.ErrNoInstance)
	}

	backup, err := a.backupUC.Execute(ctx, instance)
	if err != nil {
		a.notify(fmt.Sprintf("❌ Backup failed for %s: %v", a.config.Service.Name, err))
		return err
	}
	a.logger.Infof("[%s] Backup stored at %s", a.config.Service.Name, backup.FilePath)
	return nil
}

func (a *App) update(ctx context.Context) error {
	instance, err := a.probeUC.Detect(ctx)
	if err != nil {
		return err
	}
	if instance == nil {
		return fmt.Errorf("%w: nothing to update, run restore or provision first", domain.ErrNoInstance)
	}

	if err := a.writeComposeFiles(); err != nil {
		return err
	}

	result, err := a.updateUC.Execute(ctx, instance, a.desired())
	switch result {
	case domain.UpdateApplied:
		a.notify(fmt.Sprintf("✅ %s updated to %s", a.config.Service.Name, a.desired().Ref()))
	case domain.UpdateFailed:
		a.notify(fmt.Sprintf("⚠️ Update of %s failed: %v", a.config.Service.Name, err))
	}
	return err
}

func (a *App) restore(ctx context.Context) error {
	if err := a.writeComposeFiles(); err != nil {
		return err
	}

	instance, err := a.restoreUC.Execute(ctx, a.desired())
	if err != nil {
		return err
	}
	a.logger.Infof("[%s] Ready: container %.12s", a.config.Service.Name, instance.ContainerID)
	return nil
}

// start brings the service up without touching its data: a stopped
// container is started in place, a missing one is provisioned.
func (a *App) start(ctx context.Context) error {
	if err := a.runtime.Ping(ctx); err != nil {
		return err
	}
	existing, err := a.runtime.FindByName(ctx, a.config.Service.Name)
	if err != nil {
		return err
	}
	if existing == nil {
		return a.restore(ctx)
	}
	if existing.Running {
		a.logger.Infof("[%s] Already running", a.config.Service.Name)
		return nil
	}
	if err := a.runtime.Start(ctx, existing.ContainerID); err != nil {
		return err
	}
	a.logger.Infof("[%s] Started container %.12s", a.config.Service.Name, existing.ContainerID)
	return nil
}

func (a *App) stop(ctx context.Context) error {
	instance, err := a.probeUC.Detect(ctx)
	if err != nil {
		return err
	}
	if instance == nil {
		a.logger.Infof("[%s] Not running", a.config.Service.Name)
		return nil
	}
	if err := a.runtime.Stop(ctx, instance.ContainerID, a.config.Update.StopTimeoutSeconds); err != nil {
		return err
	}
	a.logger.Infof("[%s] Stopped container %.12s", a.config.Service.Name, instance.ContainerID)
	return nil
}

// clean removes the container, running or not. Data directory and backups
// stay untouched; restore or provision brings the service back.
func (a *App) clean(ctx context.Context) error {
	if err := a.runtime.Ping(ctx); err != nil {
		return err
	}
	existing, err := a.runtime.FindByName(ctx, a.config.Service.Name)
	if err != nil {
		return err
	}
	if existing == nil {
		a.logger.Infof("[%s] Nothing to clean", a.config.Service.Name)
		return nil
	}
	if existing.Running {
		if err := a.runtime.Stop(ctx, existing.ContainerID, a.config.Update.StopTimeoutSeconds); err != nil {
			return err
		}
	}
	if err := a.runtime.Remove(ctx, existing.ContainerID); err != nil {
		return err
	}
	a.logger.Infof("[%s] Removed container %.12s", a.config.Service.Name, existing.ContainerID)
	return nil
}

// daemon registers the configured schedules and runs until the context is
// cancelled.
func (a *App) daemon(ctx context.Context) error {
	schedule := a.config.Schedule

	if schedule.BackupSpec != "" {
		if err := a.scheduler.Ensure(markerBackup, schedule.BackupSpec, func(jobCtx context.Context) error {
			a.logger.Infof("=== Triggered scheduled backup for %s ===", a.config.Service.Name)
			return a.backup(jobCtx)
		}); err != nil {
			return fmt.Errorf("failed to schedule backup: %w", err)
		}
		a.logger.Infof("✓ Scheduled backup: %s", schedule.BackupSpec)
	}

	if schedule.UpdateSpec != "" {
		if err := a.scheduler.Ensure(markerUpdate, schedule.UpdateSpec, func(jobCtx context.Context) error {
			a.logger.Infof("=== Triggered scheduled update for %s ===", a.config.Service.Name)
			return a.update(jobCtx)
		}); err != nil {
			return fmt.Errorf("failed to schedule update: %w", err)
		}
		a.logger.Infof("✓ Scheduled update: %s", schedule.UpdateSpec)
	}

	if err := a.scheduler.Ensure(markerPrune, defaultPruneSpec, a.cleanupUC.Execute); err != nil {
		return fmt.Errorf("failed to schedule prune: %w", err)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started with jobs: %v", a.scheduler.Markers())
	a.logger.Infof("Backup destinations: local + %d remote target(s)", len(a.uploadTargets))

	<-ctx.Done()
	return nil
}

// desired builds the target state, folding in operator-added keys from an
// existing .env so regeneration never drops them. Configured keys win.
func (a *App) desired() domain.DesiredConfig {
	d := a.config.Desired()

	envPath := a.envPath()
	if envPath == "" {
		return d
	}
	existing, err := compose.ReadDotEnv(envPath)
	if err != nil {
		return d
	}
	for key, value := range existing {
		if _, ok := d.Env[key]; !ok {
			d.Env[key] = value
		}
	}
	return d
}

func (a *App) envPath() string {
	if a.config.Service.EnvFile != "" {
		return a.config.Service.EnvFile
	}
	if a.config.Service.ComposeFile == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(a.config.Service.ComposeFile), ".env")
}

func (a *App) writeComposeFiles() error {
	composePath := a.config.Service.ComposeFile
	if composePath == "" {
		return nil
	}
	if err := compose.WriteFiles(a.desired(), composePath, a.envPath()); err != nil {
		return err
	}
	a.logger.Infof("[%s] Regenerated %s", a.config.Service.Name, composePath)
	return nil
}

func (a *App) notify(message string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.SendNotification(message); err != nil {
		a.logger.Warnf("Failed to send notification: %v", err)
	}
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down...")
	a.scheduler.Stop()
	if err := a.runtime.Close(); err != nil {
		a.logger.Warnf("Failed to close runtime client: %v", err)
	}
	a.logger.Close()
}

package domain

import (
	"context"
	"time"
)

// BackupKind distinguishes volume archives from database dumps.
type BackupKind string

const (
	BackupVolume   BackupKind = "volume"
	BackupDatabase BackupKind = "database"
)

// Backup is an immutable, timestamped snapshot of a service's persistent
// data. It is never mutated after creation; only age-based pruning removes it.
type Backup struct {
	Filename  string
	FilePath  string
	Kind      BackupKind
	Service   string
	Size      int64
	CreatedAt time.Time
}

// ScheduledJob ties a cron expression to a unit of work, registered under a
// unique marker so repeated provisioning runs never produce duplicates.
type ScheduledJob struct {
	Marker   string
	Schedule string
	Job      JobExecutor
}

type JobExecutor interface {
	Execute(ctx context.Context) error
}

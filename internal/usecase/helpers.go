package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

// Logger is the minimal logging surface the usecases need.
type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

const timestampLayout = "20060102_150405"

// backupFilename builds "<service>_<kind>_<timestamp><ext>".
func backupFilename(service string, kind domain.BackupKind, at time.Time) string {
	ext := map[domain.BackupKind]string{
		domain.BackupVolume:   ".tar.gz",
		domain.BackupDatabase: ".dump",
	}[kind]
	if ext == "" {
		ext = ".backup"
	}
	return fmt.Sprintf("%s_%s_%s%s", service, kind, at.Format(timestampLayout), ext)
}

// backupPrefix is the filename prefix shared by all backups of one kind.
func backupPrefix(service string, kind domain.BackupKind) string {
	return fmt.Sprintf("%s_%s_", service, kind)
}

var timestampPattern = regexp.MustCompile(`(\d{8})_(\d{6})`)

// extractTimestamp recovers the creation time embedded in a backup
// filename.
func extractTimestamp(filename string) (time.Time, error) {
	matches := timestampPattern.FindStringSubmatch(filename)
	if len(matches) < 3 {
		return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found")
	}
	return time.Parse(timestampLayout, matches[1]+"_"+matches[2])
}

// waitHealthy polls the container until it reports healthy, up to retries
// attempts spaced by interval. Exhausting the retries yields
// ErrVerificationTimeout.
func waitHealthy(ctx context.Context, rt domain.ContainerRuntime, containerID string, retries int, interval time.Duration) error {
	for attempt := 0; attempt < retries; attempt++ {
		healthy, err := rt.IsHealthy(ctx, containerID)
		if err == nil && healthy {
			return nil
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: container %s not healthy after %d attempts", domain.ErrVerificationTimeout, containerID, retries)
}

// restoreDataDir extracts archivePath into dataDir, replacing the current
// contents only after the whole archive proved extractable. A corrupt
// archive leaves the existing data untouched.
func restoreDataDir(arch domain.Archiver, archivePath, dataDir string) error {
	parent := filepath.Dir(dataDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("create data parent dir: %w", err)
	}

	// Staging lives next to dataDir so the final moves stay on one filesystem.
	staging, err := os.MkdirTemp(parent, ".restore-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := arch.Unpack(archivePath, staging); err != nil {
		return err
	}

	if err := clearDir(dataDir); err != nil {
		return err
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		return fmt.Errorf("read staging dir: %w", err)
	}
	for _, entry := range entries {
		if err := os.Rename(filepath.Join(staging, entry.Name()), filepath.Join(dataDir, entry.Name())); err != nil {
			return fmt.Errorf("move restored data: %w", err)
		}
	}
	return nil
}

// clearDir removes the contents of dir but keeps dir itself, so a bind
// mount target stays valid while its data is replaced.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0755)
		}
		return fmt.Errorf("read data dir: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("clear data dir: %w", err)
		}
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Comunsoft/n8ncisneros/internal/config"
)

// GDriveStorage mirrors backup archives into a single Google Drive folder.
// Access goes through a service-account credentials file; there is no
// interactive consent flow, so it works on a headless host.
type GDriveStorage struct {
	service  *drive.Service
	folderID string
}

func NewGDrive(ctx context.Context, cfg *config.UploadTarget) (*GDriveStorage, error) {
	service, err := drive.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &GDriveStorage{
		service:  service,
		folderID: cfg.FolderID,
	}, nil
}

func (g *GDriveStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	meta := &drive.File{
		Name:    remoteName,
		Parents: []string{g.folderID},
	}
	if _, err := g.service.Files.Create(meta).Media(file).Context(ctx).Do(); err != nil {
		return fmt.Errorf("upload %s to drive: %w", remoteName, err)
	}
	return nil
}

func (g *GDriveStorage) List(ctx context.Context) ([]string, error) {
	files, err := g.query(ctx, g.inFolder("trashed=false"))
	if err != nil {
		return nil, fmt.Errorf("list drive folder: %w", err)
	}
	return names(files), nil
}

func (g *GDriveStorage) Delete(ctx context.Context, remoteName string) error {
	files, err := g.query(ctx, g.inFolder(fmt.Sprintf("name='%s' and trashed=false", remoteName)))
	if err != nil {
		return fmt.Errorf("find %s in drive: %w", remoteName, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("file not found in drive: %s", remoteName)
	}

	if err := g.service.Files.Delete(files[0].Id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %s from drive: %w", remoteName, err)
	}
	return nil
}

// GetOldFiles returns files created strictly before the cutoff, matching the
// pruning semantics of the other storage backends.
func (g *GDriveStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	condition := fmt.Sprintf("trashed=false and createdTime < '%s'", cutoffTime.Format(time.RFC3339))
	files, err := g.query(ctx, g.inFolder(condition))
	if err != nil {
		return nil, fmt.Errorf("list old drive files: %w", err)
	}
	return names(files), nil
}

func (g *GDriveStorage) inFolder(condition string) string {
	return fmt.Sprintf("'%s' in parents and %s", g.folderID, condition)
}

func (g *GDriveStorage) query(ctx context.Context, q string) ([]*drive.File, error) {
	list, err := g.service.Files.List().
		Q(q).
		Fields(googleapi.Field("files(id, name, createdTime)")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return list.Files, nil
}

func names(files []*drive.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Comunsoft/n8ncisneros/internal/adapter/archive"
	"github.com/Comunsoft/n8ncisneros/internal/adapter/storage"
	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

func newBackupFixture(t *testing.T) (*Backup, *domain.ServiceInstance, string, *fakeStore) {
	t.Helper()

	dataDir := filepath.Join(t.TempDir(), "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "workflow.json"), []byte(`{"id":1}`), 0644); err != nil {
		t.Fatal(err)
	}

	localDir := t.TempDir()
	local, err := storage.NewLocal(localDir)
	if err != nil {
		t.Fatal(err)
	}

	remote := newFakeStore()
	uc := NewBackup(
		archive.NewTarGz(),
		nil,
		local,
		[]UploadTarget{{Name: "fake", Storage: remote}},
		testLogger{},
		"n8n",
	)

	instance := &domain.ServiceInstance{
		ContainerID: "abc123",
		Name:        "n8n",
		DataDir:     dataDir,
		Running:     true,
	}
	return uc, instance, localDir, remote
}

func TestBackupExecute(t *testing.T) {
	Convey("Given a backup use case", t, func() {
		ctx := context.Background()

		Convey("When backing up a healthy instance", func() {
			uc, instance, localDir, remote := newBackupFixture(t)

			backup, err := uc.Execute(ctx, instance)

			Convey("It should produce a stored volume archive", func() {
				So(err, ShouldBeNil)
				So(backup, ShouldNotBeNil)
				So(backup.Kind, ShouldEqual, domain.BackupVolume)
				So(backup.Service, ShouldEqual, "n8n")
				So(strings.HasPrefix(backup.Filename, "n8n_volume_"), ShouldBeTrue)
				So(backup.Size, ShouldBeGreaterThan, 0)

				info, statErr := os.Stat(filepath.Join(localDir, backup.Filename))
				So(statErr, ShouldBeNil)
				So(info.Size(), ShouldEqual, backup.Size)
			})

			Convey("It should mirror the archive to the upload target", func() {
				So(err, ShouldBeNil)
				So(remote.uploaded, ShouldResemble, []string{backup.Filename})
			})
		})

		Convey("When the instance is nil", func() {
			uc, _, _, _ := newBackupFixture(t)

			_, err := uc.Execute(ctx, nil)

			Convey("It should fail with ErrBackupFailed", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, domain.ErrBackupFailed), ShouldBeTrue)
			})
		})

		Convey("When the data directory is gone", func() {
			uc, instance, _, _ := newBackupFixture(t)
			instance.DataDir = filepath.Join(os.TempDir(), "definitely-not-there")

			_, err := uc.Execute(ctx, instance)

			Convey("It should fail with ErrBackupFailed", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, domain.ErrBackupFailed), ShouldBeTrue)
			})
		})

		Convey("When a mirror target fails", func() {
			uc, instance, localDir, remote := newBackupFixture(t)
			remote.uploadErr = fmt.Errorf("bucket unreachable")

			backup, err := uc.Execute(ctx, instance)

			Convey("The backup still succeeds locally", func() {
				So(err, ShouldBeNil)
				_, statErr := os.Stat(filepath.Join(localDir, backup.Filename))
				So(statErr, ShouldBeNil)
			})
		})
	})
}

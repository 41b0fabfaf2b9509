package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Comunsoft/n8ncisneros/internal/adapter/archive"
	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

func TestBackupFilename(t *testing.T) {
	Convey("backupFilename", t, func() {
		at := time.Date(2024, 3, 15, 14, 30, 45, 0, time.UTC)

		Convey("Volume backups get a tar.gz extension", func() {
			So(backupFilename("n8n", domain.BackupVolume, at), ShouldEqual, "n8n_volume_20240315_143045.tar.gz")
		})

		Convey("Database backups get a dump extension", func() {
			So(backupFilename("n8n", domain.BackupDatabase, at), ShouldEqual, "n8n_database_20240315_143045.dump")
		})

		Convey("backupPrefix matches the generated filenames", func() {
			So(backupFilename("n8n", domain.BackupVolume, at), ShouldStartWith, backupPrefix("n8n", domain.BackupVolume))
		})
	})
}

func TestExtractTimestamp(t *testing.T) {
	Convey("extractTimestamp", t, func() {
		Convey("With a well-formed filename", func() {
			ts, err := extractTimestamp("n8n_volume_20240315_143045.tar.gz")
			So(err, ShouldBeNil)
			So(ts.Equal(time.Date(2024, 3, 15, 14, 30, 45, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("With no timestamp", func() {
			_, err := extractTimestamp("random_file.tar.gz")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestWaitHealthy(t *testing.T) {
	Convey("waitHealthy", t, func() {
		ctx := context.Background()

		Convey("When the container is healthy immediately", func() {
			rt := &fakeRuntime{}
			err := waitHealthy(ctx, rt, "c1", 3, time.Millisecond)
			So(err, ShouldBeNil)
		})

		Convey("When the container never becomes healthy", func() {
			rt := &fakeRuntime{unhealthy: map[string]bool{"c1": true}}
			err := waitHealthy(ctx, rt, "c1", 3, time.Millisecond)

			So(err, ShouldNotBeNil)
			So(errors.Is(err, domain.ErrVerificationTimeout), ShouldBeTrue)
		})

		Convey("When the context is cancelled while polling", func() {
			rt := &fakeRuntime{unhealthy: map[string]bool{"c1": true}}
			cancelCtx, cancel := context.WithCancel(ctx)
			cancel()

			err := waitHealthy(cancelCtx, rt, "c1", 3, time.Minute)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestRestoreDataDir(t *testing.T) {
	Convey("restoreDataDir", t, func() {
		arch := archive.NewTarGz()
		base := t.TempDir()
		dataDir := filepath.Join(base, "data")

		So(os.MkdirAll(dataDir, 0755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dataDir, "live.json"), []byte("live"), 0644), ShouldBeNil)

		Convey("With a valid archive", func() {
			stage := t.TempDir()
			So(os.WriteFile(filepath.Join(stage, "restored.json"), []byte("restored"), 0644), ShouldBeNil)
			archivePath := filepath.Join(base, "backup.tar.gz")
			So(arch.Pack(stage, archivePath), ShouldBeNil)

			err := restoreDataDir(arch, archivePath, dataDir)
			So(err, ShouldBeNil)

			Convey("It should swap in the archive contents", func() {
				content, readErr := os.ReadFile(filepath.Join(dataDir, "restored.json"))
				So(readErr, ShouldBeNil)
				So(string(content), ShouldEqual, "restored")

				_, liveErr := os.Stat(filepath.Join(dataDir, "live.json"))
				So(os.IsNotExist(liveErr), ShouldBeTrue)
			})

			Convey("It should leave no staging directory behind", func() {
				entries, readErr := os.ReadDir(base)
				So(readErr, ShouldBeNil)
				names := make([]string, 0, len(entries))
				for _, e := range entries {
					names = append(names, e.Name())
				}
				So(names, ShouldResemble, []string{"backup.tar.gz", "data"})
			})
		})

		Convey("With a corrupt archive", func() {
			archivePath := filepath.Join(base, "corrupt.tar.gz")
			So(os.WriteFile(archivePath, []byte("garbage"), 0644), ShouldBeNil)

			err := restoreDataDir(arch, archivePath, dataDir)

			Convey("It should fail and keep the existing data", func() {
				So(errors.Is(err, domain.ErrCorruptBackup), ShouldBeTrue)

				content, readErr := os.ReadFile(filepath.Join(dataDir, "live.json"))
				So(readErr, ShouldBeNil)
				So(string(content), ShouldEqual, "live")
			})
		})
	})
}

func TestClearDir(t *testing.T) {
	Convey("clearDir", t, func() {
		tempDir, err := os.MkdirTemp("", "cleardir_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		Convey("With existing content", func() {
			So(os.WriteFile(filepath.Join(tempDir, "a.txt"), []byte("a"), 0644), ShouldBeNil)
			So(os.MkdirAll(filepath.Join(tempDir, "sub", "deep"), 0755), ShouldBeNil)

			err := clearDir(tempDir)
			So(err, ShouldBeNil)

			Convey("The directory survives but is empty", func() {
				entries, err := os.ReadDir(tempDir)
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 0)
			})
		})

		Convey("With a missing directory", func() {
			missing := filepath.Join(tempDir, "not", "there")
			err := clearDir(missing)
			So(err, ShouldBeNil)

			info, statErr := os.Stat(missing)
			So(statErr, ShouldBeNil)
			So(info.IsDir(), ShouldBeTrue)
		})
	})
}

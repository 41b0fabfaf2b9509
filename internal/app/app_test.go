package app

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Comunsoft/n8ncisneros/internal/compose"
	"github.com/Comunsoft/n8ncisneros/internal/config"
	"github.com/Comunsoft/n8ncisneros/internal/domain"
	"github.com/Comunsoft/n8ncisneros/internal/infrastructure/logger"
)

func newAppFixture(t *testing.T) (*App, string) {
	t.Helper()

	dir := t.TempDir()
	log, err := logger.New("info", "")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Service: config.ServiceConfig{
			Name:        "n8n",
			Image:       "n8nio/n8n",
			Tag:         "latest",
			Volumes:     []domain.VolumeMount{{Source: filepath.Join(dir, "data"), Target: "/home/node/.n8n"}},
			Env:         map[string]string{"GENERIC_TIMEZONE": "America/Mexico_City"},
			ComposeFile: filepath.Join(dir, "docker-compose.yml"),
		},
	}
	return &App{config: cfg, logger: log}, dir
}

func TestDesired(t *testing.T) {
	Convey("Given an app with generated artifacts", t, func() {
		a, dir := newAppFixture(t)
		envPath := filepath.Join(dir, ".env")

		Convey("With no .env on disk", func() {
			d := a.desired()

			Convey("It should mirror the configuration", func() {
				So(d.Env, ShouldResemble, map[string]string{"GENERIC_TIMEZONE": "America/Mexico_City"})
			})
		})

		Convey("With operator-added keys in the existing .env", func() {
			content := "GENERIC_TIMEZONE=overridden\nN8N_ENCRYPTION_KEY=operator-secret\n"
			So(os.WriteFile(envPath, []byte(content), 0600), ShouldBeNil)

			d := a.desired()

			Convey("It should keep operator keys and prefer configured values", func() {
				So(d.Env["N8N_ENCRYPTION_KEY"], ShouldEqual, "operator-secret")
				So(d.Env["GENERIC_TIMEZONE"], ShouldEqual, "America/Mexico_City")
			})
		})
	})
}

func TestWriteComposeFiles(t *testing.T) {
	Convey("Given an app with generated artifacts", t, func() {
		a, dir := newAppFixture(t)
		envPath := filepath.Join(dir, ".env")

		Convey("When regenerating over an operator-edited .env", func() {
			So(os.WriteFile(envPath, []byte("N8N_ENCRYPTION_KEY=operator-secret\n"), 0600), ShouldBeNil)

			err := a.writeComposeFiles()
			So(err, ShouldBeNil)

			Convey("The regenerated .env should carry both key sets", func() {
				env, readErr := compose.ReadDotEnv(envPath)
				So(readErr, ShouldBeNil)
				So(env, ShouldResemble, map[string]string{
					"GENERIC_TIMEZONE":   "America/Mexico_City",
					"N8N_ENCRYPTION_KEY": "operator-secret",
				})
			})

			Convey("The compose file should exist", func() {
				_, statErr := os.Stat(a.config.Service.ComposeFile)
				So(statErr, ShouldBeNil)
			})
		})

		Convey("When no compose path is configured", func() {
			a.config.Service.ComposeFile = ""

			So(a.writeComposeFiles(), ShouldBeNil)
		})
	})
}

package compose

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

func testDesired() domain.DesiredConfig {
	return domain.DesiredConfig{
		Name:  "n8n",
		Image: "n8nio/n8n",
		Tag:   "latest",
		Ports: []domain.PortMapping{
			{HostPort: 5678, ContainerPort: 5678},
		},
		Volumes: []domain.VolumeMount{
			{Source: "/opt/n8n/data", Target: "/home/node/.n8n"},
		},
		Env: map[string]string{
			"GENERIC_TIMEZONE": "America/Mexico_City",
			"DB_TYPE":          "postgresdb",
		},
		RestartPolicy: "unless-stopped",
	}
}

func TestRender(t *testing.T) {
	Convey("Given a desired configuration", t, func() {
		desired := testDesired()

		Convey("Render", func() {
			out, err := Render(desired)
			So(err, ShouldBeNil)

			var doc struct {
				Services map[string]struct {
					Image         string   `yaml:"image"`
					ContainerName string   `yaml:"container_name"`
					Restart       string   `yaml:"restart"`
					Ports         []string `yaml:"ports"`
					Volumes       []string `yaml:"volumes"`
					EnvFile       []string `yaml:"env_file"`
				} `yaml:"services"`
			}
			So(yaml.Unmarshal(out, &doc), ShouldBeNil)

			Convey("It should declare the single service", func() {
				service, ok := doc.Services["n8n"]
				So(ok, ShouldBeTrue)
				So(service.Image, ShouldEqual, "n8nio/n8n:latest")
				So(service.ContainerName, ShouldEqual, "n8n")
				So(service.Restart, ShouldEqual, "unless-stopped")
				So(service.Ports, ShouldResemble, []string{"5678:5678"})
				So(service.Volumes, ShouldResemble, []string{"/opt/n8n/data:/home/node/.n8n"})
				So(service.EnvFile, ShouldResemble, []string{".env"})
			})
		})

		Convey("Render with a udp port and a read-only volume", func() {
			desired.Ports = []domain.PortMapping{{HostPort: 514, ContainerPort: 514, Protocol: "udp"}}
			desired.Volumes = append(desired.Volumes, domain.VolumeMount{Source: "/etc/certs", Target: "/certs", ReadOnly: true})

			out, err := Render(desired)
			So(err, ShouldBeNil)

			Convey("It should annotate protocol and ro flag", func() {
				So(string(out), ShouldContainSubstring, "514:514/udp")
				So(string(out), ShouldContainSubstring, "/etc/certs:/certs:ro")
			})
		})

		Convey("Render without env", func() {
			desired.Env = nil

			out, err := Render(desired)
			So(err, ShouldBeNil)

			Convey("It should omit env_file", func() {
				So(string(out), ShouldNotContainSubstring, "env_file")
			})
		})
	})
}

func TestRenderDotEnv(t *testing.T) {
	Convey("RenderDotEnv", t, func() {
		out := RenderDotEnv(map[string]string{
			"ZETA":  "last",
			"ALPHA": "first",
		})

		Convey("It should emit keys sorted", func() {
			So(string(out), ShouldEqual, "ALPHA=first\nZETA=last\n")
		})
	})
}

func TestWriteAndReadFiles(t *testing.T) {
	Convey("Given a temp directory", t, func() {
		tempDir, err := os.MkdirTemp("", "compose_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		composePath := filepath.Join(tempDir, "docker-compose.yml")
		envPath := filepath.Join(tempDir, ".env")

		Convey("WriteFiles", func() {
			err := WriteFiles(testDesired(), composePath, envPath)
			So(err, ShouldBeNil)

			Convey("Both artifacts should exist", func() {
				_, err := os.Stat(composePath)
				So(err, ShouldBeNil)
				_, err = os.Stat(envPath)
				So(err, ShouldBeNil)
			})

			Convey("ReadDotEnv should round-trip the environment", func() {
				env, err := ReadDotEnv(envPath)
				So(err, ShouldBeNil)
				So(env, ShouldResemble, map[string]string{
					"GENERIC_TIMEZONE": "America/Mexico_City",
					"DB_TYPE":          "postgresdb",
				})
			})
		})

		Convey("ReadDotEnv with comments and blanks", func() {
			content := "# comment\n\nKEY=value\n  SPACED = padded \nBROKEN LINE\n"
			So(os.WriteFile(envPath, []byte(content), 0600), ShouldBeNil)

			env, err := ReadDotEnv(envPath)

			Convey("It should skip noise and trim whitespace", func() {
				So(err, ShouldBeNil)
				So(env, ShouldResemble, map[string]string{
					"KEY":    "value",
					"SPACED": "padded",
				})
			})
		})

		Convey("ReadDotEnv on a missing file", func() {
			_, err := ReadDotEnv(filepath.Join(tempDir, "nope.env"))
			So(err, ShouldNotBeNil)
		})
	})
}

// Package compose renders the declarative target state into a Docker
// Compose file and a companion .env file. Both are derived artifacts:
// they are regenerated on every run and safe to overwrite.
package compose

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

// Render produces the compose document for a single service.
func Render(desired domain.DesiredConfig) ([]byte, error) {
	service := map[string]any{
		"image":          desired.Ref(),
		"container_name": desired.Name,
		"restart":        desired.RestartPolicy,
	}

	if len(desired.Ports) > 0 {
		ports := make([]string, 0, len(desired.Ports))
		for _, p := range desired.Ports {
			spec := fmt.Sprintf("%d:%d", p.HostPort, p.ContainerPort)
			if proto := strings.ToLower(strings.TrimSpace(p.Protocol)); proto != "" && proto != "tcp" {
				spec += "/" + proto
			}
			ports = append(ports, spec)
		}
		service["ports"] = ports
	}

	if len(desired.Volumes) > 0 {
		volumes := make([]string, 0, len(desired.Volumes))
		for _, v := range desired.Volumes {
			spec := v.Source + ":" + v.Target
			if v.ReadOnly {
				spec += ":ro"
			}
			volumes = append(volumes, spec)
		}
		service["volumes"] = volumes
	}

	if len(desired.Env) > 0 {
		service["env_file"] = []string{".env"}
	}

	doc := map[string]any{
		"services": map[string]any{
			desired.Name: service,
		},
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal compose: %w", err)
	}
	return out, nil
}

// RenderDotEnv produces the .env content with keys sorted for stable
// diffs across runs.
func RenderDotEnv(env map[string]string) []byte {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(env[k])
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// WriteFiles regenerates the compose file and .env at the given paths.
func WriteFiles(desired domain.DesiredConfig, composePath, envPath string) error {
	rendered, err := Render(desired)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(composePath), 0750); err != nil {
		return fmt.Errorf("create compose dir: %w", err)
	}
	if err := os.WriteFile(composePath, rendered, 0640); err != nil {
		return fmt.Errorf("write compose file: %w", err)
	}

	if len(desired.Env) > 0 {
		if err := os.MkdirAll(filepath.Dir(envPath), 0750); err != nil {
			return fmt.Errorf("create env dir: %w", err)
		}
		if err := os.WriteFile(envPath, RenderDotEnv(desired.Env), 0600); err != nil {
			return fmt.Errorf("write env file: %w", err)
		}
	}
	return nil
}

// ReadDotEnv parses a KEY=VALUE file, skipping blanks and # comments.
func ReadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer file.Close()

	env := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		env[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return env, nil
}

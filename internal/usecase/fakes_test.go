package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

type testLogger struct{}

func (testLogger) Infof(template string, args ...interface{})  {}
func (testLogger) Errorf(template string, args ...interface{}) {}
func (testLogger) Warnf(template string, args ...interface{})  {}

// fakeRuntime is an in-memory ContainerRuntime tracking every call.
type fakeRuntime struct {
	pingErr    error
	pullDigest string
	pullErr    error
	createErr  error
	startErr   error

	existing    *domain.ServiceInstance
	lastCreated *domain.ServiceInstance

	// Container IDs that never become healthy.
	unhealthy map[string]bool

	nextID  int
	created []domain.DesiredConfig
	started []string
	stopped []string
	removed []string
}

var _ domain.ContainerRuntime = (*fakeRuntime)(nil)

func (f *fakeRuntime) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeRuntime) FindByName(ctx context.Context, name string) (*domain.ServiceInstance, error) {
	if f.lastCreated != nil && f.lastCreated.Name == name {
		return f.lastCreated, nil
	}
	if f.existing != nil && f.existing.Name == name {
		return f.existing, nil
	}
	return nil, nil
}

func (f *fakeRuntime) Pull(ctx context.Context, ref string) (string, error) {
	if f.pullErr != nil {
		return "", f.pullErr
	}
	return f.pullDigest, nil
}

func (f *fakeRuntime) ImageDigest(ctx context.Context, ref string) (string, error) {
	return f.pullDigest, nil
}

func (f *fakeRuntime) Stop(ctx context.Context, containerID string, timeoutSeconds int) error {
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *fakeRuntime) Remove(ctx context.Context, containerID string) error {
	f.removed = append(f.removed, containerID)
	if f.existing != nil && f.existing.ContainerID == containerID {
		f.existing = nil
	}
	if f.lastCreated != nil && f.lastCreated.ContainerID == containerID {
		f.lastCreated = nil
	}
	return nil
}

func (f *fakeRuntime) Create(ctx context.Context, desired domain.DesiredConfig) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("c%d", f.nextID)
	f.created = append(f.created, desired)
	f.lastCreated = &domain.ServiceInstance{
		ContainerID: id,
		Name:        desired.Name,
		ImageRef:    desired.Ref(),
		ImageDigest: f.pullDigest,
		DataDir:     desired.DataDir(),
	}
	return id, nil
}

func (f *fakeRuntime) Start(ctx context.Context, containerID string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, containerID)
	if f.lastCreated != nil && f.lastCreated.ContainerID == containerID {
		f.lastCreated.Running = true
	}
	return nil
}

func (f *fakeRuntime) IsHealthy(ctx context.Context, containerID string) (bool, error) {
	return !f.unhealthy[containerID], nil
}

func (f *fakeRuntime) Close() error { return nil }

// fakeStore is an in-memory remote Storage for mirror and prune tests.
type fakeStore struct {
	files      map[string]time.Time
	uploadErr  error
	oldErr     error
	uploaded   []string
	deleted    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string]time.Time)}
}

func (f *fakeStore) Upload(ctx context.Context, localPath string, remoteName string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploaded = append(f.uploaded, remoteName)
	f.files[remoteName] = time.Now()
	return nil
}

func (f *fakeStore) List(ctx context.Context) ([]string, error) {
	var names []string
	for name := range f.files {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeStore) Delete(ctx context.Context, remoteName string) error {
	f.deleted = append(f.deleted, remoteName)
	delete(f.files, remoteName)
	return nil
}

func (f *fakeStore) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	if f.oldErr != nil {
		return nil, f.oldErr
	}
	var old []string
	for name, modTime := range f.files {
		if modTime.Before(cutoffTime) {
			old = append(old, name)
		}
	}
	return old, nil
}

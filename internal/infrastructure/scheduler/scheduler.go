package scheduler

import (
	"context"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps an in-process cron runner. Jobs are registered under a
// unique marker; registering the same marker again is a no-op, so repeated
// provisioning runs never produce duplicate entries.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func New() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		entries: make(map[string]cron.EntryID),
	}
}

// Ensure registers job under marker with the given cron spec (six fields,
// seconds first). At most one entry per marker exists at any time.
func (s *Scheduler) Ensure(marker, spec string, job func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[marker]; ok {
		return nil
	}

	id, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		_ = job(ctx)
	})
	if err != nil {
		return err
	}
	s.entries[marker] = id
	return nil
}

// Registered reports whether a marker already has an entry.
func (s *Scheduler) Registered(marker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[marker]
	return ok
}

// Markers returns the registered markers, sorted.
func (s *Scheduler) Markers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	markers := make([]string, 0, len(s.entries))
	for m := range s.entries {
		markers = append(markers, m)
	}
	sort.Strings(markers)
	return markers
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

package geofence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Veraticus/whereabouts/internal/model"
	"github.com/Veraticus/whereabouts/internal/service"
)

var errHostUnavailable = errors.New("host unavailable")

// fakeGeofenceClient records region commands and fails the first failures calls.
type fakeGeofenceClient struct {
	added     [][]model.RegionRequest
	removed   [][]string
	mu        sync.Mutex
	calls     int
	failures  int
	removeAll int
}

func (c *fakeGeofenceClient) fail() error {
	c.calls++
	if c.failures > 0 {
		c.failures--
		return errHostUnavailable
	}
	return nil
}

func (c *fakeGeofenceClient) AddRegions(_ context.Context, requests []model.RegionRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail(); err != nil {
		return err
	}
	c.added = append(c.added, requests)
	return nil
}

func (c *fakeGeofenceClient) RemoveRegions(_ context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail(); err != nil {
		return err
	}
	c.removed = append(c.removed, ids)
	return nil
}

func (c *fakeGeofenceClient) RemoveAllRegions(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail(); err != nil {
		return err
	}
	c.removeAll++
	return nil
}

// fakeLocationProvider returns a fixed fix and counts acquisitions.
type fakeLocationProvider struct {
	fix   *model.Fix
	err   error
	mu    sync.Mutex
	calls int
}

func (p *fakeLocationProvider) CurrentFix(_ context.Context) (*model.Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	fix := *p.fix
	return &fix, nil
}

func (p *fakeLocationProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// recordingNotifier collects reminders.
type recordingNotifier struct {
	reminders []model.Reminder
	mu        sync.Mutex
}

func (n *recordingNotifier) Notify(_ context.Context, reminder model.Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, reminder)
	return nil
}

func (n *recordingNotifier) Reminders() []model.Reminder {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.Reminder(nil), n.reminders...)
}

// panickingStorage panics when asked for one geofence location.
type panickingStorage struct {
	service.Storage
	panicOn string
}

func (s *panickingStorage) GetGeofenceLocation(ctx context.Context, id string) (*model.GeofenceLocation, error) {
	if id == s.panicOn {
		panic("corrupt row")
	}
	return s.Storage.GetGeofenceLocation(ctx, id)
}

// failingStorage fails every lookup of one geofence location.
type failingStorage struct {
	service.Storage
	failOn string
}

func (s *failingStorage) GetGeofenceLocation(ctx context.Context, id string) (*model.GeofenceLocation, error) {
	if id == s.failOn {
		return nil, errors.New("database is locked")
	}
	return s.Storage.GetGeofenceLocation(ctx, id)
}

// fixedClock returns a clock that reads from *t.
func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func allPermissions() PermissionSet {
	return PermissionSet{FineLocation: true, BackgroundLocation: true, Version: 34}
}

func intPtr(n int) *int { return &n }

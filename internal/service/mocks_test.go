package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/settingsd/internal/domain"
	"github.com/Strob0t/settingsd/internal/domain/settings"
	"github.com/Strob0t/settingsd/internal/port/clock"
	"github.com/Strob0t/settingsd/internal/port/database"
	"github.com/Strob0t/settingsd/internal/port/directory"
	"github.com/Strob0t/settingsd/internal/port/messagequeue"
)

// Compile-time interface checks.
var (
	_ database.Store      = (*mockStore)(nil)
	_ directory.Directory = (*mockDirectory)(nil)
	_ clock.Clock         = (*fakeClock)(nil)
	_ messagequeue.Queue  = (*mockQueue)(nil)
)

// mockStore is an in-memory database.Store with compare-and-swap updates.
type mockStore struct {
	mu         sync.Mutex
	businesses map[string]settings.BusinessSettings
	reps       map[string]settings.RepSettings

	// Error hooks: set these to inject failures.
	getBusinessErr    error
	findExpiredErr    error
	updateBusinessErr map[string]error // by business id

	// beforeBusinessUpdate runs before the version check of UpdateBusinessSettings,
	// without the lock held, to simulate a concurrent writer.
	beforeBusinessUpdate func(m *mockStore, b *settings.BusinessSettings)
	beforeRepUpdate      func(m *mockStore, r *settings.RepSettings)

	businessUpdates int
	repUpdates      int
}

func newMockStore() *mockStore {
	return &mockStore{
		businesses:        make(map[string]settings.BusinessSettings),
		reps:              make(map[string]settings.RepSettings),
		updateBusinessErr: make(map[string]error),
	}
}

func (m *mockStore) GetBusinessSettings(_ context.Context, businessID string) (*settings.BusinessSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getBusinessErr != nil {
		return nil, m.getBusinessErr
	}
	b, ok := m.businesses[businessID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b.Clone(), nil
}

func (m *mockStore) CreateBusinessSettings(_ context.Context, businessID string, now time.Time) (*settings.BusinessSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.businesses[businessID]; ok {
		return b.Clone(), nil
	}
	b := settings.NewBusinessSettings(businessID, now)
	b.ID = uuid.NewString()
	b.Version = 1
	m.businesses[businessID] = b
	return b.Clone(), nil
}

func (m *mockStore) UpdateBusinessSettings(_ context.Context, b *settings.BusinessSettings) error {
	if m.beforeBusinessUpdate != nil {
		m.beforeBusinessUpdate(m, b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateBusinessErr[b.BusinessID]; err != nil {
		return err
	}
	stored, ok := m.businesses[b.BusinessID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != b.Version {
		return domain.ErrConflict
	}
	b.Version++
	m.businesses[b.BusinessID] = *b.Clone()
	m.businessUpdates++
	return nil
}

func (m *mockStore) FindExpiredDndSettings(_ context.Context, now time.Time) ([]settings.BusinessSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findExpiredErr != nil {
		return nil, m.findExpiredErr
	}
	var out []settings.BusinessSettings
	for _, b := range m.businesses {
		if b.DndModeEnabled && b.DndModeExpiresAt != nil && !b.DndModeExpiresAt.After(now) {
			out = append(out, *b.Clone())
		}
	}
	return out, nil
}

func (m *mockStore) GetRepSettings(_ context.Context, repID string) (*settings.RepSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reps[repID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.Clone(), nil
}

func (m *mockStore) CreateRepSettings(_ context.Context, repID string, now time.Time) (*settings.RepSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reps[repID]; ok {
		return r.Clone(), nil
	}
	r := settings.NewRepSettings(repID, now)
	r.ID = uuid.NewString()
	r.Version = 1
	m.reps[repID] = r
	return r.Clone(), nil
}

func (m *mockStore) UpdateRepSettings(_ context.Context, r *settings.RepSettings) error {
	if m.beforeRepUpdate != nil {
		m.beforeRepUpdate(m, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reps[r.BusinessRepID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != r.Version {
		return domain.ErrConflict
	}
	r.Version++
	m.reps[r.BusinessRepID] = *r.Clone()
	m.repUpdates++
	return nil
}

// business returns a copy of the stored record for assertions.
func (m *mockStore) business(businessID string) (settings.BusinessSettings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.businesses[businessID]
	if !ok {
		return b, false
	}
	return *b.Clone(), true
}

// mutateBusiness applies fn to the stored record and bumps its version, as a
// competing writer would.
func (m *mockStore) mutateBusiness(businessID string, fn func(b *settings.BusinessSettings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.businesses[businessID]
	fn(&b)
	b.Version++
	m.businesses[businessID] = b
}

// mockDirectory is an in-memory directory.Directory.
type mockDirectory struct {
	mu          sync.Mutex
	parents     map[string]string // business id -> parent rep id
	support     map[string]bool
	repBusiness map[string]string // rep id -> business id
	err         error
	calls       int
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		parents:     make(map[string]string),
		support:     make(map[string]bool),
		repBusiness: make(map[string]string),
	}
}

func (d *mockDirectory) ParentRepresentative(_ context.Context, businessID string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return "", false, d.err
	}
	id, ok := d.parents[businessID]
	return id, ok, nil
}

func (d *mockDirectory) IsSupportActor(_ context.Context, userID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return false, d.err
	}
	return d.support[userID], nil
}

func (d *mockDirectory) BusinessForRep(_ context.Context, repID string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return "", false, d.err
	}
	id, ok := d.repBusiness[repID]
	return id, ok, nil
}

// fakeClock is a settable clock.Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// mockQueue records published subjects.
type mockQueue struct {
	mu         sync.Mutex
	subjects   []string
	payloads   [][]byte
	publishErr error
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.subjects = append(q.subjects, subject)
	q.payloads = append(q.payloads, data)
	return nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) published() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.subjects...)
}

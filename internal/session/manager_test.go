package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/internal/realtime"
	"github.com/afiliado-ai/agent-dashboard/internal/tenant"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

type fakeProfiles struct {
	mu   sync.Mutex
	byID map[string]model.TenantProfile
}

func (f *fakeProfiles) Get(_ context.Context, tenantID string) (*model.TenantProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[tenantID]
	if !ok {
		return nil, fmt.Errorf("profile %s not found", tenantID)
	}
	return &p, nil
}

func (f *fakeProfiles) ListResolvedTables(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tables := make([]string, 0, len(f.byID))
	for _, p := range f.byID {
		tables = append(tables, p.LeadsTable)
	}
	return tables, nil
}

type fakeLeads struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	entered map[string]*sync.Once
	signal  map[string]chan struct{}
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{
		gates:   make(map[string]chan struct{}),
		entered: make(map[string]*sync.Once),
		signal:  make(map[string]chan struct{}),
	}
}

// blockTable makes the next Conversations call for table wait on the
// returned gate, signalling entry on the entered channel.
func (f *fakeLeads) blockTable(table string) (gate, entered chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate = make(chan struct{})
	entered = make(chan struct{})
	f.gates[table] = gate
	f.entered[table] = &sync.Once{}
	f.signal[table] = entered
	return gate, entered
}

func (f *fakeLeads) Conversations(_ context.Context, table string) ([]model.Conversation, error) {
	f.mu.Lock()
	gate := f.gates[table]
	once := f.entered[table]
	entered := f.signal[table]
	f.mu.Unlock()
	if gate != nil {
		once.Do(func() { close(entered) })
		<-gate
	}
	return []model.Conversation{}, nil
}

func (f *fakeLeads) SetPause(_ context.Context, _, _ string, _ model.PauseState) (int64, error) {
	return 1, nil
}

func (f *fakeLeads) ClearPause(_ context.Context, _, _ string) (int64, error) {
	return 1, nil
}

func (f *fakeLeads) ListExpired(_ context.Context, _ string, _ time.Time) ([]string, error) {
	return nil, nil
}

type noopBot struct{}

func (noopBot) PauseBot(context.Context, string, int64, string) error { return nil }
func (noopBot) ResumeBot(context.Context, string) error               { return nil }

func testProfile(id string) model.TenantProfile {
	return model.TenantProfile{
		ID:           id,
		Name:         "Loja " + id,
		Email:        id + "@exemplo.com",
		LeadsTable:   id + "_base_leads",
		BucketName:   "user-" + id,
		InstanceName: id,
	}
}

func newTestManager(t *testing.T, profiles *fakeProfiles, leads *fakeLeads) *Manager {
	t.Helper()
	log, err := logger.NewDevelopment()
	require.NoError(t, err)
	resolver := tenant.NewResolver(nil, log)
	feed := realtime.NewFeed(nil, log)
	return NewManager(resolver, profiles, leads, feed, noopBot{}, 10*time.Millisecond, log)
}

func TestSessionIsCachedPerTenant(t *testing.T) {
	profiles := &fakeProfiles{byID: map[string]model.TenantProfile{"alfa": testProfile("alfa")}}
	m := newTestManager(t, profiles, newFakeLeads())
	defer m.Close()

	first, err := m.Session(context.Background(), "alfa")
	require.NoError(t, err)
	second, err := m.Session(context.Background(), "alfa")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "alfa_base_leads", first.Resources.TableName)
}

func TestSlowInitialLoadDoesNotBlockOtherTenants(t *testing.T) {
	profiles := &fakeProfiles{byID: map[string]model.TenantProfile{
		"alfa":  testProfile("alfa"),
		"bravo": testProfile("bravo"),
	}}
	leads := newFakeLeads()
	m := newTestManager(t, profiles, leads)
	defer m.Close()

	gate, entered := leads.blockTable("alfa_base_leads")

	alfaDone := make(chan error, 1)
	go func() {
		_, err := m.Session(context.Background(), "alfa")
		alfaDone <- err
	}()
	<-entered

	// bravo's session must open while alfa's initial load is stuck.
	bravoDone := make(chan error, 1)
	go func() {
		_, err := m.Session(context.Background(), "bravo")
		bravoDone <- err
	}()
	select {
	case err := <-bravoDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second tenant blocked behind the first tenant's initial load")
	}

	close(gate)
	require.NoError(t, <-alfaDone)
}

func TestConcurrentSameTenantCallsShareOneSession(t *testing.T) {
	profiles := &fakeProfiles{byID: map[string]model.TenantProfile{"alfa": testProfile("alfa")}}
	m := newTestManager(t, profiles, newFakeLeads())
	defer m.Close()

	const callers = 8
	results := make(chan *Session, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := m.Session(context.Background(), "alfa")
			assert.NoError(t, err)
			results <- sess
		}()
	}
	wg.Wait()
	close(results)

	first := <-results
	require.NotNil(t, first)
	for sess := range results {
		assert.Same(t, first, sess)
	}
}

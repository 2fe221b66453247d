package assessment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/frma/frma/internal/platform/inference"
	"github.com/frma/frma/internal/platform/websocket"
)

// -- Mock Catalog --

type mockCatalog struct {
	defs map[string]Definition
}

func newMockCatalog(defs ...Definition) *mockCatalog {
	m := &mockCatalog{defs: make(map[string]Definition)}
	for _, d := range defs {
		m.defs[d.ID] = d
	}
	return m
}

func (m *mockCatalog) Lookup(_ context.Context, id string) (Definition, error) {
	d, ok := m.defs[id]
	if !ok {
		return Definition{}, fmt.Errorf("lookup %q: %w", id, ErrConfigurationMissing)
	}
	return d, nil
}

// -- Stub Backend --

type stubBackend struct {
	mu       sync.Mutex
	requests []inference.Request
	respond  func(ctx context.Context, call int) (string, error)
}

func (b *stubBackend) Generate(ctx context.Context, req inference.Request) (string, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	call := len(b.requests)
	b.mu.Unlock()
	if b.respond == nil {
		return "1. Call emergency services immediately!", nil
	}
	return b.respond(ctx, call)
}

func (b *stubBackend) Requests() []inference.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]inference.Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// -- Mock Profile Provider --

type mockProfiles struct {
	snap ProfileSnapshot
	err  error
}

func (m *mockProfiles) Snapshot(_ context.Context, _ string) (ProfileSnapshot, error) {
	return m.snap, m.err
}

// -- Mock Record Repository --

type mockRecordRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*AssessmentRecord
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{records: make(map[uuid.UUID]*AssessmentRecord)}
}

func (m *mockRecordRepo) Create(_ context.Context, r *AssessmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.records[r.ID] = r
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*AssessmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return r, nil
}

func (m *mockRecordRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]*AssessmentRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*AssessmentRecord
	for _, r := range m.records {
		if r.UserID == userID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, len(result), nil
}

func (m *mockRecordRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.records {
		if r.UserID == userID {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *mockRecordRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// -- Mock Event Publisher --

type mockPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (m *mockPublisher) Publish(_ context.Context, ev websocket.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) Events() []websocket.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]websocket.Event, len(m.events))
	copy(out, m.events)
	return out
}

// -- Mock Observer --

type mockObserver struct {
	mu          sync.Mutex
	starts      []string
	submissions []string
}

func (m *mockObserver) ObserveStart(emergencyType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, emergencyType)
}

func (m *mockObserver) ObserveSubmission(emergencyType, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, emergencyType+":"+status)
}

func (m *mockObserver) Submissions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.submissions...)
}

// -- Fixtures --

func boolQ(id, prompt string) Question {
	return Question{ID: id, Prompt: prompt, Kind: KindBoolean}
}

func textQ(id, prompt string) Question {
	return Question{ID: id, Prompt: prompt, Kind: KindText}
}

func chokingDefinition() Definition {
	return Definition{
		ID:           "choking",
		Title:        "Choking",
		HighPriority: true,
		Questions: []Question{
			boolQ("can_breathe", "Can the person breathe or cough?"),
			{
				ID:         "object_visible",
				Prompt:     "Can you see the object?",
				Kind:       KindBoolean,
				Visibility: &VisibilityCondition{DependsOn: "can_breathe", Required: Bool(false)},
			},
		},
	}
}

type testEnv struct {
	svc       *Service
	backend   *stubBackend
	profiles  *mockProfiles
	records   *mockRecordRepo
	publisher *mockPublisher
	observer  *mockObserver
	store     *MemoryStore
}

func newTestEnv(defs ...Definition) *testEnv {
	if len(defs) == 0 {
		defs = []Definition{chokingDefinition()}
	}
	env := &testEnv{
		backend:   &stubBackend{},
		profiles:  &mockProfiles{},
		records:   newMockRecordRepo(),
		publisher: &mockPublisher{},
		observer:  &mockObserver{},
		store:     NewMemoryStore(16, time.Hour),
	}
	wf := NewWorkflow(env.backend, DefaultWorkflowConfig(), zerolog.Nop())
	env.svc = NewService(newMockCatalog(defs...), wf, env.store, zerolog.Nop())
	env.svc.SetProfileProvider(env.profiles)
	env.svc.SetRecordRepository(env.records)
	env.svc.SetEventPublisher(env.publisher)
	env.svc.SetObserver(env.observer)
	return env
}

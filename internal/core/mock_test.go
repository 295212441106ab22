package core

import (
	"context"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
)

// MockDriver serves canned results keyed by query text and records every
// call for assertions.
type MockDriver struct {
	mu      sync.Mutex
	Results map[string]neo4j.EagerResult
	Errs    map[string]error
	Calls   []string
	Params  map[string][]map[string]interface{}
}

func NewMockDriver() *MockDriver {
	return &MockDriver{
		Results: map[string]neo4j.EagerResult{},
		Errs:    map[string]error{},
		Params:  map[string][]map[string]interface{}{},
	}
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, query)
	m.Params[query] = append(m.Params[query], params)
	if err, ok := m.Errs[query]; ok {
		return neo4j.EagerResult{}, err
	}
	return m.Results[query], nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error { return nil }
func (m *MockDriver) Close(ctx context.Context) error        { return nil }

func (m *MockDriver) CallCount(query string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.Calls {
		if q == query {
			n++
		}
	}
	return n
}

// MockPublisher records published batch events.
type MockPublisher struct {
	Events []model.BatchEvent
	Err    error
}

func (m *MockPublisher) PublishBatch(ctx context.Context, event model.BatchEvent) error {
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, event)
	return nil
}

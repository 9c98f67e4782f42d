package llm

import (
	"context"
	"errors"
	"sync"
)

// MockClient is a scripted client for tests and offline runs. Responses are
// consumed in FIFO order; an empty queue fails the call so a test that
// under-scripts its scenario fails loudly instead of hanging on a default.
type MockClient struct {
	mu       sync.Mutex
	queue    []queuedResponse
	Requests []ChatRequest
}

type queuedResponse struct {
	result *ChatResult
	err    error
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

// Enqueue scripts a successful completion.
func (m *MockClient) Enqueue(content string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, queuedResponse{result: &ChatResult{Success: true, Content: content}})
	return m
}

// EnqueueError scripts a transport failure.
func (m *MockClient) EnqueueError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, queuedResponse{err: err})
	return m
}

// EnqueueFailure scripts a provider-side failure result.
func (m *MockClient) EnqueueFailure(message string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, queuedResponse{result: &ChatResult{Success: false, Error: message}})
	return m
}

func (m *MockClient) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if len(m.queue) == 0 {
		return nil, errors.New("mock llm: no scripted response left")
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.result, nil
}

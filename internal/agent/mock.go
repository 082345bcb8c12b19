package agent

import (
	"context"
	"sync"
)

// MockCall records one Execute invocation on the MockClient.
type MockCall struct {
	Prompt  string
	Options Options
}

// MockClient implements Client for tests. It replays a scripted chunk
// sequence and records every call.
type MockClient struct {
	mu sync.Mutex

	// Script is the chunk sequence replayed on each Execute call.
	Script []Chunk

	// ExecuteErr, when set, is returned from Execute before any chunk
	// is delivered.
	ExecuteErr error

	// BlockUntilCancel makes the stream hang after the scripted chunks
	// until ctx is cancelled, simulating an interrupted call.
	BlockUntilCancel bool

	calls []MockCall
}

// NewMockClient creates a MockClient replaying the given chunks.
func NewMockClient(script ...Chunk) *MockClient {
	return &MockClient{Script: script}
}

// Execute records the call and streams the scripted chunks.
func (m *MockClient) Execute(ctx context.Context, prompt string, opts Options) (<-chan Chunk, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Prompt: prompt, Options: opts})
	err := m.ExecuteErr
	script := append([]Chunk(nil), m.Script...)
	block := m.BlockUntilCancel
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		for _, chunk := range script {
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if block {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

// Calls returns the recorded Execute invocations.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

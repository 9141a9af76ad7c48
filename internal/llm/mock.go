package llm

import (
	"context"
	"sync"
)

// Mock is a scriptable Completer for local runs and tests. It replays the
// queued responses in order, repeating the last one once exhausted.
type Mock struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Requests  []Request
	calls     int
}

func (m *Mock) Complete(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	i := m.calls
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[i], nil
}

// CallCount reports how many completions have been requested.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

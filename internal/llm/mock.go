package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient returns scripted responses for tests. Responses are chosen by
// the forced function name when present, otherwise drawn from Replies in
// call order.
type MockClient struct {
	mu        sync.Mutex
	ByCall    map[string]Response
	Replies   []Response
	Err       error
	nextReply int
	Requests  []Request
}

func (m *MockClient) Complete(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)

	if m.Err != nil {
		return Response{}, m.Err
	}
	if req.ForceCall != "" {
		if resp, ok := m.ByCall[req.ForceCall]; ok {
			return resp, nil
		}
		return Response{}, fmt.Errorf("mock: no scripted response for %q", req.ForceCall)
	}
	if m.nextReply < len(m.Replies) {
		resp := m.Replies[m.nextReply]
		m.nextReply++
		return resp, nil
	}
	return Response{Content: "ok"}, nil
}

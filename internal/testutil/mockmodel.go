// Package testutil provides shared testing utilities: a deterministic
// model client, an in-memory thread store, and a PostgreSQL container
// helper for store integration tests.
package testutil

import (
	"context"
	"strings"
	"sync"
)

// MockModel provides deterministic model responses for testing. Queued
// responses are returned first, in order; after the queue drains,
// prompts are matched against registered patterns. The fallback is
// returned when nothing matches.
//
// Safe for concurrent use.
type MockModel struct {
	mu       sync.Mutex
	queue    []string
	rules    []mockRule
	fallback string
	err      error
	calls    []string
}

type mockRule struct {
	pattern  string // substring match in the prompt, case-insensitive
	response string
}

// NewMockModel creates a mock model with the given fallback response.
func NewMockModel(fallback string) *MockModel {
	return &MockModel{fallback: fallback}
}

// Push queues a response returned by the next call regardless of the
// prompt. Queued responses drain in FIFO order.
func (m *MockModel) Push(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, response)
}

// AddResponse registers a pattern-response pair. First match wins.
func (m *MockModel) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), response: response})
}

// FailWith makes every subsequent call return err.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Complete implements model.Client.
func (m *MockModel) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.queue) > 0 {
		resp := m.queue[0]
		m.queue = m.queue[1:]
		return resp, nil
	}
	lowered := strings.ToLower(prompt)
	for _, r := range m.rules {
		if strings.Contains(lowered, r.pattern) {
			return r.response, nil
		}
	}
	return m.fallback, nil
}

// Calls returns a copy of all prompts the model received.
func (m *MockModel) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(m.calls))
	copy(cp, m.calls)
	return cp
}

package model

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single chat message in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Settings carries the recognized remote-call parameters. Optional fields are
// pointers: a nil optional is dropped from the transmitted request rather than
// sent as null.
type Settings struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int64   `json:"max_tokens,omitempty"`
}

// Float returns a pointer to v, for optional Settings fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional Settings fields.
func Int(v int64) *int64 { return &v }

// Request captures one normalized query against a backend.
type Request struct {
	// SystemMessage and UserMessage are optional; empty means absent.
	SystemMessage string
	UserMessage   string

	// FuncSpec, when set, forces the model to answer by calling the described
	// function instead of replying in free text.
	FuncSpec *FuncSpec

	// ConvertSystemToUser demotes the system text to a user-role message, for
	// models that reject a system role.
	ConvertSystemToUser bool

	Settings Settings
}

// QueryResult is the normalized outcome of one backend call, created fresh
// per call. Exactly one of Text and Structured is populated: Structured is
// non-nil iff the request carried a FuncSpec, otherwise Text holds the
// (possibly empty) free-text answer.
type QueryResult struct {
	Text       string
	Structured map[string]any

	// Elapsed is wall-clock time around the remote call, including retry
	// waits but excluding client construction and host resolution.
	Elapsed time.Duration

	InputTokens  int
	OutputTokens int

	// Metadata passes provider response metadata through verbatim.
	Metadata map[string]any
}

// Backend executes normalized queries against a concrete provider endpoint.
type Backend interface {
	Query(ctx context.Context, req Request) (*QueryResult, error)
}

// BuildMessages assembles the ordered message list from optional system and
// user text. Empty strings are skipped. With convertSystemToUser set, the
// system text is demoted to a user-role message.
func BuildMessages(system, user string, convertSystemToUser bool) []Message {
	messages := make([]Message, 0, 2)

	if system != "" {
		role := RoleSystem
		if convertSystemToUser {
			role = RoleUser
		}
		messages = append(messages, Message{Role: role, Content: system})
	}

	if user != "" {
		messages = append(messages, Message{Role: RoleUser, Content: user})
	}

	return messages
}

// MockBackend is a lightweight in-memory Backend useful for tests & examples.
type MockBackend struct {
	mu        sync.Mutex
	responses map[string]*QueryResult
	err       error
	requests  []Request
}

// NewMockBackend constructs an empty MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{responses: make(map[string]*QueryResult)}
}

// AddResult registers a deterministic canned result for a user message.
func (m *MockBackend) AddResult(userMessage string, res *QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[userMessage] = res
}

// FailWith makes every subsequent Query return err.
func (m *MockBackend) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns a copy of the queries seen so far.
func (m *MockBackend) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Query implements Backend; returns the canned result for the user message or
// a generated placeholder.
func (m *MockBackend) Query(_ context.Context, req Request) (*QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.err != nil {
		return nil, m.err
	}

	if res, ok := m.responses[req.UserMessage]; ok {
		return res, nil
	}

	if req.FuncSpec != nil {
		return &QueryResult{Structured: map[string]any{}, Metadata: map[string]any{}}, nil
	}

	return &QueryResult{
		Text:     fmt.Sprintf("Mock response to: %s", req.UserMessage),
		Metadata: map[string]any{},
	}, nil
}

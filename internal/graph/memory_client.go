package graph

import (
	"context"
	"strings"
	"sync"
)

// MemoryClient is an in-memory implementation of the Client interface used for
// unit testing session and query logic without a running graph database.
// Results are replayed in the order they were pushed; a Responder, when set,
// takes precedence over the queues.
type MemoryClient struct {
	mu           sync.Mutex
	calls        []ExecutedQuery
	readResults  []Result
	writeResults []Result
	responder    func(ExecutedQuery) (Result, error)
	err          error
	connectivity error
	closed       bool
}

// ExecutedQuery captures a cypher statement and parameters executed against the graph.
type ExecutedQuery struct {
	Query  string
	Params map[string]any
	Write  bool
}

// NewMemoryClient instantiates the in-memory client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// WithError configures the client to return the provided error for subsequent calls.
func (m *MemoryClient) WithError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithConnectivityError forces VerifyConnectivity to return the supplied error.
func (m *MemoryClient) WithConnectivityError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

// WithResponder answers every query with fn.
func (m *MemoryClient) WithResponder(fn func(ExecutedQuery) (Result, error)) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
	return m
}

// PushReadResult appends a result that will be returned on the next ExecuteRead call.
func (m *MemoryClient) PushReadResult(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readResults = append(m.readResults, res)
}

// PushWriteResult appends a result that will be returned on the next ExecuteWrite call.
func (m *MemoryClient) PushWriteResult(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeResults = append(m.writeResults, res)
}

func (m *MemoryClient) ExecuteWrite(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.execute(ExecutedQuery{Query: cypher, Params: cloneMap(params), Write: true}, &m.writeResults)
}

func (m *MemoryClient) ExecuteRead(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.execute(ExecutedQuery{Query: cypher, Params: cloneMap(params)}, &m.readResults)
}

func (m *MemoryClient) execute(q ExecutedQuery, queue *[]Result) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Result{}, m.err
	}

	m.calls = append(m.calls, q)

	if m.responder != nil {
		return m.responder(q)
	}
	if len(*queue) == 0 {
		return Result{}, nil
	}

	res := (*queue)[0]
	*queue = (*queue)[1:]
	return res, nil
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

func (m *MemoryClient) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemoryClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls returns a snapshot of every executed query in execution order.
func (m *MemoryClient) Calls() []ExecutedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutedQuery(nil), m.calls...)
}

// LastCall returns the most recent query.
func (m *MemoryClient) LastCall() (ExecutedQuery, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ExecutedQuery{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// WriteCalls returns a snapshot of executed write queries.
func (m *MemoryClient) WriteCalls() []ExecutedQuery {
	return m.filter(true)
}

// ReadCalls returns a snapshot of executed read queries.
func (m *MemoryClient) ReadCalls() []ExecutedQuery {
	return m.filter(false)
}

func (m *MemoryClient) filter(write bool) []ExecutedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ExecutedQuery
	for _, c := range m.calls {
		if c.Write == write {
			out = append(out, c)
		}
	}
	return out
}

// CallsContaining returns queries whose text contains fragment.
func (m *MemoryClient) CallsContaining(fragment string) []ExecutedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ExecutedQuery
	for _, c := range m.calls {
		if strings.Contains(c.Query, fragment) {
			out = append(out, c)
		}
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

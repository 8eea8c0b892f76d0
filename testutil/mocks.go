package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockHydraxServer creates a test server that mocks the Hydrax upload endpoint.
// It records each request's credential path segment and responds with the
// configured locator.
type MockHydraxServer struct {
	*httptest.Server

	Locator    string
	StatusCode int

	mu          sync.Mutex
	credentials []string
	bodySizes   []int
}

// NewMockHydraxServer creates a new mock Hydrax upload server.
func NewMockHydraxServer(t *testing.T) *MockHydraxServer {
	t.Helper()
	m := &MockHydraxServer{Locator: "mock-locator", StatusCode: http.StatusOK}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.credentials = append(m.credentials, r.URL.Path[1:])
		m.bodySizes = append(m.bodySizes, len(body))
		m.mu.Unlock()
		if m.StatusCode != http.StatusOK {
			http.Error(w, "mock failure", m.StatusCode)
			return
		}
		_, _ = w.Write([]byte(m.Locator)) //nolint:errcheck // test mock response
	}))
	t.Cleanup(m.Close)
	return m
}

// Credentials returns the credential path segments of all received uploads.
func (m *MockHydraxServer) Credentials() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.credentials))
	copy(out, m.credentials)
	return out
}

// BodySizes returns the request body sizes of all received uploads.
func (m *MockHydraxServer) BodySizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.bodySizes))
	copy(out, m.bodySizes)
	return out
}

// RequestCount returns how many uploads the mock received.
func (m *MockHydraxServer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.credentials)
}

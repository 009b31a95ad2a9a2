package test_helpers

import (
	"context"
	"sync"
	"testing"

	forum "github.com/jamesprial/go-forum-client"
	"github.com/jamesprial/go-forum-client/pkg/store"
	"github.com/jamesprial/go-forum-client/pkg/types"
)

// Default account created by SignIn.
const (
	TestUsername = "alice"
	TestEmail    = "alice@example.com"
	TestPassword = "correct-horse"
)

// TestClient pairs a forum client with the fake server it talks to.
type TestClient struct {
	*forum.Client
	Server *ForumServer
	Store  store.Store
}

// NewTestClient starts a ForumServer and a client wired to it with a memory
// store and no rate limiting. opts may adjust the config before the client
// is built. Both are torn down with the test.
func NewTestClient(t testing.TB, opts ...func(*forum.Config)) *TestClient {
	t.Helper()
	server := NewForumServer()
	t.Cleanup(server.Close)
	return NewTestClientFor(t, server, store.NewMemory(), opts...)
}

// NewTestClientFor builds a client against an existing server and store,
// e.g. to simulate a second run of an application sharing persisted state.
func NewTestClientFor(t testing.TB, server *ForumServer, st store.Store, opts ...func(*forum.Config)) *TestClient {
	t.Helper()
	cfg := &forum.Config{
		BaseURL:   server.URL(),
		Store:     st,
		RateLimit: &forum.RateLimitConfig{Disabled: true},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := forum.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create forum client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &TestClient{Client: client, Server: server, Store: st}
}

// SignIn registers the default account on the server and logs in as it.
func (tc *TestClient) SignIn(t testing.TB) *types.UserProfile {
	t.Helper()
	tc.Server.AddUser(TestUsername, TestEmail, TestPassword)
	user, err := tc.Login(context.Background(), TestUsername, TestPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return user
}

// ConcurrentTestHelper runs several clients against one server.
type ConcurrentTestHelper struct {
	Server  *ForumServer
	clients []*TestClient
}

// NewConcurrentTestHelper creates clientCount clients, each with its own store.
func NewConcurrentTestHelper(t testing.TB, clientCount int) *ConcurrentTestHelper {
	t.Helper()
	server := NewForumServer()
	t.Cleanup(server.Close)

	clients := make([]*TestClient, clientCount)
	for i := range clients {
		clients[i] = NewTestClientFor(t, server, store.NewMemory())
	}
	return &ConcurrentTestHelper{Server: server, clients: clients}
}

// GetClient returns the client at index, or nil.
func (cth *ConcurrentTestHelper) GetClient(index int) *TestClient {
	if index < 0 || index >= len(cth.clients) {
		return nil
	}
	return cth.clients[index]
}

// RunConcurrentTest runs testFunc on every client at once and collects the errors.
func (cth *ConcurrentTestHelper) RunConcurrentTest(testFunc func(*TestClient) error) []error {
	var wg sync.WaitGroup
	errs := make([]error, len(cth.clients))
	for i, client := range cth.clients {
		wg.Add(1)
		go func(i int, c *TestClient) {
			defer wg.Done()
			errs[i] = testFunc(c)
		}(i, client)
	}
	wg.Wait()
	return errs
}

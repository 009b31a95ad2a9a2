package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesprial/go-forum-client/test_helpers"
)

// harness runs forumctl invocations that share one file-backed session.
type harness struct {
	t      *testing.T
	server *test_helpers.ForumServer
	global []string
}

func newHarness(t *testing.T) *harness {
	server := test_helpers.NewForumServer()
	t.Cleanup(server.Close)
	t.Setenv("FORUM_RATE_LIMIT_DISABLED", "true")
	return &harness{
		t:      t,
		server: server,
		global: []string{
			"forumctl",
			"--base-url", server.URL(),
			"--store", "file",
			"--store-path", filepath.Join(t.TempDir(), "session.json"),
		},
	}
}

func (h *harness) run(args ...string) (string, error) {
	var out bytes.Buffer
	err := run(append(append([]string{}, h.global...), args...), &out)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "forumctl %s", strings.Join(args, " "))
	return out
}

func TestLoginPersistsAcrossInvocations(t *testing.T) {
	h := newHarness(t)
	h.server.AddUser("alice", "alice@example.com", "pw")

	assert.Equal(t, "not signed in\n", h.mustRun("whoami"))
	assert.Contains(t, h.mustRun("login", "--password", "pw", "alice"), "signed in as alice")

	out := h.mustRun("whoami")
	assert.Contains(t, out, "alice (id 1)")
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "token:  expires")

	assert.Equal(t, "signed out\n", h.mustRun("logout"))
	assert.Equal(t, "not signed in\n", h.mustRun("whoami"))
}

func TestLoginFailure(t *testing.T) {
	h := newHarness(t)
	h.server.AddUser("alice", "alice@example.com", "pw")

	_, err := h.run("login", "--password", "nope", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestFeedAndThreadCommands(t *testing.T) {
	h := newHarness(t)
	h.server.AddUser("alice", "alice@example.com", "pw")
	h.mustRun("register", "--password", "pw", "bob", "bob@example.com")

	assert.Contains(t, h.mustRun("subreddit", "create", "--description", "gophers", "golang"), "created r/golang (id 1)")
	h.server.SeedPosts(1, "seeded", 25)
	assert.Contains(t, h.mustRun("post", "create", "--subreddit", "1", "Hello", "world"), "created post 26")

	out := h.mustRun("feed", "--sort", "new")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 20)
	assert.Contains(t, lines[0], "[26] Hello world")

	out = h.mustRun("feed", "--sort", "new", "--pages", "3")
	assert.Contains(t, out, "-- end of feed --")
	assert.Contains(t, out, "[1] seeded 1")

	assert.Contains(t, h.mustRun("reply", "26", "first!"), "posted comment 1")
	assert.Contains(t, h.mustRun("reply", "--parent", "1", "26", "a reply"), "posted comment 2")
	assert.Contains(t, h.mustRun("vote", "comment", "26", "2", "up"), "comment 2 now has 1 votes")
	assert.Contains(t, h.mustRun("vote", "post", "26", "down"), "post 26 now has -1 votes")

	out = h.mustRun("comments", "26")
	assert.Contains(t, out, "[1] bob (0 votes)\n  first!")
	assert.Contains(t, out, "  [2] bob (1 votes)\n    a reply")
	assert.Contains(t, out, "2 of 2 comments")

	out = h.mustRun("post", "show", "26")
	assert.Contains(t, out, "Hello world\nr/golang by bob, -1 votes, 2 comments")

	assert.Contains(t, h.mustRun("post", "delete", "26"), "deleted post 26")
	_, err := h.run("post", "show", "26")
	assert.Error(t, err)
}

func TestSubredditCommands(t *testing.T) {
	h := newHarness(t)
	h.server.AddSubreddit("golang", "gophers")
	h.server.AddSubreddit("rustlang", "")
	h.mustRun("register", "--password", "pw", "bob", "bob@example.com")

	assert.Contains(t, h.mustRun("sub", "show", "golang"), "r/golang [1] 0 members\n  gophers")
	assert.Equal(t, "joined 1\n", h.mustRun("sub", "join", "1"))
	assert.Contains(t, h.mustRun("sub", "mine"), "r/golang [1] 1 members, member")
	assert.Contains(t, h.mustRun("sub", "top", "--limit", "1"), "r/golang")
	assert.Equal(t, "left 1\n", h.mustRun("sub", "leave", "1"))
	assert.Empty(t, h.mustRun("sub", "mine"))
}

func TestArgumentErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("post", "show", "abc")
	assert.EqualError(t, err, `invalid post id "abc"`)

	_, err = h.run("vote", "post", "1", "sideways")
	assert.EqualError(t, err, `unknown vote "sideways", want up, down or none`)

	_, err = h.run("comments")
	assert.EqualError(t, err, "missing post id")
}

func TestConfigCommandLayersSources(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "forumctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user_agent: from-file/1.0\ntimeout: 5s\n"), 0o600))
	t.Setenv("FORUM_TIMEOUT", "9s")

	out := h.mustRun("--config", path, "config")
	assert.Contains(t, out, "base_url: "+h.server.URL())
	assert.Contains(t, out, "user_agent: from-file/1.0")
	assert.Contains(t, out, "timeout: 9s")
	assert.Contains(t, out, "store: file")
	assert.Contains(t, out, "disabled: true")
}

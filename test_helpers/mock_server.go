package test_helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jamesprial/go-forum-client/pkg/types"
)

// APIPrefix is the path prefix the fake serves under.
const APIPrefix = "/api"

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultTopLimit = 10
)

// ForumServer is an in-memory forum API on an httptest server. It keeps
// users, tokens, posts, comments, votes and subreddits, logs every request,
// and can be told to answer a route with a canned response instead.
type ForumServer struct {
	server *httptest.Server

	mu        sync.Mutex
	log       []RequestEntry
	overrides map[string]*MockResponse
	delay     time.Duration

	accessTTL    time.Duration
	signingKey   []byte
	flatComments bool

	users    map[int64]*account
	access   map[string]int64
	refresh  map[string]int64
	posts    []*types.Post
	comments map[int64][]*types.Comment
	subs     []*community
	votes    map[voteKey]types.VoteType

	nextUser, nextPost, nextComment, nextSub int64
}

// RequestEntry records one request seen by the server.
type RequestEntry struct {
	Method       string
	Path         string
	Query        string
	Headers      http.Header
	Body         string
	Timestamp    time.Time
	ResponseCode int
}

// Route returns the entry's "METHOD /path" key without the API prefix.
func (e RequestEntry) Route() string {
	return e.Method + " " + strings.TrimPrefix(e.Path, APIPrefix)
}

// MockResponse replaces the normal handling of a route.
type MockResponse struct {
	Status  int
	Body    string
	Headers map[string]string
	Delay   time.Duration
	// MaxCalls limits how many requests the override answers. 0 = unlimited.
	MaxCalls  int
	CallCount int
}

type account struct {
	profile  types.UserProfile
	password string
}

type community struct {
	types.Subreddit
	members map[int64]bool
}

type voteKey struct {
	user   int64
	kind   string
	entity int64
}

// NewForumServer starts an empty forum.
func NewForumServer() *ForumServer {
	fs := &ForumServer{
		overrides:  make(map[string]*MockResponse),
		accessTTL:  time.Hour,
		signingKey: []byte("forum-test-signing-key"),
		users:      make(map[int64]*account),
		access:     make(map[string]int64),
		refresh:    make(map[string]int64),
		comments:   make(map[int64][]*types.Comment),
		votes:      make(map[voteKey]types.VoteType),
	}

	mux := http.NewServeMux()
	routes := map[string]http.HandlerFunc{
		"POST /auth/register":         fs.handleRegister,
		"POST /auth/login":            fs.handleLogin,
		"POST /auth/refresh":          fs.handleRefresh,
		"POST /auth/logout":           fs.handleLogout,
		"GET /auth/me":                fs.handleMe,
		"GET /posts":                  fs.handleListPosts,
		"GET /posts/{a}/{b}":          fs.handlePostSubtree,
		"GET /posts/{id}":             fs.handleGetPost,
		"POST /posts":                 fs.handleCreatePost,
		"DELETE /posts/{id}":          fs.handleDeletePost,
		"POST /posts/{id}/comments":   fs.handleCreateComment,
		"POST /votes":                 fs.handleVote,
		"GET /subreddits/top":         fs.handleTopSubreddits,
		"GET /subreddits/mine":        fs.handleMySubreddits,
		"GET /subreddits/{name}":      fs.handleGetSubreddit,
		"POST /subreddits":            fs.handleCreateSubreddit,
		"POST /subreddits/{id}/join":  fs.handleMembership(true),
		"POST /subreddits/{id}/leave": fs.handleMembership(false),
	}
	for route, h := range routes {
		method, path, _ := strings.Cut(route, " ")
		mux.HandleFunc(method+" "+APIPrefix+path, h)
	}

	fs.server = httptest.NewServer(fs.middleware(mux))
	return fs
}

// URL returns the API base URL, prefix included.
func (fs *ForumServer) URL() string {
	return fs.server.URL + APIPrefix
}

// Close shuts down the server.
func (fs *ForumServer) Close() {
	fs.server.Close()
}

// SetResponse answers route ("METHOD /path", no prefix) with response
// until its MaxCalls are used up.
func (fs *ForumServer) SetResponse(route string, response *MockResponse) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.overrides[route] = response
}

// SetupError makes route fail with status the next n times. n = 0 fails forever.
func (fs *ForumServer) SetupError(route string, status, n int) {
	body, _ := json.Marshal(types.ErrorBody{Status: status, Error: http.StatusText(status), Message: "injected failure"})
	fs.SetResponse(route, &MockResponse{Status: status, Body: string(body), MaxCalls: n})
}

// ClearResponses removes every override.
func (fs *ForumServer) ClearResponses() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.overrides = make(map[string]*MockResponse)
}

// SetDelay delays every response.
func (fs *ForumServer) SetDelay(delay time.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.delay = delay
}

// SetFlatComments makes comment listings flat with parent ids instead of nested.
func (fs *ForumServer) SetFlatComments(flat bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.flatComments = flat
}

// SetAccessTTL sets the lifetime stamped into newly issued access tokens.
func (fs *ForumServer) SetAccessTTL(ttl time.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.accessTTL = ttl
}

// ExpireAccessTokens rejects every access token issued so far. Refresh
// tokens keep working.
func (fs *ForumServer) ExpireAccessTokens() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.access = make(map[string]int64)
}

// RevokeSessions rejects every issued token, refresh tokens included.
func (fs *ForumServer) RevokeSessions() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.access = make(map[string]int64)
	fs.refresh = make(map[string]int64)
}

// GetRequestLog returns a copy of the request log.
func (fs *ForumServer) GetRequestLog() []RequestEntry {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]RequestEntry, len(fs.log))
	copy(out, fs.log)
	return out
}

// GetCallCount returns how many requests hit route ("METHOD /path").
func (fs *ForumServer) GetCallCount(route string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for _, e := range fs.log {
		if e.Route() == route {
			n++
		}
	}
	return n
}

// ClearLog empties the request log.
func (fs *ForumServer) ClearLog() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log = nil
}

// WaitForRequests waits until the server has logged at least count requests.
func (fs *ForumServer) WaitForRequests(count int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		fs.mu.Lock()
		n := len(fs.log)
		fs.mu.Unlock()
		if n >= count {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fmt.Errorf("timeout waiting for %d requests, got %d", count, len(fs.log))
}

// AssertRequestCount checks the number of requests to route.
func (fs *ForumServer) AssertRequestCount(route string, expected int) error {
	if got := fs.GetCallCount(route); got != expected {
		return fmt.Errorf("expected %d requests to %s, got %d", expected, route, got)
	}
	return nil
}

// GetLastRequest returns the most recent request to route.
func (fs *ForumServer) GetLastRequest(route string) (*RequestEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := len(fs.log) - 1; i >= 0; i-- {
		if fs.log[i].Route() == route {
			e := fs.log[i]
			return &e, nil
		}
	}
	return nil, fmt.Errorf("no requests found for %s", route)
}

// Seeding

// AddUser creates an account that can sign in with username or email.
func (fs *ForumServer) AddUser(username, email, password string) *types.UserProfile {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	acct := fs.addUser(username, email, password)
	p := acct.profile
	return &p
}

// AddSubreddit creates a community with no members.
func (fs *ForumServer) AddSubreddit(name, description string) *types.Subreddit {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	s := fs.addSubreddit(name, description, nil)
	dup := s.Subreddit
	return &dup
}

// AddMember makes userID a member of subredditID.
func (fs *ForumServer) AddMember(subredditID, userID int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if s := fs.findSubreddit(subredditID); s != nil && !s.members[userID] {
		s.members[userID] = true
		s.MemberCount++
	}
}

// AddPost creates a text post in subredditID. authorID may be 0.
func (fs *ForumServer) AddPost(subredditID, authorID int64, title string) *types.Post {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := fs.addPost(&types.CreatePostRequest{Title: title, PostType: types.PostTypeText, SubredditID: subredditID}, fs.users[authorID])
	dup := *p
	return &dup
}

// SeedPosts creates n posts titled "<prefix> 1".."<prefix> n".
func (fs *ForumServer) SeedPosts(subredditID int64, prefix string, n int) []*types.Post {
	out := make([]*types.Post, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, fs.AddPost(subredditID, 0, fmt.Sprintf("%s %d", prefix, i)))
	}
	return out
}

// AddComment creates a comment on postID, under parentID when non-nil.
func (fs *ForumServer) AddComment(postID int64, parentID *int64, content string) *types.Comment {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	c, _ := fs.addComment(postID, parentID, content, nil)
	if c == nil {
		return nil
	}
	dup := *c
	return &dup
}

// SetPostVotes overwrites a post's vote count.
func (fs *ForumServer) SetPostVotes(postID int64, count int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if p := fs.findPost(postID); p != nil {
		p.VoteCount = count
	}
}

// PostCount returns the number of stored posts.
func (fs *ForumServer) PostCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.posts)
}

// Middleware

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (fs *ForumServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		entry := RequestEntry{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Headers:   r.Header.Clone(),
			Body:      string(body),
			Timestamp: time.Now(),
		}

		fs.mu.Lock()
		delay := fs.delay
		override := fs.overrides[entry.Route()]
		if override != nil {
			if override.MaxCalls > 0 && override.CallCount >= override.MaxCalls {
				override = nil
			} else {
				override.CallCount++
				if override.Delay > delay {
					delay = override.Delay
				}
			}
		}
		fs.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if override != nil {
			for k, v := range override.Headers {
				rec.Header().Set(k, v)
			}
			if rec.Header().Get("Content-Type") == "" {
				rec.Header().Set("Content-Type", "application/json")
			}
			rec.WriteHeader(override.Status)
			_, _ = io.WriteString(rec, override.Body)
		} else if fs.rejectsBearer(r, entry.Route()) {
			writeError(rec, http.StatusUnauthorized, "invalid or expired token")
		} else {
			next.ServeHTTP(rec, r)
		}

		entry.ResponseCode = rec.status
		fs.mu.Lock()
		fs.log = append(fs.log, entry)
		fs.mu.Unlock()
	})
}

// rejectsBearer reports whether r carries a bearer token the server does
// not recognise. Credential endpoints ignore the header.
func (fs *ForumServer) rejectsBearer(r *http.Request, route string) bool {
	switch route {
	case "POST /auth/login", "POST /auth/register", "POST /auth/refresh":
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, known := fs.access[token]
	return !known
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorBody{Status: status, Error: http.StatusText(status), Message: message})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// viewer returns the signed-in account, or nil. Callers hold fs.mu.
func (fs *ForumServer) viewer(r *http.Request) *account {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil
	}
	return fs.users[fs.access[token]]
}

// Auth

func (fs *ForumServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if !readJSON(w, r, &req) {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	for _, u := range fs.users {
		if strings.EqualFold(u.profile.Username, req.Username) || strings.EqualFold(u.profile.Email, req.Email) {
			writeError(w, http.StatusConflict, "username or email already taken")
			return
		}
	}
	acct := fs.addUser(req.Username, req.Email, req.Password)
	writeJSON(w, http.StatusCreated, fs.issue(acct))
}

func (fs *ForumServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !readJSON(w, r, &req) {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, u := range fs.users {
		matches := strings.EqualFold(u.profile.Username, req.UsernameOrEmail) || strings.EqualFold(u.profile.Email, req.UsernameOrEmail)
		if matches && u.password == req.Password {
			writeJSON(w, http.StatusOK, fs.issue(u))
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "Bad credentials")
}

func (fs *ForumServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req types.RefreshRequest
	if !readJSON(w, r, &req) {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	userID, ok := fs.refresh[req.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "refresh token invalid or expired")
		return
	}
	delete(fs.refresh, req.RefreshToken)
	writeJSON(w, http.StatusOK, fs.issue(fs.users[userID]))
}

func (fs *ForumServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	acct := fs.viewer(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	for tok, id := range fs.access {
		if id == acct.profile.ID {
			delete(fs.access, tok)
		}
	}
	for tok, id := range fs.refresh {
		if id == acct.profile.ID {
			delete(fs.refresh, tok)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (fs *ForumServer) handleMe(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	acct := fs.viewer(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, acct.profile)
}

// issue mints a token pair. The access token is a signed JWT so clients
// can read its expiry.
func (fs *ForumServer) issue(acct *account) *types.Credentials {
	claims := jwt.RegisteredClaims{
		Subject:   acct.profile.Username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(fs.accessTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(fs.signingKey)
	if err != nil {
		panic(fmt.Sprintf("sign access token: %v", err))
	}
	refresh := uuid.NewString()
	fs.access[signed] = acct.profile.ID
	fs.refresh[refresh] = acct.profile.ID

	profile := acct.profile
	return &types.Credentials{AccessToken: signed, RefreshToken: refresh, TokenType: "Bearer", User: &profile}
}

func (fs *ForumServer) addUser(username, email, password string) *account {
	fs.nextUser++
	acct := &account{
		profile: types.UserProfile{
			ID:          fs.nextUser,
			Username:    username,
			Email:       email,
			DisplayName: username,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		},
		password: password,
	}
	fs.users[acct.profile.ID] = acct
	return acct
}

// Posts

// handlePostSubtree serves both /posts/subreddit/{id} and /posts/{id}/comments,
// which the mux cannot tell apart by pattern alone.
func (fs *ForumServer) handlePostSubtree(w http.ResponseWriter, r *http.Request) {
	a, b := r.PathValue("a"), r.PathValue("b")
	switch {
	case a == "subreddit":
		r.SetPathValue("id", b)
		fs.handleListPosts(w, r)
	case b == "comments":
		r.SetPathValue("id", a)
		fs.handleListComments(w, r)
	default:
		writeError(w, http.StatusNotFound, "no such resource")
	}
}

func (fs *ForumServer) handleListPosts(w http.ResponseWriter, r *http.Request) {
	var subredditID int64
	if r.PathValue("id") != "" {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		subredditID = id
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if subredditID > 0 && fs.findSubreddit(subredditID) == nil {
		writeError(w, http.StatusNotFound, "subreddit not found")
		return
	}

	var matched []*types.Post
	for _, p := range fs.posts {
		if subredditID == 0 || p.SubredditID == subredditID {
			matched = append(matched, p)
		}
	}
	sortPosts(matched, q.Get("sort"))

	viewer := fs.viewer(r)
	content := make([]types.Post, 0, size)
	for i := page * size; i < len(matched) && i < (page+1)*size; i++ {
		content = append(content, fs.postView(matched[i], viewer))
	}

	totalPages := (len(matched) + size - 1) / size
	writeJSON(w, http.StatusOK, types.Page[types.Post]{
		Content:       content,
		Number:        page,
		Size:          size,
		TotalElements: len(matched),
		TotalPages:    totalPages,
		Last:          page+1 >= totalPages,
	})
}

// sortPosts orders by id for "new", by votes for "top" and by votes then
// recency for "hot" and anything else.
func sortPosts(posts []*types.Post, key string) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		switch key {
		case "new":
			return a.ID > b.ID
		case "top":
			if a.VoteCount != b.VoteCount {
				return a.VoteCount > b.VoteCount
			}
			return a.ID < b.ID
		default:
			if a.VoteCount != b.VoteCount {
				return a.VoteCount > b.VoteCount
			}
			return a.ID > b.ID
		}
	})
}

func (fs *ForumServer) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := fs.findPost(id)
	if p == nil {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, fs.postView(p, fs.viewer(r)))
}

func (fs *ForumServer) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req types.CreatePostRequest
	if !readJSON(w, r, &req) {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	acct := fs.viewer(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if fs.findSubreddit(req.SubredditID) == nil {
		writeError(w, http.StatusNotFound, "subreddit not found")
		return
	}
	p := fs.addPost(&req, acct)
	writeJSON(w, http.StatusCreated, fs.postView(p, acct))
}

func (fs *ForumServer) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	acct := fs.viewer(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	for i, p := range fs.posts {
		if p.ID != id {
			continue
		}
		if p.AuthorID != acct.profile.ID {
			writeError(w, http.StatusForbidden, "only the author can delete a post")
			return
		}
		fs.posts = append(fs.posts[:i], fs.posts[i+1:]...)
		delete(fs.comments, id)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, http.StatusNotFound, "post not found")
}

func (fs *ForumServer) addPost(req *types.CreatePostRequest, author *account) *types.Post {
	fs.nextPost++
	p := &types.Post{
		ID:          fs.nextPost,
		Title:       req.Title,
		Content:     req.Content,
		URL:         req.URL,
		ImageURL:    req.ImageURL,
		PostType:    req.PostType,
		SubredditID: req.SubredditID,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if s := fs.findSubreddit(req.SubredditID); s != nil {
		p.SubredditName = s.Name
	}
	if author != nil {
		p.AuthorID = author.profile.ID
		p.AuthorUsername = author.profile.Username
	}
	fs.posts = append(fs.posts, p)
	return p
}

func (fs *ForumServer) findPost(id int64) *types.Post {
	for _, p := range fs.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (fs *ForumServer) postView(p *types.Post, viewer *account) types.Post {
	v := *p
	if viewer != nil {
		v.UserVote = fs.votes[voteKey{viewer.profile.ID, "POST", p.ID}]
	}
	return v
}

// Comments

func (fs *ForumServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.findPost(postID) == nil {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}

	viewer := fs.viewer(r)
	flat := make([]*types.Comment, 0, len(fs.comments[postID]))
	for _, c := range fs.comments[postID] {
		v := *c
		if viewer != nil {
			v.UserVote = fs.votes[voteKey{viewer.profile.ID, "COMMENT", c.ID}]
		}
		flat = append(flat, &v)
	}
	if fs.flatComments {
		writeJSON(w, http.StatusOK, flat)
		return
	}
	writeJSON(w, http.StatusOK, nest(flat))
}

// nest builds a forest from comments stored in creation order.
func nest(flat []*types.Comment) []*types.Comment {
	byID := make(map[int64]*types.Comment, len(flat))
	for _, c := range flat {
		c.Children = []*types.Comment{}
		byID[c.ID] = c
	}
	roots := []*types.Comment{}
	for _, c := range flat {
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Children = append(parent.Children, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	return roots
}

func (fs *ForumServer) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req types.CreateCommentRequest
	if !readJSON(w, r, &req) {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	acct := fs.viewer(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	c, status := fs.addComment(postID, req.ParentID, req.Content, acct)
	if c == nil {
		writeError(w, status, "post or parent comment not found")
		return
	}
	v := *c
	v.Children = []*types.Comment{}
	writeJSON(w, http.StatusCreated, v)
}

func (fs *ForumServer) addComment(postID int64, parentID *int64, content string, author *account) (*types.Comment, int) {
	post := fs.findPost(postID)
	if post == nil {
		return nil, http.StatusNotFound
	}
	depth := 0
	if parentID != nil {
		parent := fs.findComment(postID, *parentID)
		if parent == nil {
			return nil, http.StatusNotFound
		}
		depth = parent.Depth + 1
	}

	fs.nextComment++
	c := &types.Comment{
		ID:        fs.nextComment,
		PostID:    postID,
		Content:   content,
		Depth:     depth,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if parentID != nil {
		pid := *parentID
		c.ParentID = &pid
	}
	if author != nil {
		c.AuthorID = author.profile.ID
		c.AuthorUsername = author.profile.Username
	}
	fs.comments[postID] = append(fs.comments[postID], c)
	post.CommentCount++
	return c, http.StatusCreated
}

func (fs *ForumServer) findComment(postID, id int64) *types.Comment {
	for _, c := range fs.comments[postID] {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Votes

func (fs *ForumServer) handleVote(w http.ResponseWriter, r *http.Request) {
	var req types.VoteRequest
	if !readJSON(w, r, &req) {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	acct := fs.viewer(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !req.VoteType.Valid() || (req.PostID == nil) == (req.CommentID == nil) {
		writeError(w, http.StatusBadRequest, "exactly one of postId and commentId is required")
		return
	}

	var (
		key   voteKey
		count *int
	)
	if req.PostID != nil {
		p := fs.findPost(*req.PostID)
		if p == nil {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		key, count = voteKey{acct.profile.ID, "POST", p.ID}, &p.VoteCount
	} else {
		var c *types.Comment
		for postID := range fs.comments {
			if c = fs.findComment(postID, *req.CommentID); c != nil {
				break
			}
		}
		if c == nil {
			writeError(w, http.StatusNotFound, "comment not found")
			return
		}
		key, count = voteKey{acct.profile.ID, "COMMENT", c.ID}, &c.VoteCount
	}

	*count += int(req.VoteType) - int(fs.votes[key])
	if req.VoteType == types.VoteNone {
		delete(fs.votes, key)
	} else {
		fs.votes[key] = req.VoteType
	}
	writeJSON(w, http.StatusOK, types.VoteResult{EntityID: key.entity, EntityType: key.kind, VoteCount: *count, UserVote: req.VoteType})
}

// Subreddits

func (fs *ForumServer) handleTopSubreddits(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultTopLimit
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ranked := make([]*community, len(fs.subs))
	copy(ranked, fs.subs)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].MemberCount > ranked[j].MemberCount })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	viewer := fs.viewer(r)
	out := make([]types.Subreddit, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.view(viewer))
	}
	writeJSON(w, http.StatusOK, out)
}

func (fs *ForumServer) handleMySubreddits(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	acct := fs.viewer(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	out := []types.Subreddit{}
	for _, s := range fs.subs {
		if s.members[acct.profile.ID] {
			out = append(out, s.view(acct))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (fs *ForumServer) handleGetSubreddit(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, s := range fs.subs {
		if strings.EqualFold(s.Name, name) {
			writeJSON(w, http.StatusOK, s.view(fs.viewer(r)))
			return
		}
	}
	writeError(w, http.StatusNotFound, "subreddit not found")
}

func (fs *ForumServer) handleCreateSubreddit(w http.ResponseWriter, r *http.Request) {
	var req types.CreateSubredditRequest
	if !readJSON(w, r, &req) {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	acct := fs.viewer(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	for _, s := range fs.subs {
		if strings.EqualFold(s.Name, req.Name) {
			writeError(w, http.StatusConflict, "subreddit already exists")
			return
		}
	}
	s := fs.addSubreddit(req.Name, req.Description, acct)
	writeJSON(w, http.StatusCreated, s.view(acct))
}

func (fs *ForumServer) handleMembership(join bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		fs.mu.Lock()
		defer fs.mu.Unlock()
		acct := fs.viewer(r)
		if acct == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		s := fs.findSubreddit(id)
		if s == nil {
			writeError(w, http.StatusNotFound, "subreddit not found")
			return
		}
		if s.members[acct.profile.ID] != join {
			if join {
				s.members[acct.profile.ID] = true
				s.MemberCount++
			} else {
				delete(s.members, acct.profile.ID)
				s.MemberCount--
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (fs *ForumServer) addSubreddit(name, description string, creator *account) *community {
	fs.nextSub++
	s := &community{
		Subreddit: types.Subreddit{
			ID:          fs.nextSub,
			Name:        name,
			Description: description,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		},
		members: make(map[int64]bool),
	}
	if creator != nil {
		s.CreatorID = creator.profile.ID
		s.CreatorUsername = creator.profile.Username
		s.members[creator.profile.ID] = true
		s.MemberCount = 1
	}
	fs.subs = append(fs.subs, s)
	return s
}

func (fs *ForumServer) findSubreddit(id int64) *community {
	for _, s := range fs.subs {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (s *community) view(viewer *account) types.Subreddit {
	v := s.Subreddit
	v.IsMember = viewer != nil && s.members[viewer.profile.ID]
	return v
}

package internal

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/types"
	"github.com/jamesprial/go-forum-client/test_generators"
)

func ptr(id int64) *int64 { return &id }

func ids(comments []*types.Comment) []int64 {
	out := make([]int64, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.ID)
	}
	return out
}

func TestParser_ParsePostList(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name     string
		input    string
		wantIDs  []int64
		wantLast bool
		wantErr  bool
	}{
		{name: "page envelope", input: `{"content":[{"id":1,"title":"a"},{"id":2,"title":"b"}],"last":true}`, wantIDs: []int64{1, 2}, wantLast: true},
		{name: "bare array", input: `[{"id":3,"title":"c"}]`, wantIDs: []int64{3}},
		{name: "empty envelope", input: `{"content":[]}`, wantIDs: []int64{}},
		{name: "empty body", input: ``, wantIDs: []int64{}},
		{name: "null", input: `null`, wantIDs: []int64{}},
		{name: "scalar", input: `42`, wantErr: true},
		{name: "broken json", input: `{"content":[{"id":}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, last, err := parser.ParsePostList("GET /posts", []byte(tt.input))
			if tt.wantErr {
				var parseErr *pkgerrs.ParseError
				require.ErrorAs(t, err, &parseErr)
				assert.Equal(t, "GET /posts", parseErr.Operation)
				return
			}
			require.NoError(t, err)
			got := make([]int64, 0, len(posts))
			for _, p := range posts {
				got = append(got, p.ID)
			}
			assert.Equal(t, tt.wantIDs, got)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func TestParser_ParseSubredditList(t *testing.T) {
	subs, _, err := NewParser().ParseSubredditList("GET /subreddits/top", []byte(`[{"id":1,"name":"golang","memberCount":10}]`))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "golang", subs[0].Name)
}

func TestParser_BuildForestNestsFlatList(t *testing.T) {
	flat := []*types.Comment{
		{ID: 1},
		{ID: 2, ParentID: ptr(1)},
		{ID: 3},
		{ID: 4, ParentID: ptr(2)},
		{ID: 5, ParentID: ptr(1)},
		{ID: 6, ParentID: ptr(99)},
	}

	roots := NewParser().BuildForest(flat)

	assert.Equal(t, []int64{1, 3, 6}, ids(roots), "orphans are promoted, server order kept")
	assert.Equal(t, []int64{2, 5}, ids(roots[0].Children))
	assert.Equal(t, []int64{4}, ids(roots[0].Children[0].Children))
	assert.Empty(t, roots[1].Children)
}

func TestParser_BuildForestKeepsNestedInput(t *testing.T) {
	nested := []*types.Comment{
		{ID: 1, Children: []*types.Comment{{ID: 2, ParentID: ptr(1)}}},
		{ID: 3},
	}

	roots := NewParser().BuildForest(nested)
	assert.Equal(t, []int64{1, 3}, ids(roots))
	assert.Equal(t, []int64{2}, ids(roots[0].Children))
}

func TestParser_BuildForestSkipsNilAndSelfParent(t *testing.T) {
	roots := NewParser().BuildForest([]*types.Comment{nil, {ID: 7, ParentID: ptr(7)}})
	assert.Equal(t, []int64{7}, ids(roots))
}

func TestParser_BuildForestBreaksParentCycles(t *testing.T) {
	tests := []struct {
		name      string
		flat      []*types.Comment
		wantRoots []int64
		wantCount int
	}{
		{
			name:      "two comments naming each other",
			flat:      []*types.Comment{{ID: 1, ParentID: ptr(2)}, {ID: 2, ParentID: ptr(1)}, {ID: 3}},
			wantRoots: []int64{1, 3},
			wantCount: 3,
		},
		{
			name: "three step cycle with a hanging reply",
			flat: []*types.Comment{
				{ID: 4},
				{ID: 5, ParentID: ptr(7)},
				{ID: 6, ParentID: ptr(5)},
				{ID: 7, ParentID: ptr(6)},
				{ID: 8, ParentID: ptr(6)},
			},
			wantRoots: []int64{4, 5},
			wantCount: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roots := NewParser().BuildForest(tt.flat)
			assert.Equal(t, tt.wantRoots, ids(roots))

			tree := NewCommentTree(roots)
			assert.Equal(t, tt.wantCount, tree.Count())
			seen := make(map[int64]bool)
			tree.Walk(func(c *types.Comment) {
				assert.False(t, seen[c.ID], "comment %d visited twice", c.ID)
				seen[c.ID] = true
			})
		})
	}
}

func TestParser_BuildForestRebuildsGeneratedThreads(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		gen := test_generators.NewCommentGenerator(seed, 1)
		forest := gen.GenerateForest(test_generators.ThreadOptions{Roots: 4, MaxDepth: 5, MaxReplies: 3, MaxComments: 200})
		flat := test_generators.FlattenForest(forest)

		rebuilt := NewParser().BuildForest(flat)

		assert.Equal(t, ids(forest), ids(rebuilt), "seed %d roots", seed)
		assert.Equal(t, ids(test_generators.FlattenForest(forest)), ids(test_generators.FlattenForest(rebuilt)), "seed %d pre-order", seed)
		assert.Equal(t, test_generators.CountComments(forest), test_generators.CountComments(rebuilt))
		assert.Equal(t, test_generators.MaxDepth(forest), NewCommentTree(rebuilt).GetDepth())
	}
}

func TestParser_ParseCommentForest(t *testing.T) {
	raw := `[{"id":10,"postId":1,"content":"a","children":[]},{"id":11,"parentId":10,"postId":1,"content":"b","children":[]}]`

	forest, err := NewParser().ParseCommentForest("GET /posts/1/comments", []byte(raw))
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, []int64{11}, ids(forest[0].Children))
}

func TestDecodeErrorBody(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  string
		wantMsg   string
		wantExtra bool
	}{
		{"spring envelope", http.StatusBadRequest, `{"status":400,"error":"Bad Request","message":"title required","errors":{"title":"must not be blank"}}`, "Bad Request", "title required", true},
		{"message only", http.StatusNotFound, `{"message":"Post not found"}`, "", "Post not found", false},
		{"plain text", http.StatusForbidden, "forbidden\n", "", "forbidden", false},
		{"empty", http.StatusServiceUnavailable, "", "", "Service Unavailable", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := decodeErrorBody(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.wantExtra, apiErr.Details != nil)
		})
	}
}

func TestDecodeInto(t *testing.T) {
	var post types.Post
	require.NoError(t, decodeInto("op", []byte(`{"id":4,"title":"x","userVote":-1}`), &post))
	assert.Equal(t, types.VoteDown, post.UserVote)

	require.NoError(t, decodeInto("op", nil, &post), "empty bodies are ignored")
	require.NoError(t, decodeInto("op", []byte(`garbage`), nil), "nil target ignores the body")

	err := decodeInto("op", []byte(`{"userVote":7}`), &post)
	var parseErr *pkgerrs.ParseError
	require.ErrorAs(t, err, &parseErr)
}

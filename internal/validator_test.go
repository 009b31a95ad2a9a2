package internal

import (
	"errors"
	"strings"
	"testing"

	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/types"
)

func expectConfigError(t *testing.T, err error, field string) {
	t.Helper()
	if field == "" {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return
	}
	var cfgErr *pkgerrs.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for %s, got %v", field, err)
	}
	if cfgErr.Field != field {
		t.Fatalf("expected field %q, got %q (%v)", field, cfgErr.Field, err)
	}
}

func TestValidator_ValidateLogin(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name       string
		identifier string
		secret     string
		wantField  string
	}{
		{"valid", "alice", "hunter2", ""},
		{"blank identifier", "   ", "hunter2", "usernameOrEmail"},
		{"empty password", "alice", "", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectConfigError(t, v.ValidateLogin(tt.identifier, tt.secret), tt.wantField)
		})
	}
}

func TestValidator_ValidateRegister(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name      string
		req       *types.RegisterRequest
		wantField string
	}{
		{"valid", &types.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw"}, ""},
		{"nil", nil, "register"},
		{"missing username", &types.RegisterRequest{Email: "a@example.com", Password: "pw"}, "username"},
		{"whitespace username", &types.RegisterRequest{Username: "al ice", Email: "a@example.com", Password: "pw"}, "username"},
		{"bad email", &types.RegisterRequest{Username: "alice", Email: "not-an-email", Password: "pw"}, "email"},
		{"missing password", &types.RegisterRequest{Username: "alice", Email: "a@example.com"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectConfigError(t, v.ValidateRegister(tt.req), tt.wantField)
		})
	}
}

func TestValidator_ValidateCreatePost(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name      string
		req       *types.CreatePostRequest
		wantField string
	}{
		{"text post", &types.CreatePostRequest{Title: "Hello", PostType: types.PostTypeText, SubredditID: 1}, ""},
		{"link post", &types.CreatePostRequest{Title: "Go 1.25", PostType: types.PostTypeLink, URL: "https://go.dev", SubredditID: 1}, ""},
		{"nil", nil, "post"},
		{"blank title", &types.CreatePostRequest{Title: " ", PostType: types.PostTypeText, SubredditID: 1}, "title"},
		{"long title", &types.CreatePostRequest{Title: strings.Repeat("x", 301), PostType: types.PostTypeText, SubredditID: 1}, "title"},
		{"missing type", &types.CreatePostRequest{Title: "t", SubredditID: 1}, "postType"},
		{"unknown type", &types.CreatePostRequest{Title: "t", PostType: "POLL", SubredditID: 1}, "postType"},
		{"link without url", &types.CreatePostRequest{Title: "t", PostType: types.PostTypeLink, SubredditID: 1}, "url"},
		{"missing subreddit", &types.CreatePostRequest{Title: "t", PostType: types.PostTypeText}, "subredditId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectConfigError(t, v.ValidateCreatePost(tt.req), tt.wantField)
		})
	}
}

func TestValidator_ValidateSubredditName(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "golang", false},
		{"underscores allowed", "go_lang_", false},
		{"fifty chars", strings.Repeat("a", 50), false},
		{"empty", "", true},
		{"too short", "go", true},
		{"too long", strings.Repeat("a", 51), true},
		{"invalid character", "go-lang", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSubredditName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSubredditName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidator_SmallChecks(t *testing.T) {
	v := NewValidator()

	expectConfigError(t, v.ValidateID("postId", 1), "")
	expectConfigError(t, v.ValidateID("postId", 0), "postId")
	expectConfigError(t, v.ValidateCommentContent("nice"), "")
	expectConfigError(t, v.ValidateCommentContent("\n\t"), "content")
	expectConfigError(t, v.ValidateVoteType(types.VoteDown), "")
	expectConfigError(t, v.ValidateVoteType(types.VoteType(2)), "voteType")
	expectConfigError(t, v.ValidateSubredditDescription(strings.Repeat("d", 500)), "")
	expectConfigError(t, v.ValidateSubredditDescription(strings.Repeat("d", 501)), "description")
}

func TestValidator_ValidateUserAgent(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateUserAgent("go-forum-client/0.1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, ua := range []string{"", "bad\r\nX-Injected: 1", strings.Repeat("u", 257)} {
		if err := v.ValidateUserAgent(ua); err == nil {
			t.Errorf("expected error for %q", ua)
		}
	}
}

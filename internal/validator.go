package internal

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/types"
)

const (
	// Subreddit name constraints
	minSubredditLength = 3
	maxSubredditLength = 50

	maxSubredditDescriptionLength = 500

	// Post title constraints
	maxPostTitleLength = 300

	// User agent constraints
	maxUserAgentLength = 256
)

// Validator checks operation arguments before a request is issued.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogin checks login arguments.
func (v *Validator) ValidateLogin(identifier, secret string) error {
	if strings.TrimSpace(identifier) == "" {
		return &pkgerrs.ConfigError{Field: "usernameOrEmail", Message: "username or email is required"}
	}
	if secret == "" {
		return &pkgerrs.ConfigError{Field: "password", Message: "password is required"}
	}
	return nil
}

// ValidateRegister checks registration arguments.
func (v *Validator) ValidateRegister(req *types.RegisterRequest) error {
	if req == nil {
		return &pkgerrs.ConfigError{Field: "register", Message: "registration request cannot be nil"}
	}
	if strings.TrimSpace(req.Username) == "" {
		return &pkgerrs.ConfigError{Field: "username", Message: "username is required"}
	}
	if strings.ContainsAny(req.Username, " \t\r\n") {
		return &pkgerrs.ConfigError{Field: "username", Message: "username cannot contain whitespace"}
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return &pkgerrs.ConfigError{Field: "email", Message: fmt.Sprintf("invalid email address %q", req.Email)}
	}
	if req.Password == "" {
		return &pkgerrs.ConfigError{Field: "password", Message: "password is required"}
	}
	return nil
}

// ValidateID checks that an entity id is positive.
func (v *Validator) ValidateID(field string, id int64) error {
	if id <= 0 {
		return &pkgerrs.ConfigError{Field: field, Message: fmt.Sprintf("id must be positive, got %d", id)}
	}
	return nil
}

// ValidateCommentContent rejects blank comment bodies.
func (v *Validator) ValidateCommentContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &pkgerrs.ConfigError{Field: "content", Message: "comment content is required"}
	}
	return nil
}

// ValidateVoteType rejects values other than up, down and none.
func (v *Validator) ValidateVoteType(vote types.VoteType) error {
	if !vote.Valid() {
		return &pkgerrs.ConfigError{Field: "voteType", Message: fmt.Sprintf("unsupported vote type %d", int(vote))}
	}
	return nil
}

// ValidateCreatePost checks a new post before submission.
func (v *Validator) ValidateCreatePost(req *types.CreatePostRequest) error {
	if req == nil {
		return &pkgerrs.ConfigError{Field: "post", Message: "post request cannot be nil"}
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return &pkgerrs.ConfigError{Field: "title", Message: "title is required"}
	}
	if utf8.RuneCountInString(title) > maxPostTitleLength {
		return &pkgerrs.ConfigError{Field: "title", Message: fmt.Sprintf("title cannot exceed %d characters", maxPostTitleLength)}
	}
	switch req.PostType {
	case types.PostTypeText, types.PostTypeLink, types.PostTypeImage:
	case "":
		return &pkgerrs.ConfigError{Field: "postType", Message: "post type is required"}
	default:
		return &pkgerrs.ConfigError{Field: "postType", Message: fmt.Sprintf("unknown post type %q", req.PostType)}
	}
	if req.PostType == types.PostTypeLink && req.URL == "" {
		return &pkgerrs.ConfigError{Field: "url", Message: "link posts require a url"}
	}
	return v.ValidateID("subredditId", req.SubredditID)
}

// ValidateSubredditName checks if a subreddit name is acceptable to the server.
func (v *Validator) ValidateSubredditName(name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot be empty"}
	}
	if len(name) < minSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name must be at least %d characters", minSubredditLength)}
	}
	if len(name) > maxSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name cannot exceed %d characters", maxSubredditLength)}
	}
	for i, ch := range name {
		if !(ch >= 'a' && ch <= 'z') && !(ch >= 'A' && ch <= 'Z') && !(ch >= '0' && ch <= '9') && ch != '_' {
			return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name contains invalid character '%c' at position %d", ch, i)}
		}
	}
	return nil
}

// ValidateSubredditDescription enforces the description length limit.
func (v *Validator) ValidateSubredditDescription(description string) error {
	if utf8.RuneCountInString(description) > maxSubredditDescriptionLength {
		return &pkgerrs.ConfigError{Field: "description", Message: fmt.Sprintf("description cannot exceed %d characters", maxSubredditDescriptionLength)}
	}
	return nil
}

// ValidateUserAgent validates the User-Agent string to prevent header injection attacks.
func (v *Validator) ValidateUserAgent(ua string) error {
	if len(ua) == 0 {
		return fmt.Errorf("user agent cannot be empty")
	}

	if strings.ContainsAny(ua, "\r\n") {
		return fmt.Errorf("user agent cannot contain newline characters")
	}

	if len(ua) > maxUserAgentLength {
		return fmt.Errorf("user agent too long (max %d characters)", maxUserAgentLength)
	}

	return nil
}

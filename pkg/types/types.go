package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Identifiable is implemented by every server entity with a numeric id.
type Identifiable interface {
	GetID() int64
}

// VoteType is the caller's vote on a post or comment. It travels on the
// wire as 1, -1 or 0.
type VoteType int

const (
	VoteNone VoteType = 0
	VoteUp   VoteType = 1
	VoteDown VoteType = -1
)

// String returns "up", "down" or "none".
func (v VoteType) String() string {
	switch v {
	case VoteUp:
		return "up"
	case VoteDown:
		return "down"
	case VoteNone:
		return "none"
	}
	return fmt.Sprintf("VoteType(%d)", int(v))
}

// Valid reports whether v is one of the three known vote values.
func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown || v == VoteNone
}

// ParseVoteType accepts "up", "down", "none" and their numeric forms.
func ParseVoteType(s string) (VoteType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "1", "+1":
		return VoteUp, nil
	case "down", "-1":
		return VoteDown, nil
	case "none", "0", "":
		return VoteNone, nil
	}
	return VoteNone, fmt.Errorf("unrecognized vote type %q", s)
}

// UnmarshalJSON accepts an integer or null. Null means no vote.
func (v *VoteType) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*v = VoteNone
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("unrecognized type for vote field: %s", s)
	}
	vt := VoteType(n)
	if !vt.Valid() {
		return fmt.Errorf("vote value out of range: %d", n)
	}
	*v = vt
	return nil
}

// UserProfile is the cached account record. It is replaced as a whole,
// never mutated field by field.
type UserProfile struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Bio         string `json:"bio,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	BannerURL   string `json:"bannerUrl,omitempty"`
	Karma       int    `json:"karma"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// Credentials is the authenticated session: a token pair and the cached profile.
type Credentials struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType,omitempty"`
	User         *UserProfile `json:"user,omitempty"`
}

// Valid reports whether both tokens are present.
func (c *Credentials) Valid() bool {
	return c != nil && c.AccessToken != "" && c.RefreshToken != ""
}

// Post is a single submission in a feed.
type Post struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Content         string   `json:"content,omitempty"`
	URL             string   `json:"url,omitempty"`
	ImageURL        string   `json:"imageUrl,omitempty"`
	PostType        PostType `json:"postType"`
	VoteCount       int      `json:"voteCount"`
	CommentCount    int      `json:"commentCount"`
	IsLocked        bool     `json:"isLocked"`
	SubredditName   string   `json:"subredditName"`
	SubredditID     int64    `json:"subredditId"`
	AuthorUsername  string   `json:"authorUsername"`
	AuthorID        int64    `json:"authorId"`
	AuthorAvatarURL string   `json:"authorAvatarUrl,omitempty"`
	UserVote        VoteType `json:"userVote"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
}

// GetID returns the post id.
func (p *Post) GetID() int64 { return p.ID }

// PostType distinguishes text, link and image submissions.
type PostType string

const (
	PostTypeText  PostType = "TEXT"
	PostTypeLink  PostType = "LINK"
	PostTypeImage PostType = "IMAGE"
)

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content,omitempty"`
	URL         string   `json:"url,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	PostType    PostType `json:"postType"`
	SubredditID int64    `json:"subredditId"`
}

// Comment is a node of a post's comment forest. Children are ordered
// newest first.
type Comment struct {
	ID              int64      `json:"id"`
	ParentID        *int64     `json:"parentId,omitempty"`
	PostID          int64      `json:"postId"`
	Content         string     `json:"content"`
	VoteCount       int        `json:"voteCount"`
	UserVote        VoteType   `json:"userVote"`
	Depth           int        `json:"depth"`
	AuthorUsername  string     `json:"authorUsername"`
	AuthorID        int64      `json:"authorId"`
	AuthorAvatarURL string     `json:"authorAvatarUrl,omitempty"`
	CreatedAt       string     `json:"createdAt,omitempty"`
	UpdatedAt       string     `json:"updatedAt,omitempty"`
	Children        []*Comment `json:"children"`
}

// GetID returns the comment id.
func (c *Comment) GetID() int64 { return c.ID }

// IsRoot reports whether the comment has no parent.
func (c *Comment) IsRoot() bool { return c.ParentID == nil }

// CreateCommentRequest is the body of POST /posts/:id/comments.
type CreateCommentRequest struct {
	Content  string `json:"content"`
	ParentID *int64 `json:"parentId,omitempty"`
}

// VoteRequest is the body of POST /votes. Exactly one of PostID and
// CommentID is set.
type VoteRequest struct {
	PostID    *int64   `json:"postId,omitempty"`
	CommentID *int64   `json:"commentId,omitempty"`
	VoteType  VoteType `json:"voteType"`
}

// VoteResult is the server's view of an entity after a vote.
type VoteResult struct {
	EntityID   int64    `json:"entityId"`
	EntityType string   `json:"entityType"`
	VoteCount  int      `json:"voteCount"`
	UserVote   VoteType `json:"userVote"`
}

// Subreddit is a community.
type Subreddit struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	BannerURL       string `json:"bannerUrl,omitempty"`
	IconURL         string `json:"iconUrl,omitempty"`
	MemberCount     int    `json:"memberCount"`
	CreatorUsername string `json:"creatorUsername,omitempty"`
	CreatorID       int64  `json:"creatorId,omitempty"`
	IsMember        bool   `json:"isMember"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

// GetID returns the subreddit id.
func (s *Subreddit) GetID() int64 { return s.ID }

// CreateSubredditRequest is the body of POST /subreddits.
type CreateSubredditRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Page is the paginated envelope returned by listing endpoints.
// Only Content is guaranteed to be present.
type Page[T any] struct {
	Content       []T  `json:"content"`
	Number        int  `json:"number"`
	Size          int  `json:"size"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	Last          bool `json:"last"`
}

// PageQuery is the query string of paginated listing requests.
type PageQuery struct {
	Sort string `url:"sort,omitempty"`
	Page int    `url:"page"`
	Size int    `url:"size"`
}

// LimitQuery is the query string of endpoints that take a bare limit.
type LimitQuery struct {
	Limit int `url:"limit,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ErrorBody is the JSON error envelope the API returns with non-2xx responses.
type ErrorBody struct {
	Status  int             `json:"status"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

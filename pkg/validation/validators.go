// Package validation checks the shape of objects returned by the forum API
// before they enter client state.
package validation

import (
	"fmt"
	"strings"

	"github.com/jamesprial/go-forum-client/pkg/types"
)

// ValidateCredentials checks that a login, registration or renewal response
// carries a complete token pair.
func ValidateCredentials(c *types.Credentials) error {
	if c == nil {
		return fmt.Errorf("credentials are nil")
	}

	var errs []error
	if c.AccessToken == "" {
		errs = append(errs, fmt.Errorf("AccessToken is required"))
	}
	if c.RefreshToken == "" {
		errs = append(errs, fmt.Errorf("RefreshToken is required"))
	}
	if c.TokenType != "" && !strings.EqualFold(c.TokenType, "Bearer") {
		errs = append(errs, fmt.Errorf("TokenType %q is not supported", c.TokenType))
	}
	if c.User != nil {
		if err := ValidateUserProfile(c.User); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("credentials validation failed: %w", joinValidationErrors(errs))
	}
	return nil
}

// ValidateUserProfile validates a UserProfile's identifying fields.
func ValidateUserProfile(u *types.UserProfile) error {
	if u == nil {
		return fmt.Errorf("user profile is nil")
	}

	var errs []error
	if u.ID <= 0 {
		errs = append(errs, fmt.Errorf("ID must be positive, got %d", u.ID))
	}
	if u.Username == "" {
		errs = append(errs, fmt.Errorf("Username is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("user profile validation failed: %w", joinValidationErrors(errs))
	}
	return nil
}

// ValidatePost validates a Post struct's fields
func ValidatePost(p *types.Post) error {
	if p == nil {
		return fmt.Errorf("post is nil")
	}

	var errs []error
	if p.ID <= 0 {
		errs = append(errs, fmt.Errorf("ID must be positive, got %d", p.ID))
	}
	if p.Title == "" {
		errs = append(errs, fmt.Errorf("Title is required"))
	}
	if !p.UserVote.Valid() {
		errs = append(errs, fmt.Errorf("UserVote out of range: %d", int(p.UserVote)))
	}
	if p.CommentCount < 0 {
		errs = append(errs, fmt.Errorf("CommentCount cannot be negative, got %d", p.CommentCount))
	}

	if len(errs) > 0 {
		return fmt.Errorf("post validation failed: %w", joinValidationErrors(errs))
	}
	return nil
}

// ValidateComment validates a comment and, recursively, its children.
// Every child must either omit ParentID or name its enclosing comment.
func ValidateComment(c *types.Comment) error {
	return validateComment(c, nil)
}

func validateComment(c *types.Comment, parent *types.Comment) error {
	if c == nil {
		return fmt.Errorf("comment is nil")
	}

	var errs []error
	if c.ID <= 0 {
		errs = append(errs, fmt.Errorf("ID must be positive, got %d", c.ID))
	}
	if !c.UserVote.Valid() {
		errs = append(errs, fmt.Errorf("UserVote out of range: %d", int(c.UserVote)))
	}
	if parent != nil && c.ParentID != nil && *c.ParentID != parent.ID {
		errs = append(errs, fmt.Errorf("ParentID %d does not match enclosing comment %d", *c.ParentID, parent.ID))
	}
	if len(errs) > 0 {
		return fmt.Errorf("comment %d validation failed: %w", c.ID, joinValidationErrors(errs))
	}

	for _, child := range c.Children {
		if err := validateComment(child, c); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSubreddit validates a Subreddit's identifying fields.
func ValidateSubreddit(s *types.Subreddit) error {
	if s == nil {
		return fmt.Errorf("subreddit is nil")
	}

	var errs []error
	if s.ID <= 0 {
		errs = append(errs, fmt.Errorf("ID must be positive, got %d", s.ID))
	}
	if s.Name == "" {
		errs = append(errs, fmt.Errorf("Name is required"))
	}
	if s.MemberCount < 0 {
		errs = append(errs, fmt.Errorf("MemberCount cannot be negative, got %d", s.MemberCount))
	}

	if len(errs) > 0 {
		return fmt.Errorf("subreddit validation failed: %w", joinValidationErrors(errs))
	}
	return nil
}

// ValidateVoteResult checks a vote response.
func ValidateVoteResult(r *types.VoteResult) error {
	if r == nil {
		return fmt.Errorf("vote result is nil")
	}
	if !r.UserVote.Valid() {
		return fmt.Errorf("vote result validation failed: UserVote out of range: %d", int(r.UserVote))
	}
	return nil
}

// joinValidationErrors combines multiple errors into a single error message
func joinValidationErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

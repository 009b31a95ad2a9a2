package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/types"
)

// Parser handles decoding of forum API responses.
type Parser struct{}

// NewParser creates a new parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ParsePostList decodes a post listing. The server returns either a bare
// array or a page envelope depending on the endpoint.
func (p *Parser) ParsePostList(op string, raw []byte) ([]*types.Post, bool, error) {
	return parseList[*types.Post](op, raw)
}

// ParseSubredditList decodes a subreddit listing in either shape.
func (p *Parser) ParseSubredditList(op string, raw []byte) ([]*types.Subreddit, bool, error) {
	return parseList[*types.Subreddit](op, raw)
}

// ParseCommentForest decodes a post's comments and returns them as a forest.
// A nested response is returned as is. A flat response is nested by ParentID.
func (p *Parser) ParseCommentForest(op string, raw []byte) ([]*types.Comment, error) {
	comments, _, err := parseList[*types.Comment](op, raw)
	if err != nil {
		return nil, err
	}
	return p.BuildForest(comments), nil
}

// BuildForest nests a flat comment list by ParentID, keeping server order
// among siblings. Comments whose parent is absent are promoted to roots, as
// is the first comment of each parent cycle. Input that already carries
// children is treated as nested.
func (p *Parser) BuildForest(comments []*types.Comment) []*types.Comment {
	comments = compact(comments)

	for _, c := range comments {
		if len(c.Children) > 0 {
			return comments
		}
	}

	byID := make(map[int64]*types.Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}

	parents := make(map[*types.Comment]*types.Comment, len(comments))
	isRoot := make(map[*types.Comment]bool)
	for _, c := range comments {
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok && parent != c {
				parent.Children = append(parent.Children, c)
				parents[c] = parent
				continue
			}
		}
		isRoot[c] = true
	}

	reached := make(map[*types.Comment]bool, len(comments))
	for _, c := range comments {
		if isRoot[c] {
			markReached(c, reached)
		}
	}
	for _, c := range comments {
		if reached[c] {
			continue
		}
		// c sits on a parent cycle; cut it loose from its parent.
		parent := parents[c]
		parent.Children = slices.DeleteFunc(parent.Children, func(x *types.Comment) bool { return x == c })
		isRoot[c] = true
		markReached(c, reached)
	}

	roots := make([]*types.Comment, 0, len(isRoot))
	for _, c := range comments {
		if isRoot[c] {
			roots = append(roots, c)
		}
	}
	return roots
}

func markReached(c *types.Comment, reached map[*types.Comment]bool) {
	if reached[c] {
		return
	}
	reached[c] = true
	for _, child := range c.Children {
		markReached(child, reached)
	}
}

func compact(comments []*types.Comment) []*types.Comment {
	out := comments[:0:0]
	for _, c := range comments {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// parseList accepts `[...]` or `{"content": [...], "last": bool}`.
// last is reported only for the envelope form.
func parseList[T any](op string, raw []byte) ([]T, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, false, &pkgerrs.ParseError{Operation: op, Message: "failed to decode list", Err: err}
		}
		return items, false, nil
	case '{':
		var page types.Page[T]
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, false, &pkgerrs.ParseError{Operation: op, Message: "failed to decode page", Err: err}
		}
		return page.Content, page.Last, nil
	}
	return nil, false, &pkgerrs.ParseError{Operation: op, Message: fmt.Sprintf("unexpected list payload starting with %q", trimmed[0])}
}

// decodeInto unmarshals a 2xx body into v. Empty bodies and a nil v are ignored.
func decodeInto(op string, body []byte, v any) error {
	if v == nil {
		return nil
	}
	if raw, ok := v.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &pkgerrs.ParseError{Operation: op, Message: "failed to decode response", Err: err}
	}
	return nil
}

// decodeErrorBody maps a non-2xx response to an APIError, using the JSON
// error envelope when the server sent one.
func decodeErrorBody(status int, body []byte) *pkgerrs.APIError {
	apiErr := &pkgerrs.APIError{StatusCode: status}

	var envelope types.ErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.ErrorCode = envelope.Error
		apiErr.Message = envelope.Message
		if len(envelope.Errors) > 0 {
			var details any
			if json.Unmarshal(envelope.Errors, &details) == nil {
				apiErr.Details = details
			}
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

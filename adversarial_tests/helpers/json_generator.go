package helpers

import (
	"fmt"
	"strings"
)

// JSONGenerator creates malformed and extreme forum payloads.
type JSONGenerator struct{}

// NewJSONGenerator creates a new JSON generator
func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{}
}

// GenerateDeeplyNestedComments returns a nested comments response with a
// single chain of depth+1 comments, ids 1..depth+1.
func (g *JSONGenerator) GenerateDeeplyNestedComments(postID int64, depth int) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i <= depth; i++ {
		id := i + 1
		if i > 0 {
			sb.WriteString(`,"children":[`)
		}
		fmt.Fprintf(&sb, `{"id":%d,"postId":%d,"content":"depth %d","depth":%d`, id, postID, i, i)
		if i > 0 {
			fmt.Fprintf(&sb, `,"parentId":%d`, id-1)
		}
	}
	sb.WriteString(`,"children":[]`)
	for i := 0; i <= depth; i++ {
		sb.WriteString("}")
		if i < depth {
			sb.WriteString("]")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// GenerateMalformedPages returns post page bodies a client must refuse.
func (g *JSONGenerator) GenerateMalformedPages() map[string]string {
	return map[string]string{
		"truncated":         `{"content":[{"id":1,"title":"a"`,
		"string content":    `{"content":"posts"}`,
		"scalar":            `42`,
		"string id":         `{"content":[{"id":"one","title":"a"}]}`,
		"missing id":        `{"content":[{"title":"a"}]}`,
		"negative id":       `{"content":[{"id":-4,"title":"a"}]}`,
		"blank title":       `{"content":[{"id":1,"title":""}]}`,
		"vote out of range": `{"content":[{"id":1,"title":"a","userVote":7}]}`,
		"negative comments": `{"content":[{"id":1,"title":"a","commentCount":-1}]}`,
		"null entry":        `{"content":[null,{"id":"x"}]}`,
	}
}

// GenerateMalformedCredentials returns auth responses a client must refuse.
func (g *JSONGenerator) GenerateMalformedCredentials() map[string]string {
	return map[string]string{
		"empty object":    `{}`,
		"missing refresh": `{"accessToken":"abc","tokenType":"Bearer"}`,
		"missing access":  `{"refreshToken":"abc","tokenType":"Bearer"}`,
		"wrong types":     `{"accessToken":1,"refreshToken":2}`,
		"not json":        `<html>bad gateway</html>`,
	}
}

// Package test_generators builds pseudo-random comment threads for tree and
// parser tests. Output is deterministic for a given seed.
package test_generators

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jamesprial/go-forum-client/pkg/types"
)

// CommentGenerator generates comment forests for one post.
type CommentGenerator struct {
	rand   *rand.Rand
	postID int64
	nextID int64
	users  []string
	lines  []string
}

// ThreadOptions shapes a generated forest.
type ThreadOptions struct {
	Roots      int
	MaxDepth   int
	MaxReplies int
	// MaxComments caps the total; 0 means no cap.
	MaxComments int
}

// NewCommentGenerator creates a generator for postID. A zero seed uses the clock.
func NewCommentGenerator(seed, postID int64) *CommentGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &CommentGenerator{
		rand:   rand.New(rand.NewSource(seed)),
		postID: postID,
		users: []string{
			"thoughtful_commenter", "expert_analyst", "casual_observer", "debate_enthusiast",
			"helpful_explainer", "skeptic_user", "supportive_member", "critical_thinker",
		},
		lines: []string{
			"I completely agree.",
			"Actually, that is not entirely accurate.",
			"Great point! I've had a similar experience.",
			"Can someone elaborate on this?",
			"I respectfully disagree.",
			"Thanks for explaining!",
		},
	}
}

// GenerateComment creates a root comment with the next id.
func (cg *CommentGenerator) GenerateComment() *types.Comment {
	cg.nextID++
	author := cg.rand.Intn(len(cg.users))
	return &types.Comment{
		ID:             cg.nextID,
		PostID:         cg.postID,
		Content:        cg.lines[cg.rand.Intn(len(cg.lines))],
		VoteCount:      cg.rand.Intn(41) - 10,
		AuthorUsername: cg.users[author],
		AuthorID:       int64(author + 1),
		CreatedAt:      time.Unix(1700000000+cg.nextID*60, 0).UTC().Format(time.RFC3339),
		Children:       []*types.Comment{},
	}
}

// GenerateForest creates a nested forest. Ids increase in pre-order, and
// ParentID and Depth agree with the nesting.
func (cg *CommentGenerator) GenerateForest(opts ThreadOptions) []*types.Comment {
	if opts.MaxReplies <= 0 {
		opts.MaxReplies = 3
	}
	budget := opts.MaxComments
	if budget <= 0 {
		budget = -1
	}

	roots := make([]*types.Comment, 0, opts.Roots)
	for i := 0; i < opts.Roots && budget != 0; i++ {
		root := cg.GenerateComment()
		budget--
		cg.addReplies(root, opts, &budget)
		roots = append(roots, root)
	}
	return roots
}

func (cg *CommentGenerator) addReplies(parent *types.Comment, opts ThreadOptions, budget *int) {
	if parent.Depth >= opts.MaxDepth {
		return
	}
	n := cg.rand.Intn(opts.MaxReplies + 1)
	for i := 0; i < n && *budget != 0; i++ {
		reply := cg.GenerateComment()
		*budget--
		pid := parent.ID
		reply.ParentID = &pid
		reply.Depth = parent.Depth + 1
		reply.Content = fmt.Sprintf("re #%d: %s", pid, reply.Content)
		parent.Children = append(parent.Children, reply)
		cg.addReplies(reply, opts, budget)
	}
}

// FlattenForest returns copies of every comment in pre-order with Children
// cleared, the shape a flat comments endpoint returns.
func FlattenForest(comments []*types.Comment) []*types.Comment {
	var flat []*types.Comment
	var walk func([]*types.Comment)
	walk = func(level []*types.Comment) {
		for _, c := range level {
			dup := *c
			dup.Children = nil
			flat = append(flat, &dup)
			walk(c.Children)
		}
	}
	walk(comments)
	return flat
}

// CountComments counts every comment in a forest.
func CountComments(comments []*types.Comment) int {
	n := len(comments)
	for _, c := range comments {
		n += CountComments(c.Children)
	}
	return n
}

// MaxDepth returns the deepest reply level; roots only is 0.
func MaxDepth(comments []*types.Comment) int {
	deepest := 0
	for _, c := range comments {
		deepest = max(deepest, c.Depth, MaxDepth(c.Children))
	}
	return deepest
}

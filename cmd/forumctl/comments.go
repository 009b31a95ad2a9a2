package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	forum "github.com/jamesprial/go-forum-client"
	"github.com/jamesprial/go-forum-client/pkg/types"
)

var cmdComments = &cli.Command{
	Name:      "comments",
	Usage:     "print the comment thread of a post",
	ArgsUsage: "<post-id>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "depth", Usage: "deepest reply level to print; 0 prints all"},
		&cli.StringFlag{Name: "author", Usage: "only comments by this user, with their replies"},
	},
	Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
		postID, err := int64Arg(cctx, 0, "post id")
		if err != nil {
			return err
		}
		thread := c.NewThread()
		if err := thread.Load(cctx.Context, postID); err != nil {
			return err
		}

		opts := &forum.CommentIteratorOptions{DepthFirst: true, MaxDepth: cctx.Int("depth")}
		if author := cctx.String("author"); author != "" {
			opts.FilterFunc = func(cm *types.Comment) bool {
				return strings.EqualFold(cm.AuthorUsername, author)
			}
		}

		w := cctx.App.Writer
		it := forum.NewCommentIterator(thread.Comments(), opts)
		n := 0
		for it.HasNext() {
			cm, level, err := it.Next()
			if err != nil {
				break
			}
			printComment(w, cm, level)
			n++
		}
		fmt.Fprintf(w, "%d of %d comments\n", n, thread.Count())
		return nil
	}),
}

var cmdReply = &cli.Command{
	Name:      "reply",
	Usage:     "comment on a post, or reply to a comment with --parent",
	ArgsUsage: "<post-id> <text...>",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "parent", Usage: "comment id to reply to"},
	},
	Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
		postID, err := int64Arg(cctx, 0, "post id")
		if err != nil {
			return err
		}
		text := strings.Join(cctx.Args().Tail(), " ")

		thread := c.NewThread()
		if err := thread.Load(cctx.Context, postID); err != nil {
			return err
		}
		var parent *int64
		if cctx.IsSet("parent") {
			id := cctx.Int64("parent")
			parent = &id
		}

		created, err := thread.AddComment(cctx.Context, text, parent)
		if created == nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "posted comment %d\n", created.ID)
		return err
	}),
}

func printComments(w io.Writer, roots []*types.Comment, maxDepth int) {
	it := forum.NewCommentIterator(roots, &forum.CommentIteratorOptions{DepthFirst: true, MaxDepth: maxDepth})
	for it.HasNext() {
		cm, level, err := it.Next()
		if err != nil {
			return
		}
		printComment(w, cm, level)
	}
}

func printComment(w io.Writer, cm *types.Comment, level int) {
	indent := strings.Repeat("  ", level)
	fmt.Fprintf(w, "%s[%d] %s (%d votes)\n", indent, cm.ID, cm.AuthorUsername, cm.VoteCount)
	for _, line := range strings.Split(cm.Content, "\n") {
		fmt.Fprintf(w, "%s  %s\n", indent, line)
	}
}

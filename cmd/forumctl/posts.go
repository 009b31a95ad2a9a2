package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	forum "github.com/jamesprial/go-forum-client"
	"github.com/jamesprial/go-forum-client/pkg/types"
)

var cmdFeed = &cli.Command{
	Name:  "feed",
	Usage: "list posts from the home feed or one subreddit",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "sort", Value: forum.SortHot, Usage: "hot, new or top"},
		&cli.Int64Flag{Name: "subreddit", Usage: "subreddit id; omit for the home feed"},
		&cli.IntFlag{Name: "pages", Value: 1, Usage: "number of pages to load"},
	},
	Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
		var feed *forum.Feed
		if id := cctx.Int64("subreddit"); id != 0 {
			var err error
			if feed, err = c.SubredditFeed(id); err != nil {
				return err
			}
		} else {
			feed = c.HomeFeed()
		}
		defer feed.Close()

		sort := cctx.String("sort")
		for i := 0; i < cctx.Int("pages") && feed.HasMore(); i++ {
			if err := feed.Load(cctx.Context, sort, i == 0); err != nil {
				return err
			}
		}

		for _, p := range feed.Items() {
			printPostLine(cctx.App.Writer, p)
		}
		if feed.Exhausted() {
			fmt.Fprintln(cctx.App.Writer, "-- end of feed --")
		}
		return nil
	}),
}

var cmdPost = &cli.Command{
	Name:  "post",
	Usage: "show, create or delete posts",
	Subcommands: []*cli.Command{
		{
			Name:      "show",
			ArgsUsage: "<post-id>",
			Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
				id, err := int64Arg(cctx, 0, "post id")
				if err != nil {
					return err
				}
				detail, err := c.GetPostDetail(cctx.Context, id)
				if err != nil {
					return err
				}
				w := cctx.App.Writer
				p := detail.Post
				fmt.Fprintf(w, "%s\n", p.Title)
				fmt.Fprintf(w, "r/%s by %s, %d votes, %d comments\n", p.SubredditName, p.AuthorUsername, p.VoteCount, p.CommentCount)
				if p.URL != "" {
					fmt.Fprintln(w, p.URL)
				}
				if p.Content != "" {
					fmt.Fprintf(w, "\n%s\n", p.Content)
				}
				if len(detail.Comments) > 0 {
					fmt.Fprintln(w)
					printComments(w, detail.Comments, 0)
				}
				return nil
			}),
		},
		{
			Name:      "create",
			ArgsUsage: "<title>",
			Flags: []cli.Flag{
				&cli.Int64Flag{Name: "subreddit", Required: true, Usage: "subreddit id"},
				&cli.StringFlag{Name: "content", Usage: "body text"},
				&cli.StringFlag{Name: "url", Usage: "link target; makes a link post"},
				&cli.StringFlag{Name: "image", Usage: "image url; makes an image post"},
			},
			Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
				req := &types.CreatePostRequest{
					Title:       strings.Join(cctx.Args().Slice(), " "),
					Content:     cctx.String("content"),
					URL:         cctx.String("url"),
					ImageURL:    cctx.String("image"),
					PostType:    types.PostTypeText,
					SubredditID: cctx.Int64("subreddit"),
				}
				switch {
				case req.ImageURL != "":
					req.PostType = types.PostTypeImage
				case req.URL != "":
					req.PostType = types.PostTypeLink
				}
				post, err := c.CreatePost(cctx.Context, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cctx.App.Writer, "created post %d\n", post.ID)
				return nil
			}),
		},
		{
			Name:      "delete",
			ArgsUsage: "<post-id>",
			Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
				id, err := int64Arg(cctx, 0, "post id")
				if err != nil {
					return err
				}
				if err := c.DeletePost(cctx.Context, id); err != nil {
					return err
				}
				fmt.Fprintf(cctx.App.Writer, "deleted post %d\n", id)
				return nil
			}),
		},
	},
}

var cmdVote = &cli.Command{
	Name:  "vote",
	Usage: "vote on a post or a comment",
	Subcommands: []*cli.Command{
		{
			Name:      "post",
			ArgsUsage: "<post-id> <up|down|none>",
			Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
				id, vote, err := voteArgs(cctx)
				if err != nil {
					return err
				}
				result, err := c.VotePost(cctx.Context, id, vote)
				if err != nil {
					return err
				}
				printVote(cctx.App.Writer, result)
				return nil
			}),
		},
		{
			Name:      "comment",
			ArgsUsage: "<post-id> <comment-id> <up|down|none>",
			Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
				postID, err := int64Arg(cctx, 0, "post id")
				if err != nil {
					return err
				}
				commentID, err := int64Arg(cctx, 1, "comment id")
				if err != nil {
					return err
				}
				vote, err := parseVote(cctx.Args().Get(2))
				if err != nil {
					return err
				}
				thread := c.NewThread()
				if err := thread.Load(cctx.Context, postID); err != nil {
					return err
				}
				result, err := thread.Vote(cctx.Context, commentID, vote)
				if err != nil {
					return err
				}
				printVote(cctx.App.Writer, result)
				return nil
			}),
		},
	},
}

func printPostLine(w io.Writer, p *types.Post) {
	marker := " "
	switch p.UserVote {
	case types.VoteUp:
		marker = "+"
	case types.VoteDown:
		marker = "-"
	}
	fmt.Fprintf(w, "%s%5d  [%d] %s  (r/%s, %d comments)\n", marker, p.VoteCount, p.ID, p.Title, p.SubredditName, p.CommentCount)
}

func printVote(w io.Writer, r *types.VoteResult) {
	fmt.Fprintf(w, "%s %d now has %d votes\n", strings.ToLower(r.EntityType), r.EntityID, r.VoteCount)
}

func voteArgs(cctx *cli.Context) (int64, types.VoteType, error) {
	id, err := int64Arg(cctx, 0, "post id")
	if err != nil {
		return 0, 0, err
	}
	vote, err := parseVote(cctx.Args().Get(1))
	return id, vote, err
}

func parseVote(s string) (types.VoteType, error) {
	switch strings.ToLower(s) {
	case "up", "+1", "1":
		return types.VoteUp, nil
	case "down", "-1":
		return types.VoteDown, nil
	case "none", "0", "clear":
		return types.VoteNone, nil
	}
	return 0, fmt.Errorf("unknown vote %q, want up, down or none", s)
}

func int64Arg(cctx *cli.Context, i int, what string) (int64, error) {
	s := cctx.Args().Get(i)
	if s == "" {
		return 0, fmt.Errorf("missing %s", what)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}

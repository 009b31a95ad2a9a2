package main

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	forum "github.com/jamesprial/go-forum-client"
	"github.com/jamesprial/go-forum-client/pkg/types"
)

var cmdSubreddit = &cli.Command{
	Name:    "subreddit",
	Aliases: []string{"sub"},
	Usage:   "look up, create, join and leave subreddits",
	Subcommands: []*cli.Command{
		{
			Name:      "show",
			ArgsUsage: "<name>",
			Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
				s, err := c.Subreddit(cctx.Context, cctx.Args().First())
				if err != nil {
					return err
				}
				w := cctx.App.Writer
				printSubreddit(w, s)
				if s.Description != "" {
					fmt.Fprintf(w, "  %s\n", s.Description)
				}
				return nil
			}),
		},
		{
			Name:  "top",
			Flags: []cli.Flag{&cli.IntFlag{Name: "limit", Value: 10}},
			Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
				subs, err := c.TopSubreddits(cctx.Context, cctx.Int("limit"))
				if err != nil {
					return err
				}
				for _, s := range subs {
					printSubreddit(cctx.App.Writer, s)
				}
				return nil
			}),
		},
		{
			Name: "mine",
			Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
				subs, err := c.MySubreddits(cctx.Context)
				if err != nil {
					return err
				}
				for _, s := range subs {
					printSubreddit(cctx.App.Writer, s)
				}
				return nil
			}),
		},
		{
			Name:      "create",
			ArgsUsage: "<name>",
			Flags:     []cli.Flag{&cli.StringFlag{Name: "description"}},
			Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
				s, err := c.CreateSubreddit(cctx.Context, cctx.Args().First(), cctx.String("description"))
				if err != nil {
					return err
				}
				fmt.Fprintf(cctx.App.Writer, "created r/%s (id %d)\n", s.Name, s.ID)
				return nil
			}),
		},
		{
			Name:      "join",
			ArgsUsage: "<subreddit-id>",
			Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
				id, err := int64Arg(cctx, 0, "subreddit id")
				if err != nil {
					return err
				}
				if err := c.JoinSubreddit(cctx.Context, id); err != nil {
					return err
				}
				fmt.Fprintf(cctx.App.Writer, "joined %d\n", id)
				return nil
			}),
		},
		{
			Name:      "leave",
			ArgsUsage: "<subreddit-id>",
			Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
				id, err := int64Arg(cctx, 0, "subreddit id")
				if err != nil {
					return err
				}
				if err := c.LeaveSubreddit(cctx.Context, id); err != nil {
					return err
				}
				fmt.Fprintf(cctx.App.Writer, "left %d\n", id)
				return nil
			}),
		},
	},
}

func printSubreddit(w io.Writer, s *types.Subreddit) {
	member := ""
	if s.IsMember {
		member = ", member"
	}
	fmt.Fprintf(w, "r/%s [%d] %d members%s\n", s.Name, s.ID, s.MemberCount, member)
}

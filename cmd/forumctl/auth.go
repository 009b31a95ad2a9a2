package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	forum "github.com/jamesprial/go-forum-client"
)

var passwordFlag = &cli.StringFlag{
	Name:     "password",
	Aliases:  []string{"p"},
	Required: true,
	EnvVars:  []string{"FORUM_PASSWORD"},
}

var cmdLogin = &cli.Command{
	Name:      "login",
	Usage:     "sign in and remember the session",
	ArgsUsage: "<username-or-email>",
	Flags:     []cli.Flag{passwordFlag},
	Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expected a username or email")
		}
		user, err := c.Login(cctx.Context, cctx.Args().First(), cctx.String("password"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "signed in as %s\n", user.Username)
		return nil
	}),
}

var cmdRegister = &cli.Command{
	Name:      "register",
	Usage:     "create an account and sign in",
	ArgsUsage: "<username> <email>",
	Flags:     []cli.Flag{passwordFlag},
	Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
		if cctx.Args().Len() != 2 {
			return fmt.Errorf("expected a username and an email")
		}
		user, err := c.Register(cctx.Context, cctx.Args().Get(0), cctx.Args().Get(1), cctx.String("password"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "registered %s (id %d)\n", user.Username, user.ID)
		return nil
	}),
}

var cmdLogout = &cli.Command{
	Name:  "logout",
	Usage: "forget the stored session",
	Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
		c.Logout(cctx.Context)
		fmt.Fprintln(cctx.App.Writer, "signed out")
		return nil
	}),
}

var cmdWhoami = &cli.Command{
	Name:  "whoami",
	Usage: "show the signed-in user",
	Action: withClient(func(cctx *cli.Context, c *forum.Client) error {
		if err := c.Bootstrap(cctx.Context); err != nil {
			return err
		}
		if !c.IsAuthenticated() {
			fmt.Fprintln(cctx.App.Writer, "not signed in")
			return nil
		}
		user, err := c.FetchProfile(cctx.Context)
		if err != nil {
			return err
		}
		w := cctx.App.Writer
		fmt.Fprintf(w, "%s (id %d)\n", user.Username, user.ID)
		if user.Email != "" {
			fmt.Fprintf(w, "email:  %s\n", user.Email)
		}
		fmt.Fprintf(w, "karma:  %d\n", user.Karma)
		if expiry, ok := c.AccessTokenExpiry(); ok {
			fmt.Fprintf(w, "token:  expires %s (in %s)\n", expiry.Local().Format(time.RFC3339), time.Until(expiry).Round(time.Second))
		}
		return nil
	}),
}

// Command forumctl drives a forum API from the terminal. The session is
// kept in the configured durable store between invocations.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"

	forum "github.com/jamesprial/go-forum-client"
	"github.com/jamesprial/go-forum-client/pkg/store"
)

func main() {
	if err := run(os.Args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	return newApp(out).Run(args)
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "forumctl",
		Usage:  "browse and post to a forum from the command line",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"FORUM_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "forum API base URL, e.g. http://localhost:8080/api",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "session store backend: memory, file, pebble or sqlite",
			},
			&cli.StringFlag{
				Name:  "store-path",
				Usage: "location of the session store",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log requests to stderr",
			},
		},
		Commands: []*cli.Command{
			cmdLogin,
			cmdRegister,
			cmdLogout,
			cmdWhoami,
			cmdFeed,
			cmdPost,
			cmdComments,
			cmdReply,
			cmdVote,
			cmdSubreddit,
			cmdConfig,
		},
	}
}

// loadConfig layers the config file, the environment and the global flags,
// in increasing precedence.
func loadConfig(cctx *cli.Context) (*forum.Config, error) {
	cfg, err := forum.LoadConfig(cctx.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if v := cctx.String("base-url"); v != "" {
		cfg.BaseURL = v
	}
	if v := cctx.String("store"); v != "" {
		cfg.StoreKind = store.Kind(v)
	}
	if v := cctx.String("store-path"); v != "" {
		cfg.StorePath = v
	}
	return cfg, nil
}

func newClient(cctx *cli.Context) (*forum.Client, error) {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return nil, err
	}
	if cctx.Bool("debug") {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	cfg.OnSessionExpired = func() {
		fmt.Fprintln(os.Stderr, "session expired, run `forumctl login` again")
	}

	return forum.NewClient(cfg)
}

// withClient runs fn with a client that is closed afterwards.
func withClient(fn func(cctx *cli.Context, c *forum.Client) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		c, err := newClient(cctx)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(cctx, c)
	}
}

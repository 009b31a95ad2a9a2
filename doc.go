// Package forum is the client-side state engine of a community forum:
// subreddits, posts, nested comments and voting.
//
// # Overview
//
// A Client owns one authenticated session and hands out Feeds and Threads
// that share it. Every request goes through a single gateway that attaches
// the session's bearer token, throttles, and on a 401 renews the session
// once and replays the request once. Concurrent 401s share a single
// renewal.
//
// # Quick Start
//
//	client, err := forum.NewClient(&forum.Config{BaseURL: "https://forum.example.com/api"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	if _, err := client.Login(ctx, "alice", "secret"); err != nil {
//		log.Fatal(err)
//	}
//
// # Session Lifecycle
//
// The session is persisted to a durable store (a JSON file under the XDG
// state directory by default; pebble, sqlite and memory are also
// available) and restored on the first operation of the next run. When
// renewal fails the session is cleared and Config.OnSessionExpired runs.
// Logout clears local state even when the server cannot be reached.
//
// # Feeds
//
// A Feed accumulates pages of PageSize posts. Loading with a different sort,
// or with reset, starts over; a short page marks the feed exhausted.
//
//	feed := client.HomeFeed()
//	defer feed.Close()
//	err := feed.Load(ctx, forum.SortHot, true)
//	posts := feed.Items()
//
// # Threads
//
// A Thread holds the comment forest of one post. New comments are inserted
// at the front of their parent's replies; votes update the matching comment
// wherever it sits in the forest.
//
//	thread := client.NewThread()
//	if err := thread.Load(ctx, postID); err != nil {
//		return err
//	}
//	reply, err := thread.AddComment(ctx, "agreed", &parentID)
//
// # Error Handling
//
// Errors are typed (see package errors): *errors.APIError for non-2xx
// responses, *errors.RequestError for transport failures and
// *errors.ConfigError for invalid arguments. A request whose renewal fails
// returns the server's original 401; RenewSession reports the failure as
// *errors.SessionExpiredError. Use errors.As to inspect them.
package forum

package types

import (
	"encoding/json"
	"testing"
)

func TestVoteType_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      VoteType
		wantError bool
	}{
		{name: "upvote", input: `1`, want: VoteUp},
		{name: "downvote", input: `-1`, want: VoteDown},
		{name: "no vote", input: `0`, want: VoteNone},
		{name: "null value", input: `null`, want: VoteNone},
		{name: "out of range", input: `2`, wantError: true},
		{name: "string value", input: `"up"`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v VoteType
			err := json.Unmarshal([]byte(tt.input), &v)

			if (err != nil) != tt.wantError {
				t.Errorf("VoteType.UnmarshalJSON() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError && v != tt.want {
				t.Errorf("VoteType.UnmarshalJSON() = %v, want %v", v, tt.want)
			}
		})
	}
}

func TestVoteType_MarshalsAsInteger(t *testing.T) {
	body, err := json.Marshal(VoteRequest{VoteType: VoteDown})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(body) != `{"voteType":-1}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestParseVoteType(t *testing.T) {
	tests := []struct {
		input   string
		want    VoteType
		wantErr bool
	}{
		{"up", VoteUp, false},
		{"UP", VoteUp, false},
		{"+1", VoteUp, false},
		{"down", VoteDown, false},
		{"-1", VoteDown, false},
		{"none", VoteNone, false},
		{"", VoteNone, false},
		{"sideways", VoteNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVoteType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVoteType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseVoteType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestVoteType_String(t *testing.T) {
	if VoteUp.String() != "up" || VoteDown.String() != "down" || VoteNone.String() != "none" {
		t.Error("unexpected vote names")
	}
	if VoteType(5).String() != "VoteType(5)" {
		t.Errorf("unexpected name for unknown vote: %s", VoteType(5).String())
	}
}

func TestCredentials_Valid(t *testing.T) {
	var nilCreds *Credentials
	if nilCreds.Valid() {
		t.Error("nil credentials must not be valid")
	}
	if (&Credentials{AccessToken: "a"}).Valid() {
		t.Error("credentials without refresh token must not be valid")
	}
	if (&Credentials{RefreshToken: "r"}).Valid() {
		t.Error("credentials without access token must not be valid")
	}
	if !(&Credentials{AccessToken: "a", RefreshToken: "r"}).Valid() {
		t.Error("expected complete credentials to be valid")
	}
}

func TestComment_UnmarshalNested(t *testing.T) {
	raw := `{
		"id": 1, "postId": 9, "content": "root", "voteCount": 3, "userVote": 1,
		"children": [
			{"id": 2, "parentId": 1, "postId": 9, "content": "reply", "userVote": null, "children": []}
		]
	}`

	var c Comment
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !c.IsRoot() {
		t.Error("expected root comment")
	}
	if c.UserVote != VoteUp {
		t.Errorf("expected upvote, got %v", c.UserVote)
	}
	if len(c.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(c.Children))
	}
	child := c.Children[0]
	if child.IsRoot() || *child.ParentID != 1 {
		t.Error("expected child to reference parent 1")
	}
	if child.UserVote != VoteNone {
		t.Errorf("expected null vote to decode as none, got %v", child.UserVote)
	}
}

func TestPage_Unmarshal(t *testing.T) {
	raw := `{"content":[{"id":1,"title":"a"},{"id":2,"title":"b"}],"number":0,"size":20,"last":true}`

	var page Page[*Post]
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Content) != 2 || page.Content[1].GetID() != 2 {
		t.Errorf("unexpected content %+v", page.Content)
	}
	if !page.Last || page.Size != 20 {
		t.Errorf("unexpected envelope %+v", page)
	}
}

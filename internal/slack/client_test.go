package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/heuritech/gitlab-slack-notifier/models"
)

type fakeSlack struct {
	mu    sync.Mutex
	posts []map[string]string
}

func (f *fakeSlack) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		post := map[string]string{}
		for k := range r.PostForm {
			post[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.posts = append(f.posts, post)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if post["channel"] == "UNKNOWN" {
			fmt.Fprint(w, `{"ok":false,"error":"channel_not_found"}`)
			return
		}
		fmt.Fprintf(w, `{"ok":true,"channel":%q,"ts":"1700000000.000100"}`, post["channel"])
	})
	mux.HandleFunc("/users.list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true,"members":[
			{"id":"U1","name":"jane","profile":{"email":"jane@example.com"}},
			{"id":"U2","name":"bot","is_bot":true,"profile":{"email":"bot@example.com"}},
			{"id":"U3","name":"gone","deleted":true,"profile":{"email":"gone@example.com"}},
			{"id":"U4","name":"noemail","profile":{}}
		],"response_metadata":{"next_cursor":""}}`)
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeSlack) {
	t.Helper()
	f := &fakeSlack{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	c := New(config.SlackConfig{Token: "xoxb-test", Username: "gitlabnotifier", IconEmoji: ":gitlab:", APIURL: srv.URL})
	return c, f
}

func TestSendToMemberHandle(t *testing.T) {
	c, f := newTestClient(t)
	msg := models.Message{
		Text:        "hello",
		Attachments: []models.Attachment{{Title: "Job lint failed", Color: "#ff0000", Text: "E1"}},
	}
	d := c.Send(context.Background(), msg, Handle("U1"))
	if !d.Delivered {
		t.Fatalf("expected delivery, got %+v", d)
	}
	if len(f.posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(f.posts))
	}
	post := f.posts[0]
	if post["channel"] != "U1" || post["text"] != "hello" || post["username"] != "gitlabnotifier" || post["icon_emoji"] != ":gitlab:" {
		t.Fatalf("unexpected post form: %v", post)
	}
	var atts []map[string]any
	if err := json.Unmarshal([]byte(post["attachments"]), &atts); err != nil {
		t.Fatalf("attachments not JSON: %v", err)
	}
	if len(atts) != 1 || atts[0]["title"] != "Job lint failed" || atts[0]["color"] != "#ff0000" {
		t.Fatalf("unexpected attachments: %v", atts)
	}
}

func TestSendReportsFailure(t *testing.T) {
	c, _ := newTestClient(t)
	d := c.Send(context.Background(), models.Message{Text: "x"}, "UNKNOWN")
	if d.Delivered {
		t.Fatal("expected failed delivery")
	}
	if d.Raw == "" {
		t.Fatal("expected raw error text")
	}
}

func TestMembersSkipsBotsDeletedAndNoEmail(t *testing.T) {
	c, _ := newTestClient(t)
	members, err := c.Members(context.Background())
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 1 || members[0].ID != "U1" || members[0].Email != "jane@example.com" {
		t.Fatalf("unexpected members: %+v", members)
	}
}

func TestSendRejectsNameHandle(t *testing.T) {
	c, f := newTestClient(t)
	d := c.Send(context.Background(), models.Message{Text: "hi"}, "@test")
	if d.Delivered {
		t.Fatalf("name handle must not be delivered: %+v", d)
	}
	if len(f.posts) != 0 {
		t.Fatalf("name handle reached chat.postMessage: %v", f.posts)
	}
}

func TestIsMemberHandle(t *testing.T) {
	for h, want := range map[string]bool{
		"@U012AB3CD": true,
		"@W0ENTERPR": true,
		"@test":      false,
		"@u1":        false,
		"U012AB3CD":  false,
		"#_gitlab":   false,
		"@":          false,
	} {
		if got := IsMemberHandle(h); got != want {
			t.Errorf("IsMemberHandle(%q) = %v, want %v", h, got, want)
		}
	}
}

func TestChannelID(t *testing.T) {
	if channelID("@U1") != "U1" || channelID("#_gitlab") != "#_gitlab" {
		t.Fatal("channelID mangled destination")
	}
}

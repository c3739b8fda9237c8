package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/heuritech/gitlab-slack-notifier/internal/slack"
	"github.com/heuritech/gitlab-slack-notifier/models"
)

func TestDirectoryLookupAndReplace(t *testing.T) {
	d := New(map[string]string{"a@x.io": "@U1", "": "@U0", "b@x.io": ""})
	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want empty keys and values dropped", d.Len())
	}
	if h, ok := d.Lookup("a@x.io"); !ok || h != "@U1" {
		t.Fatalf("Lookup(a) = %q, %v", h, ok)
	}
	if _, ok := d.Lookup("A@x.io"); ok {
		t.Fatal("lookup must be case sensitive")
	}

	src := map[string]string{"c@x.io": "@U3"}
	d.Replace(src)
	src["d@x.io"] = "@U4"
	if _, ok := d.Lookup("a@x.io"); ok {
		t.Fatal("old entry survived Replace")
	}
	if _, ok := d.Lookup("d@x.io"); ok {
		t.Fatal("Replace must copy its input")
	}
	if got := d.Entries(); len(got) != 1 || got[0].Email != "c@x.io" {
		t.Fatalf("Entries() = %+v", got)
	}
}

func TestZeroDirectory(t *testing.T) {
	var d Directory
	if _, ok := d.Lookup("a"); ok || d.Len() != 0 || d.Entries() != nil {
		t.Fatal("zero Directory should be empty")
	}
}

func TestStaticSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.yaml")
	if err := os.WriteFile(path, []byte("test@mycompany.com: \"@U0TEST01\"\nother@mycompany.com: \"@U0OTHER2\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := NewStaticSource(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m["test@mycompany.com"] != "@U0TEST01" || len(m) != 2 {
		t.Fatalf("unexpected mapping: %v", m)
	}

	if _, err := NewStaticSource(filepath.Join(t.TempDir(), "nope.yaml")).Load(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStaticSourceRejectsNameHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.yaml")
	if err := os.WriteFile(path, []byte("test@mycompany.com: \"@test\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStaticSource(path).Load(context.Background()); err == nil {
		t.Fatal("expected error for a handle that is not a member id")
	}
}

func TestStaticHandleDeliveredToMember(t *testing.T) {
	var mu sync.Mutex
	var channels []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		channels = append(channels, r.PostForm.Get("channel"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"ok":true,"channel":"D0DM","ts":"1.2"}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "directory.yaml")
	if err := os.WriteFile(path, []byte("test@mycompany.com: \"@U0TEST01\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := NewStaticSource(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	handle, ok := New(m).Lookup("test@mycompany.com")
	if !ok {
		t.Fatal("static entry missing")
	}

	c := slack.New(config.SlackConfig{Token: "xoxb-test", APIURL: srv.URL})
	if d := c.Send(context.Background(), models.Message{Text: "hi"}, handle); !d.Delivered {
		t.Fatalf("Send: %+v", d)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(channels) != 1 || channels[0] != "U0TEST01" {
		t.Fatalf("posted to %v, want the member id U0TEST01", channels)
	}
}

type fakeLister struct{ members []slack.Member }

func (f fakeLister) Members(context.Context) ([]slack.Member, error) { return f.members, nil }

func TestSlackSource(t *testing.T) {
	src := NewSlackSource(fakeLister{members: []slack.Member{{ID: "U1", Name: "jane", Email: "jane@x.io"}}})
	m, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m["jane@x.io"] != "@U1" {
		t.Fatalf("unexpected mapping: %v", m)
	}
}

type fakeSource struct {
	handles map[string]string
	err     error
}

func (f *fakeSource) Name() string { return "fake" }
func (f *fakeSource) Load(context.Context) (map[string]string, error) {
	return f.handles, f.err
}

type memStore struct {
	mu      sync.Mutex
	handles map[string]string
	saved   time.Time
}

func (m *memStore) SaveHandles(_ context.Context, h map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = h
	m.saved = time.Now()
	return nil
}

func (m *memStore) LoadHandles(context.Context) (map[string]string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handles == nil {
		return nil, time.Time{}, errors.New("no snapshot")
	}
	return m.handles, m.saved, nil
}

func TestRefreshKeepsSnapshotOnFailure(t *testing.T) {
	d := New(map[string]string{"a@x.io": "@U1"})
	src := &fakeSource{err: errors.New("slack down")}
	r := NewRefresher(d, src, nil)
	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if _, ok := d.Lookup("a@x.io"); !ok {
		t.Fatal("failed refresh dropped the current snapshot")
	}
	if _, lastErr := r.Status(); lastErr == nil {
		t.Fatal("Status should report the last error")
	}
}

func TestRefreshSavesAndWarmFallsBack(t *testing.T) {
	store := &memStore{}
	src := &fakeSource{handles: map[string]string{"a@x.io": "@U1"}}

	d := New(nil)
	r := NewRefresher(d, src, store)
	if err := r.Warm(context.Background()); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if store.handles["a@x.io"] != "@U1" {
		t.Fatal("refresh did not persist the snapshot")
	}

	// A restart with the source down serves the stored snapshot.
	src.err = errors.New("slack down")
	d2 := New(nil)
	r2 := NewRefresher(d2, src, store)
	if err := r2.Warm(context.Background()); err != nil {
		t.Fatalf("Warm with stored snapshot: %v", err)
	}
	if h, ok := d2.Lookup("a@x.io"); !ok || h != "@U1" {
		t.Fatal("stored snapshot not loaded")
	}

	// No source and no snapshot: Warm fails.
	r3 := NewRefresher(New(nil), src, &memStore{})
	if err := r3.Warm(context.Background()); err == nil {
		t.Fatal("expected Warm to fail without any mapping")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	r := NewRefresher(New(nil), &fakeSource{}, nil)
	if err := r.Start("not a schedule"); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if err := r.Start(""); err != nil {
		t.Fatalf("empty schedule should be a no-op: %v", err)
	}
	if !r.Next().IsZero() {
		t.Fatal("no refresh should be scheduled")
	}
}

func TestStartSchedulesRefresh(t *testing.T) {
	r := NewRefresher(New(nil), &fakeSource{handles: map[string]string{}}, nil)
	if err := r.Start("@every 1h"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()
	if r.Next().IsZero() {
		t.Fatal("expected a scheduled refresh")
	}
}

func TestValidateSchedule(t *testing.T) {
	for _, ok := range []string{"", "@every 6h", "0 * * * *", "@daily"} {
		if err := ValidateSchedule(ok); err != nil {
			t.Fatalf("ValidateSchedule(%q): %v", ok, err)
		}
	}
	if err := ValidateSchedule("every hour"); err == nil {
		t.Fatal("expected error")
	}
}

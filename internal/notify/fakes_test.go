package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/heuritech/gitlab-slack-notifier/internal/repository"
	"github.com/heuritech/gitlab-slack-notifier/models"
)

// fakeGitLab serves canned merge requests, discussions and users.
type fakeGitLab struct {
	mu           sync.Mutex
	calls        int
	err          error
	mrs          map[int64]*models.MergeRequest
	participants map[int64][]models.User
	discussions  map[string]*models.Discussion
	users        map[int64]models.User
	byUsername   map[string][]models.User
	traces       map[int64]string
}

// newFakeGitLab returns the fixtures used across the notify tests:
// users 1..4, MR !2 and !5 authored by user 1, MR !5 with participants
// 1, 2 and 3.
func newFakeGitLab() *fakeGitLab {
	return &fakeGitLab{
		mrs: map[int64]*models.MergeRequest{
			2: {IID: 2, Title: "THE MR", URL: "http://mr", AuthorID: 1},
			5: {IID: 5, Title: "THE MR", URL: "http://mr", AuthorID: 1},
		},
		participants: map[int64][]models.User{
			5: {{ID: 1}, {ID: 2}, {ID: 3}},
		},
		discussions: map[string]*models.Discussion{
			"good": {ID: "good", Notes: []models.Note{{AuthorID: 1}, {AuthorID: 2}, {AuthorID: 1}, {AuthorID: 3}}},
			"none": {ID: "none", Notes: []models.Note{{AuthorID: 3}}},
		},
		users: map[int64]models.User{
			1: {ID: 1, Username: "Michael Scott", Email: "test1@gmail.com"},
			2: {ID: 2, Username: "test2", Email: "foobar2@heuri.fr"},
			3: {ID: 3, Username: "Test3", Email: "hello_there@mycompany.com"},
			4: {ID: 4, Username: "Test4", Email: "test4@gmail.com"},
		},
		byUsername: map[string][]models.User{
			"test2": {{ID: 2, Email: "foobar2@heuri.fr"}},
			"Test4": {{ID: 4, Email: "test4@gmail.com"}},
			"twins": {{ID: 8, Email: "a@x.io"}, {ID: 9, Email: "b@x.io"}},
		},
		traces: map[int64]string{},
	}
}

func (f *fakeGitLab) called() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return fmt.Errorf("fake: %w: %w", repository.ErrRequest, f.err)
	}
	return nil
}

func (f *fakeGitLab) GetMergeRequest(_ context.Context, _, mrIID int64) (*models.MergeRequest, error) {
	if err := f.called(); err != nil {
		return nil, err
	}
	mr, ok := f.mrs[mrIID]
	if !ok {
		return nil, fmt.Errorf("fake: %w: no MR %d", repository.ErrRequest, mrIID)
	}
	return mr, nil
}

func (f *fakeGitLab) GetMergeRequestParticipants(_ context.Context, _, mrIID int64) ([]models.User, error) {
	if err := f.called(); err != nil {
		return nil, err
	}
	return f.participants[mrIID], nil
}

func (f *fakeGitLab) GetMergeRequestDiscussion(_ context.Context, _, _ int64, discussionID string) (*models.Discussion, error) {
	if err := f.called(); err != nil {
		return nil, err
	}
	d, ok := f.discussions[discussionID]
	if !ok {
		return nil, fmt.Errorf("fake: %w: no discussion %s", repository.ErrRequest, discussionID)
	}
	return d, nil
}

func (f *fakeGitLab) GetUser(_ context.Context, userID int64) (*models.User, error) {
	if err := f.called(); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("fake: %w: no user %d", repository.ErrRequest, userID)
	}
	return &u, nil
}

func (f *fakeGitLab) GetUsersByUsername(_ context.Context, username string) ([]models.User, error) {
	if err := f.called(); err != nil {
		return nil, err
	}
	return f.byUsername[username], nil
}

func (f *fakeGitLab) GetJobTrace(_ context.Context, _, jobID int64) (string, error) {
	if err := f.called(); err != nil {
		return "", err
	}
	return f.traces[jobID], nil
}

type sentMessage struct {
	destination string
	msg         models.Message
}

// fakeSender records sends; destinations in fail report a failed delivery.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]bool
}

func (s *fakeSender) Send(_ context.Context, msg models.Message, destination string) models.Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{destination: destination, msg: msg.Clone()})
	if s.fail[destination] {
		return models.Delivery{Delivered: false, Raw: "channel_not_found"}
	}
	return models.Delivery{Delivered: true, Raw: "ts=1"}
}

func (s *fakeSender) to(destination string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.sent {
		if m.destination == destination {
			out = append(out, m.msg)
		}
	}
	return out
}

type mapHandles map[string]string

func (h mapHandles) Lookup(email string) (string, bool) {
	handle, ok := h[email]
	return handle, ok
}

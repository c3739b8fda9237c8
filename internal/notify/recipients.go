package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/heuritech/gitlab-slack-notifier/internal/event"
	"github.com/heuritech/gitlab-slack-notifier/models"
)

func pipelineRecipients(p *event.Pipeline) models.EmailSet {
	return models.NewEmailSet(p.User.Email)
}

// commentRecipients notifies everyone in the comment's discussion plus the
// merge request author, minus the commenter, plus anyone @mentioned.
func (d *Deriver) commentRecipients(ctx context.Context, n *event.Note) (models.EmailSet, error) {
	projectID := n.ProjectIDOrDefault()
	iid := n.MergeRequest.IID

	mr, err := d.scm.GetMergeRequest(ctx, projectID, iid)
	if err != nil {
		return nil, err
	}
	discussion, err := d.scm.GetMergeRequestDiscussion(ctx, projectID, iid, n.Attributes.DiscussionID)
	if err != nil {
		return nil, err
	}

	ids := map[int64]struct{}{mr.AuthorID: {}}
	for _, note := range discussion.Notes {
		ids[note.AuthorID] = struct{}{}
	}
	emails := models.NewEmailSet()
	for id := range ids {
		email, err := d.userEmail(ctx, id)
		if err != nil {
			return nil, err
		}
		emails.Add(email)
	}

	// The webhook only tells us the commenter's email, so the commenter is
	// removed by value. Two accounts sharing an email, or the same address
	// spelled with a different case, slip through.
	emails.Remove(n.User.Email)

	mentioned, err := d.mentionedEmails(ctx, n.Attributes.Body())
	if err != nil {
		return nil, err
	}
	for e := range mentioned {
		emails.Add(e)
	}
	return emails, nil
}

func (d *Deriver) mentionedEmails(ctx context.Context, body string) (models.EmailSet, error) {
	emails := models.NewEmailSet()
	for _, username := range mentions(body) {
		users, err := d.scm.GetUsersByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		switch len(users) {
		case 0:
			slog.Info("notify: no user matches mention", "username", username)
		case 1:
			emails.Add(users[0].Email)
		default:
			return nil, fmt.Errorf("%w: %q matches %d users", ErrAmbiguousMention, username, len(users))
		}
	}
	return emails, nil
}

// mentions returns the distinct @usernames of body in order of appearance.
// A username runs from the '@' to the next whitespace.
func mentions(body string) []string {
	parts := strings.Split(body, "@")
	seen := map[string]bool{}
	var out []string
	for _, p := range parts[1:] {
		if i := strings.IndexFunc(p, unicode.IsSpace); i >= 0 {
			p = p[:i]
		}
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (d *Deriver) approvalRecipients(ctx context.Context, mr *event.MergeRequest) (models.EmailSet, error) {
	got, err := d.scm.GetMergeRequest(ctx, mr.Project.ID, mr.Attributes.IID)
	if err != nil {
		return nil, err
	}
	email, err := d.userEmail(ctx, got.AuthorID)
	if err != nil {
		return nil, err
	}
	return models.NewEmailSet(email), nil
}

// mergeRecipients notifies every participant, the merger included.
func (d *Deriver) mergeRecipients(ctx context.Context, mr *event.MergeRequest) (models.EmailSet, error) {
	participants, err := d.scm.GetMergeRequestParticipants(ctx, mr.Project.ID, mr.Attributes.IID)
	if err != nil {
		return nil, err
	}
	emails := models.NewEmailSet()
	for _, p := range participants {
		email, err := d.userEmail(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		emails.Add(email)
	}
	return emails, nil
}

func (d *Deriver) assignmentRecipients(ctx context.Context, mr *event.MergeRequest) (models.EmailSet, error) {
	email, err := d.userEmail(ctx, *mr.Attributes.AssigneeID)
	if err != nil {
		return nil, err
	}
	emails := models.NewEmailSet(email)
	emails.Remove(mr.User.Email)
	return emails, nil
}

func (d *Deriver) userEmail(ctx context.Context, id int64) (string, error) {
	u, err := d.scm.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	if u.Email == "" {
		slog.Debug("notify: user has no visible email", "user_id", id)
	}
	return u.Email, nil
}

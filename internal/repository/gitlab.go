package repository

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/heuritech/gitlab-slack-notifier/models"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLab implements SourceControl against the GitLab REST API v4
// (cloud and self-hosted).
type GitLab struct {
	client *gitlab.Client
}

// NewGitLab creates a GitLab client from the given configuration.
func NewGitLab(cfg config.GitLabConfig) (*GitLab, error) {
	opts := []gitlab.ClientOptionFunc{}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		opts = append(opts, gitlab.WithBaseURL(base+"/api/v4/"))
	}

	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}
	return &GitLab{client: client}, nil
}

func (g *GitLab) GetMergeRequest(ctx context.Context, projectID, mrIID int64) (*models.MergeRequest, error) {
	mr, _, err := g.client.MergeRequests.GetMergeRequest(pid(projectID), mrIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, requestError(fmt.Sprintf("getting merge request !%d of project %d", mrIID, projectID), err)
	}
	out := &models.MergeRequest{IID: mr.IID, Title: mr.Title, URL: mr.WebURL}
	if mr.Author != nil {
		out.AuthorID = mr.Author.ID
	}
	return out, nil
}

func (g *GitLab) GetMergeRequestParticipants(ctx context.Context, projectID, mrIID int64) ([]models.User, error) {
	participants, _, err := g.client.MergeRequests.GetMergeRequestParticipants(pid(projectID), mrIID, gitlab.WithContext(ctx))
	if err != nil {
		return nil, requestError(fmt.Sprintf("listing participants of merge request !%d", mrIID), err)
	}
	users := make([]models.User, 0, len(participants))
	for _, p := range participants {
		if p == nil {
			continue
		}
		users = append(users, models.User{ID: p.ID, Username: p.Username, Name: p.Name})
	}
	return users, nil
}

func (g *GitLab) GetMergeRequestDiscussion(ctx context.Context, projectID, mrIID int64, discussionID string) (*models.Discussion, error) {
	d, _, err := g.client.Discussions.GetMergeRequestDiscussion(pid(projectID), mrIID, discussionID, gitlab.WithContext(ctx))
	if err != nil {
		return nil, requestError(fmt.Sprintf("getting discussion %s of merge request !%d", discussionID, mrIID), err)
	}
	out := &models.Discussion{ID: d.ID, Notes: make([]models.Note, 0, len(d.Notes))}
	for _, n := range d.Notes {
		if n == nil {
			continue
		}
		out.Notes = append(out.Notes, models.Note{ID: n.ID, AuthorID: n.Author.ID})
	}
	return out, nil
}

func (g *GitLab) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	u, _, err := g.client.Users.GetUser(userID, gitlab.GetUsersOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, requestError(fmt.Sprintf("getting user %d", userID), err)
	}
	user := convertUser(u)
	return &user, nil
}

func (g *GitLab) GetUsersByUsername(ctx context.Context, username string) ([]models.User, error) {
	found, _, err := g.client.Users.ListUsers(&gitlab.ListUsersOptions{
		Username: gitlab.Ptr(username),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, requestError(fmt.Sprintf("searching users named %q", username), err)
	}
	users := make([]models.User, 0, len(found))
	for _, u := range found {
		if u == nil {
			continue
		}
		users = append(users, convertUser(u))
	}
	return users, nil
}

func (g *GitLab) GetJobTrace(ctx context.Context, projectID, jobID int64) (string, error) {
	r, _, err := g.client.Jobs.GetTraceFile(pid(projectID), jobID, gitlab.WithContext(ctx))
	if err != nil {
		return "", requestError(fmt.Sprintf("getting trace of job %d", jobID), err)
	}
	trace, err := io.ReadAll(r)
	if err != nil {
		return "", requestError(fmt.Sprintf("reading trace of job %d", jobID), err)
	}
	return string(trace), nil
}

// CurrentUser returns the user owning the configured token. Used to check
// credentials.
func (g *GitLab) CurrentUser(ctx context.Context) (*models.User, error) {
	u, _, err := g.client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return nil, requestError("getting current user", err)
	}
	user := convertUser(u)
	return &user, nil
}

// convertUser prefers the private email (visible to admin tokens) and falls
// back to the public one.
func convertUser(u *gitlab.User) models.User {
	email := u.Email
	if email == "" {
		email = u.PublicEmail
	}
	return models.User{ID: u.ID, Username: u.Username, Name: u.Name, Email: email}
}

func pid(projectID int64) string {
	return strconv.FormatInt(projectID, 10)
}

func requestError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrRequest, err)
}

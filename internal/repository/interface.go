package repository

import (
	"context"
	"errors"

	"github.com/heuritech/gitlab-slack-notifier/models"
)

// ErrRequest wraps every transport or non-success status failure reported by
// a SourceControl implementation.
var ErrRequest = errors.New("gitlab request failed")

// SourceControl is the read API the notifier needs from the source-control
// platform. Every call blocks on the network; timeouts and retries belong to
// the implementation.
type SourceControl interface {
	// GetMergeRequest returns merge request mrIID of projectID.
	GetMergeRequest(ctx context.Context, projectID, mrIID int64) (*models.MergeRequest, error)

	// GetMergeRequestParticipants lists everyone who took part in the merge request.
	GetMergeRequestParticipants(ctx context.Context, projectID, mrIID int64) ([]models.User, error)

	// GetMergeRequestDiscussion returns one discussion thread of the merge request.
	GetMergeRequestDiscussion(ctx context.Context, projectID, mrIID int64, discussionID string) (*models.Discussion, error)

	// GetUser returns a single user by id.
	GetUser(ctx context.Context, userID int64) (*models.User, error)

	// GetUsersByUsername searches users by exact username. Zero, one or
	// more users may come back.
	GetUsersByUsername(ctx context.Context, username string) ([]models.User, error)

	// GetJobTrace returns the raw log of a CI job.
	GetJobTrace(ctx context.Context, projectID, jobID int64) (string, error)
}

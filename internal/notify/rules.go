package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/heuritech/gitlab-slack-notifier/internal/event"
	"github.com/heuritech/gitlab-slack-notifier/internal/repository"
	"github.com/heuritech/gitlab-slack-notifier/models"
)

// Notification is what one event produces: a message and who gets it.
// Both always come from the same rule.
type Notification struct {
	Rule       event.Rule
	Message    models.Message
	Recipients models.EmailSet
}

// IsEmpty reports whether the notification has nothing to deliver.
func (n *Notification) IsEmpty() bool {
	return n.Message.IsEmpty() && len(n.Recipients) == 0
}

// Deriver turns events into notifications. It reads GitLab for recipient
// lookups and job traces, and the directory to mention authors.
type Deriver struct {
	scm     repository.SourceControl
	handles Handles
	baseURL string
}

// NewDeriver returns a Deriver. baseURL is the GitLab web root used to link
// failed jobs.
func NewDeriver(scm repository.SourceControl, handles Handles, baseURL string) *Deriver {
	return &Deriver{scm: scm, handles: handles, baseURL: strings.TrimRight(baseURL, "/")}
}

// Derive classifies ev and runs the message builder and recipient resolver
// of the matching rule. RuleNone yields an empty notification.
func (d *Deriver) Derive(ctx context.Context, ev *event.Event) (*Notification, error) {
	rule := event.Classify(ev)
	n := &Notification{Rule: rule, Recipients: models.NewEmailSet()}

	var err error
	switch rule {
	case event.RulePipelineStatus:
		var p *event.Pipeline
		if p, err = ev.Pipeline(); err != nil {
			break
		}
		if n.Message, err = d.pipelineMessage(ctx, p); err != nil {
			break
		}
		n.Recipients = pipelineRecipients(p)
	case event.RuleMRComment:
		var note *event.Note
		if note, err = ev.Note(); err != nil {
			break
		}
		n.Message = d.commentMessage(note)
		n.Recipients, err = d.commentRecipients(ctx, note)
	case event.RuleMRApproval, event.RuleMRMerge, event.RuleMRAssignment:
		var mr *event.MergeRequest
		if mr, err = ev.MergeRequest(); err != nil {
			break
		}
		switch rule {
		case event.RuleMRApproval:
			n.Message = d.approvalMessage(mr)
			n.Recipients, err = d.approvalRecipients(ctx, mr)
		case event.RuleMRMerge:
			n.Message = d.mergeMessage(mr)
			n.Recipients, err = d.mergeRecipients(ctx, mr)
		default:
			n.Message = assignmentMessage(mr)
			n.Recipients, err = d.assignmentRecipients(ctx, mr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("deriving %s notification: %w", rule, err)
	}
	return n, nil
}

package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/heuritech/gitlab-slack-notifier/internal/event"
	"github.com/heuritech/gitlab-slack-notifier/internal/format"
	"github.com/heuritech/gitlab-slack-notifier/models"
)

const (
	failedJobColor = "#ff0000"
	noDetails      = "(no details)"

	pytestFailuresStart = "=================================== FAILURES"
	pytestSectionStart  = "======================"
)

func projectLink(p event.Project) string {
	return format.Link(p.WebURL, p.PathWithNamespace)
}

func mrLink(mr event.MergeRequestRef) string {
	return "MR " + format.Link(mr.URL, fmt.Sprintf("%s (!%d)", mr.Title, mr.IID))
}

// authorName renders the user who triggered the event, mentioning them when
// their email has a chat handle.
func (d *Deriver) authorName(u event.User) string {
	handle := ""
	if u.Email != "" {
		handle, _ = d.handles.Lookup(u.Email)
	}
	return format.Mention(handle, u.Name)
}

func (d *Deriver) pipelineMessage(ctx context.Context, p *event.Pipeline) (models.Message, error) {
	projectURL := strings.TrimSuffix(p.Project.WebURL, "/")
	pipelineURL := fmt.Sprintf("%s/pipelines/%d", projectURL, p.Attributes.ID)

	var attachments []models.Attachment
	for _, b := range p.Builds {
		if b.Status != "failed" {
			continue
		}
		details := noDetails
		if b.Stage == "lint" || b.Stage == "test" {
			trace, err := d.scm.GetJobTrace(ctx, p.Project.ID, b.ID)
			if err != nil {
				return models.Message{}, fmt.Errorf("fetching trace of job %d: %w", b.ID, err)
			}
			if b.Stage == "lint" {
				details = strings.Join(lintErrors(trace), "\n")
			} else {
				details = strings.Join(pytestFailures(trace), "\n")
			}
		}
		title := "Job " + b.Name + " failed"
		attachments = append(attachments, models.Attachment{
			Fallback:  title,
			Color:     failedJobColor,
			Title:     title,
			TitleLink: fmt.Sprintf("%s/%s/-/jobs/%d", d.baseURL, p.Project.PathWithNamespace, b.ID),
			Text:      format.Text(details),
		})
	}

	text := fmt.Sprintf("%s > %s > Pipeline %s ran with status %s",
		projectLink(p.Project),
		format.Link(p.Commit.URL, shortSHA(p.Commit.ID)),
		format.Link(pipelineURL, fmt.Sprintf("#%d", p.Attributes.ID)),
		p.Attributes.Status,
	)
	return models.Message{Text: text, Attachments: attachments}, nil
}

func shortSHA(sha string) string {
	if len(sha) > 6 {
		return sha[:6]
	}
	return sha
}

// lintErrors keeps the linter lines carrying an error code such as [E501].
func lintErrors(trace string) []string {
	var out []string
	for _, line := range strings.Split(trace, "\n") {
		if strings.Contains(line, "[E") {
			out = append(out, strings.TrimRightFunc(line, unicode.IsSpace))
		}
	}
	return out
}

// pytestFailures returns the lines of the pytest FAILURES section, markers
// excluded.
func pytestFailures(trace string) []string {
	var out []string
	inBlock := false
	for _, line := range strings.Split(trace, "\n") {
		if strings.HasPrefix(line, pytestFailuresStart) {
			inBlock = true
			continue
		}
		if inBlock && strings.HasPrefix(line, pytestSectionStart) {
			inBlock = false
		}
		if inBlock {
			out = append(out, line)
		}
	}
	return out
}

func (d *Deriver) commentMessage(n *event.Note) models.Message {
	return models.Message{
		Text: fmt.Sprintf("%s > %s > :writing_hand: %s by %s:",
			projectLink(n.Project),
			mrLink(*n.MergeRequest),
			format.Link(n.Attributes.URL, "Commented"),
			d.authorName(n.User),
		),
		Attachments: []models.Attachment{{Text: format.Text(n.Attributes.Body())}},
	}
}

func (d *Deriver) approvalMessage(mr *event.MergeRequest) models.Message {
	return models.Message{Text: fmt.Sprintf("%s > %s > :+1: Approved by %s",
		projectLink(mr.Project), mrLink(mr.Attributes.Ref()), d.authorName(mr.User))}
}

func (d *Deriver) mergeMessage(mr *event.MergeRequest) models.Message {
	return models.Message{Text: fmt.Sprintf("%s > %s > :tada: Merged by %s",
		projectLink(mr.Project), mrLink(mr.Attributes.Ref()), d.authorName(mr.User))}
}

func assignmentMessage(mr *event.MergeRequest) models.Message {
	return models.Message{Text: fmt.Sprintf("%s > %s > :point_down: This MR was assigned to you",
		projectLink(mr.Project), mrLink(mr.Attributes.Ref()))}
}

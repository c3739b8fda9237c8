// Package slack delivers notifications through the Slack Web API and lists
// workspace members for the email directory.
package slack

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/heuritech/gitlab-slack-notifier/models"
	"github.com/slack-go/slack"
)

// Client posts messages as the notifier bot.
type Client struct {
	api       *slack.Client
	username  string
	iconEmoji string
}

// New creates a Client from cfg.
func New(cfg config.SlackConfig) *Client {
	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(cfg.APIURL, "/")+"/"))
	}
	return &Client{
		api:       slack.New(cfg.Token, opts...),
		username:  cfg.Username,
		iconEmoji: cfg.IconEmoji,
	}
}

// Send posts msg to destination: a channel ("#name"), a channel id, or a
// member handle ("@U123"), which opens a direct message. Failures are
// reported through Delivery, never as an error.
func (c *Client) Send(ctx context.Context, msg models.Message, destination string) models.Delivery {
	if strings.HasPrefix(destination, "@") && !IsMemberHandle(destination) {
		// chat.postMessage would read a bare name as a channel name.
		return models.Delivery{Delivered: false, Raw: fmt.Sprintf("handle %q is not a member id", destination)}
	}
	opts := []slack.MsgOption{
		slack.MsgOptionText(msg.Text, false),
	}
	if len(msg.Attachments) > 0 {
		opts = append(opts, slack.MsgOptionAttachments(toAttachments(msg.Attachments)...))
	}
	if c.username != "" {
		opts = append(opts, slack.MsgOptionUsername(c.username))
	}
	if c.iconEmoji != "" {
		opts = append(opts, slack.MsgOptionIconEmoji(c.iconEmoji))
	}

	channel, ts, err := c.api.PostMessageContext(ctx, channelID(destination), opts...)
	if err != nil {
		return models.Delivery{Delivered: false, Raw: err.Error()}
	}
	return models.Delivery{Delivered: true, Raw: fmt.Sprintf("channel=%s ts=%s", channel, ts)}
}

// Member is a workspace member with a known email.
type Member struct {
	ID    string
	Name  string
	Email string
}

// Members lists active human members whose profile exposes an email.
// The token needs the users:read and users:read.email scopes.
func (c *Client) Members(ctx context.Context) ([]Member, error) {
	users, err := c.api.GetUsersContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing slack users: %w", err)
	}
	members := make([]Member, 0, len(users))
	for _, u := range users {
		if u.Deleted || u.IsBot || u.Profile.Email == "" {
			continue
		}
		members = append(members, Member{ID: u.ID, Name: u.Name, Email: u.Profile.Email})
	}
	return members, nil
}

// AuthTest verifies the token and returns the bot's team and user.
func (c *Client) AuthTest(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("slack auth test: %w", err)
	}
	return fmt.Sprintf("%s as %s", resp.Team, resp.User), nil
}

// Handle is the directory form of a member: "@" followed by the member id,
// which renders as a mention in message text.
func Handle(memberID string) string { return "@" + memberID }

var memberHandleRe = regexp.MustCompile(`^@[UW][A-Z0-9]+$`)

// IsMemberHandle reports whether h is "@" followed by a Slack member id.
func IsMemberHandle(h string) bool { return memberHandleRe.MatchString(h) }

// channelID turns a member handle back into the id chat.postMessage wants.
// Channel names keep their '#'.
func channelID(destination string) string {
	return strings.TrimPrefix(destination, "@")
}

func toAttachments(in []models.Attachment) []slack.Attachment {
	out := make([]slack.Attachment, len(in))
	for i, a := range in {
		out[i] = slack.Attachment{
			Fallback:  a.Fallback,
			Color:     a.Color,
			Title:     a.Title,
			TitleLink: a.TitleLink,
			Text:      a.Text,
		}
	}
	return out
}

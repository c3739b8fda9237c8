package directory

import (
	"context"
	"fmt"
	"os"

	"github.com/heuritech/gitlab-slack-notifier/internal/slack"
	"go.yaml.in/yaml/v3"
)

// Source produces a full email -> handle mapping.
type Source interface {
	Name() string
	Load(ctx context.Context) (map[string]string, error)
}

// MemberLister is the part of the Slack client the SlackSource needs.
type MemberLister interface {
	Members(ctx context.Context) ([]slack.Member, error)
}

// SlackSource builds the mapping from the workspace member list.
type SlackSource struct {
	lister MemberLister
}

// NewSlackSource returns a Source backed by lister.
func NewSlackSource(lister MemberLister) *SlackSource { return &SlackSource{lister: lister} }

func (s *SlackSource) Name() string { return "slack" }

func (s *SlackSource) Load(ctx context.Context) (map[string]string, error) {
	members, err := s.lister.Members(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(members))
	for _, m := range members {
		out[m.Email] = slack.Handle(m.ID)
	}
	return out, nil
}

// StaticSource reads the mapping from a YAML file of "email: handle" pairs.
// Used for local development where no Slack workspace is reachable. Handles
// must be member ids ("@U012AB3CD"); Slack cannot address users by name.
type StaticSource struct {
	path string
}

// NewStaticSource returns a Source reading path.
func NewStaticSource(path string) *StaticSource { return &StaticSource{path: path} }

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Load(_ context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading static directory: %w", err)
	}
	var out map[string]string
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing static directory %s: %w", s.path, err)
	}
	for email, handle := range out {
		if !slack.IsMemberHandle(handle) {
			return nil, fmt.Errorf("static directory %s: handle %q for %s is not a member id (want @U...)", s.path, handle, email)
		}
	}
	return out, nil
}

package event

import "log/slog"

// Rule is the notification rule selected for an event.
type Rule int

const (
	RuleNone Rule = iota
	RulePipelineStatus
	RuleMRComment
	RuleMRApproval
	RuleMRMerge
	RuleMRAssignment
)

func (r Rule) String() string {
	switch r {
	case RulePipelineStatus:
		return "pipeline_status"
	case RuleMRComment:
		return "mr_comment"
	case RuleMRApproval:
		return "mr_approval"
	case RuleMRMerge:
		return "mr_merge"
	case RuleMRAssignment:
		return "mr_assignment"
	default:
		return "none"
	}
}

// quietStatuses are pipeline statuses nobody needs to hear about.
var quietStatuses = map[string]bool{
	"success":  true,
	"running":  true,
	"pending":  true,
	"canceled": true,
}

// Classify returns the rule that applies to e. The first matching rule wins.
func Classify(e *Event) Rule {
	switch e.Kind {
	case KindPipeline:
		p, err := e.Pipeline()
		if err != nil {
			slog.Debug("event: pipeline payload not usable", "error", err)
			return RuleNone
		}
		if p.Attributes.Status == "" || quietStatuses[p.Attributes.Status] {
			return RuleNone
		}
		return RulePipelineStatus
	case KindNote:
		n, err := e.Note()
		if err != nil {
			slog.Debug("event: note payload not usable", "error", err)
			return RuleNone
		}
		// Comments on issues, commits and snippets carry no merge request.
		if n.MergeRequest == nil {
			return RuleNone
		}
		return RuleMRComment
	case KindMergeRequest:
		mr, err := e.MergeRequest()
		if err != nil {
			slog.Debug("event: merge request payload not usable", "error", err)
			return RuleNone
		}
		switch {
		case mr.Attributes.Action == "approved":
			return RuleMRApproval
		case mr.Attributes.Action == "merge":
			return RuleMRMerge
		case IsAssignment(mr):
			return RuleMRAssignment
		}
	}
	return RuleNone
}

// IsAssignment reports whether mr is an assignment: an assignee is set and the
// set of assignee usernames changed. Other updates of an assigned merge
// request also carry assignee_id, hence the check on changes.
func IsAssignment(mr *MergeRequest) bool {
	if mr.Attributes.AssigneeID == nil {
		return false
	}
	var previous, current []Assignee
	if c := mr.Changes.Assignees; c != nil {
		previous, current = c.Previous, c.Current
	}
	return !sameUsernames(previous, current)
}

func sameUsernames(a, b []Assignee) bool {
	as := usernames(a)
	bs := usernames(b)
	if len(as) != len(bs) {
		return false
	}
	for u := range as {
		if !bs[u] {
			return false
		}
	}
	return true
}

func usernames(list []Assignee) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, a := range list {
		out[a.Username] = true
	}
	return out
}

package notify

import (
	"context"
	"errors"

	"github.com/heuritech/gitlab-slack-notifier/models"
)

// ErrAmbiguousMention is returned when an @username in a comment matches more
// than one GitLab user. The whole event is dropped.
var ErrAmbiguousMention = errors.New("mention matches several users")

// Sender delivers a message to one chat destination (a channel name or a
// user handle). Failures are reported in the Delivery, never as an error.
type Sender interface {
	Send(ctx context.Context, msg models.Message, destination string) models.Delivery
}

// Handles maps an email address to the chat handle of its owner.
// Implementations must be safe for concurrent readers.
type Handles interface {
	Lookup(email string) (string, bool)
}
